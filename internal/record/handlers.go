package record

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// maxUploadSize bounds receipt uploads; high-resolution phone photos are large
const maxUploadSize = int64(50 << 20)

const tooLargeMessage = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError reports a failure as {"error": message}
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// recordError maps service errors onto status codes
func recordError(w http.ResponseWriter, action string, err error) {
	var verr *expense.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Detail)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Record not found")
	default:
		slog.Error("Error "+action, "error", err)
		writeError(w, http.StatusInternalServerError, "Error "+action)
	}
}

// handleAnalyze scans an uploaded receipt and returns the extracted fields
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage)
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = expense.ContentTypeFor(header.Filename, data)
	}

	extracted, err := s.service.Analyze(r.Context(), header.Filename, data, contentType)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, extracted)
}

// handleListRecords returns all records
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRecords(r.Context())
	if err != nil {
		recordError(w, "listing records", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCreateRecord stores a new record
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var fields expense.Fields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize*2)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := s.service.CreateRecord(r.Context(), fields)
	if err != nil {
		recordError(w, "creating record", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleUpdateRecord replaces the editable fields of a record
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var fields expense.Fields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize*2)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := s.service.UpdateRecord(r.Context(), id, fields)
	if err != nil {
		recordError(w, "updating record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord deletes a record
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
		recordError(w, "deleting record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptFile returns the original receipt file
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.Context(), r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNoReceipt) && !errors.Is(err, ErrBlobNotFound) {
			slog.Error("Error loading receipt", "error", err)
		}
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
