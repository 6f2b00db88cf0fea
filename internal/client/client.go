// Package client talks to the record service over HTTP/JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// DefaultTimeout bounds a single call; analysis of large PDFs can take a while
const DefaultTimeout = 2 * time.Minute

// Client implements the analysis and persistence contracts against a running service
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the service at baseURL
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: DefaultTimeout})
}

// NewWithHTTPClient creates a Client with a custom http.Client for testing
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

// Analyze uploads a receipt and returns the fields the service extracted
func (c *Client) Analyze(ctx context.Context, name, contentType string, r io.Reader) (*expense.Extracted, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, &expense.AnalysisError{Detail: "preparing upload", Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &expense.AnalysisError{Detail: "reading receipt for upload", Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &expense.AnalysisError{Detail: "preparing upload", Err: err}
	}

	var extracted expense.Extracted
	err = c.do(ctx, http.MethodPost, "/api/analyze", writer.FormDataContentType(), &body, http.StatusOK, &extracted)
	if err != nil {
		return nil, analysisError(err)
	}
	return &extracted, nil
}

// List fetches every stored record
func (c *Client) List(ctx context.Context) ([]expense.Record, error) {
	records := make([]expense.Record, 0)
	if err := c.do(ctx, http.MethodGet, "/api/records", "", nil, http.StatusOK, &records); err != nil {
		return nil, persistenceError(err)
	}
	return records, nil
}

// Create stores a new record; the service assigns its ID
func (c *Client) Create(ctx context.Context, fields expense.Fields) (*expense.Record, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, &expense.PersistenceError{Detail: "encoding record", Err: err}
	}
	var rec expense.Record
	if err := c.do(ctx, http.MethodPost, "/api/records", "application/json", bytes.NewReader(body), http.StatusCreated, &rec); err != nil {
		return nil, persistenceError(err)
	}
	return &rec, nil
}

// Update replaces the editable fields of the record with the given ID
func (c *Client) Update(ctx context.Context, id string, fields expense.Fields) (*expense.Record, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, &expense.PersistenceError{Detail: "encoding record", Err: err}
	}
	var rec expense.Record
	if err := c.do(ctx, http.MethodPut, "/api/records/"+url.PathEscape(id), "application/json", bytes.NewReader(body), http.StatusOK, &rec); err != nil {
		return nil, persistenceError(err)
	}
	return &rec, nil
}

// Delete removes the record with the given ID
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/records/"+url.PathEscape(id), "", nil, http.StatusNoContent, nil); err != nil {
		return persistenceError(err)
	}
	return nil
}

// statusError is a non-success response; detail is the service's message
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	return e.detail
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return &statusError{code: resp.StatusCode, detail: errorDetail(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorDetail reads {"error": "..."} from a failed response, falling back to the status text
func errorDetail(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			return body.Error
		}
		if text := strings.TrimSpace(string(data)); text != "" && !strings.HasPrefix(text, "{") {
			return text
		}
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func analysisError(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		return &expense.AnalysisError{Detail: se.detail, Err: err}
	}
	return &expense.AnalysisError{Detail: "analysis service unavailable: " + err.Error(), Err: err}
}

func persistenceError(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		return &expense.PersistenceError{Detail: se.detail, Err: err}
	}
	return &expense.PersistenceError{Detail: "record service unavailable: " + err.Error(), Err: err}
}
