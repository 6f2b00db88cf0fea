package record

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/reimbursement-tracker/internal/expense"
	"github.com/zombor/reimbursement-tracker/internal/scanning"
)

// ErrNoReceipt is returned when a record has no stored receipt
var ErrNoReceipt = errors.New("no receipt stored for this record")

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Service handles analysis and record persistence
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID IDs and the wall clock
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and long phone-generated names
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaceRuns.ReplaceAllString(base, "_"))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// Analyze runs the scanner over an uploaded receipt
func (s *Service) Analyze(ctx context.Context, filename string, data []byte, contentType string) (*expense.Extracted, error) {
	extracted, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}
	extracted.FileName = filename
	return extracted, nil
}

// validateFields enforces the only stored-value rule: a finite, non-negative amount
func validateFields(fields *expense.Fields) error {
	if fields.Amount.IsNegative() {
		return &expense.ValidationError{Detail: "amount must not be negative"}
	}
	if fields.CostCenter == "" {
		fields.CostCenter = expense.DefaultCostCenter
	}
	return nil
}

// CreateRecord stores a new record and its receipt
func (s *Service) CreateRecord(ctx context.Context, fields expense.Fields) (*expense.Record, error) {
	if err := validateFields(&fields); err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	entry := &Entry{
		Record: expense.Record{
			ID:        s.idGenerator.Generate(),
			Fields:    fields,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	if fields.ReceiptInline != "" {
		contentType, data, err := expense.DecodeInline(fields.ReceiptInline)
		if err != nil {
			return nil, &expense.ValidationError{Detail: "receipt is not a valid data URL", Err: err}
		}
		name := sanitizeFilename(fields.FileName)
		if filepath.Ext(name) == "" {
			name += expense.ExtensionFor(contentType)
		}
		key, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", entry.ID, name), data, contentType)
		if err != nil {
			return nil, fmt.Errorf("saving receipt: %w", err)
		}
		entry.ReceiptKey = key
		entry.ContentType = contentType
	}

	if err := s.db.SaveEntry(ctx, entry); err != nil {
		if entry.ReceiptKey != "" {
			if delErr := s.storage.Delete(ctx, entry.ReceiptKey); delErr != nil {
				slog.Warn("Failed to clean up receipt", "key", entry.ReceiptKey, "error", delErr)
			}
		}
		return nil, fmt.Errorf("saving record to database: %w", err)
	}

	slog.Info("Record created", "id", entry.ID, "merchant", entry.Merchant, "amount", entry.Amount.String())
	rec := entry.Record
	return &rec, nil
}

// UpdateRecord replaces a record's editable fields. The file name and stored
// receipt of the original upload are kept.
func (s *Service) UpdateRecord(ctx context.Context, id string, fields expense.Fields) (*expense.Record, error) {
	if err := validateFields(&fields); err != nil {
		return nil, err
	}

	entry, err := s.db.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	entry.InvoiceNumber = fields.InvoiceNumber
	entry.Merchant = fields.Merchant
	entry.Amount = fields.Amount
	entry.IssueDate = fields.IssueDate
	entry.CostCenter = fields.CostCenter
	entry.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("updating record: %w", err)
	}

	slog.Info("Record updated", "id", id)
	s.hydrate(ctx, entry)
	rec := entry.Record
	return &rec, nil
}

// ListRecords returns all records newest first, with their receipts inlined
func (s *Service) ListRecords(ctx context.Context) ([]*expense.Record, error) {
	entries, err := s.db.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	slices.SortStableFunc(entries, func(a, b *Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	records := make([]*expense.Record, 0, len(entries))
	for _, entry := range entries {
		s.hydrate(ctx, entry)
		rec := entry.Record
		records = append(records, &rec)
	}
	return records, nil
}

// hydrate loads the receipt blob back into the record. A missing blob leaves the
// record without a receipt rather than failing the whole listing.
func (s *Service) hydrate(ctx context.Context, entry *Entry) {
	if entry.ReceiptKey == "" {
		return
	}
	data, err := s.storage.Get(ctx, entry.ReceiptKey)
	if err != nil {
		slog.Warn("Failed to load receipt", "id", entry.ID, "key", entry.ReceiptKey, "error", err)
		return
	}
	entry.ReceiptInline = expense.EncodeInline(entry.ContentType, data)
}

// DeleteRecord removes a record and its receipt
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	entry, err := s.db.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}

	if entry.ReceiptKey != "" {
		if err := s.storage.Delete(ctx, entry.ReceiptKey); err != nil {
			slog.Warn("Failed to delete receipt", "key", entry.ReceiptKey, "error", err)
		}
	}

	if err := s.db.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("deleting record from database: %w", err)
	}
	slog.Info("Record deleted", "id", id)
	return nil
}

// GetReceiptFile retrieves the original receipt bytes for a record
func (s *Service) GetReceiptFile(ctx context.Context, id string) ([]byte, string, error) {
	entry, err := s.db.GetEntry(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting record: %w", err)
	}
	if entry.ReceiptKey == "" {
		return nil, "", ErrNoReceipt
	}

	data, err := s.storage.Get(ctx, entry.ReceiptKey)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, entry.ContentType, nil
}
