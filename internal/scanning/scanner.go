package scanning

import (
	"context"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// Scanner defines the interface for receipt analysis
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts its fields
	ScanReceipt(ctx context.Context, data []byte, contentType string) (*expense.Extracted, error)
	// Close closes the scanner and releases resources
	Close() error
}
