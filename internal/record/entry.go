package record

import (
	"errors"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// ErrNotFound is returned when no record exists for an ID
var ErrNotFound = errors.New("record not found")

// Entry is a record as persisted: the receipt lives in blob storage under ReceiptKey
type Entry struct {
	expense.Record
	ReceiptKey  string `json:"receipt_key,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}
