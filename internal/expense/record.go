package expense

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CostCenter is the category a reimbursement is charged against
type CostCenter string

const (
	Food      CostCenter = "Food"
	Transport CostCenter = "Transport"
	Lodging   CostCenter = "Lodging"
	Equipment CostCenter = "Equipment"
	Other     CostCenter = "Other"
)

// DefaultCostCenter is assigned to drafts produced by analysis
const DefaultCostCenter = Food

// CostCenters lists the known cost centers in display order
var CostCenters = []CostCenter{Food, Transport, Lodging, Equipment, Other}

// Valid reports whether c is one of the known cost centers
func (c CostCenter) Valid() bool {
	for _, known := range CostCenters {
		if c == known {
			return true
		}
	}
	return false
}

// Bucket returns the cost center used for aggregation; unknown values fall under Other
func (c CostCenter) Bucket() CostCenter {
	if c.Valid() {
		return c
	}
	return Other
}

// ParseCostCenter matches a cost center name case-insensitively
func ParseCostCenter(s string) (CostCenter, error) {
	s = strings.TrimSpace(s)
	for _, known := range CostCenters {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", &ValidationError{Detail: fmt.Sprintf("unknown cost center %q", s)}
}

const dateLayout = "2006-01-02"

// Date is a calendar date without a time component
type Date struct {
	time.Time
}

// NewDate builds a Date from its parts
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar date
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Detail: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s), Err: err}
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Before reports whether d is strictly before other
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly after other
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when unset
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD", an empty string or null
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" || string(data) == `""` {
		*d = Date{}
		return nil
	}
	s := strings.Trim(string(data), `"`)
	// tolerate full timestamps from stores that persist a datetime
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Fields are the editable contents of a reimbursement
type Fields struct {
	InvoiceNumber string          `json:"invoice_number"`
	Merchant      string          `json:"merchant"`
	Amount        decimal.Decimal `json:"amount"`
	IssueDate     Date            `json:"issue_date"`
	CostCenter    CostCenter      `json:"cost_center"`
	FileName      string          `json:"file_name"`
	ReceiptInline string          `json:"receipt_inline,omitempty"` // data URL of the original file
}

// Record is a persisted reimbursement
type Record struct {
	ID string `json:"id"`
	Fields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasReceipt reports whether the record carries an inline copy of its receipt
func (r Record) HasReceipt() bool {
	return r.ReceiptInline != ""
}

// Extracted contains the fields the analysis service read from a receipt
type Extracted struct {
	InvoiceNumber string          `json:"invoice_number"`
	Merchant      string          `json:"merchant"`
	Amount        decimal.Decimal `json:"amount"`
	IssueDate     Date            `json:"issue_date"`
	FileName      string          `json:"file_name,omitempty"`
}

// FormatMoney renders an amount in the application's single currency format
func FormatMoney(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}

// ParseMoney reads an amount written with an optional currency prefix and either
// separator convention: the separator that appears last is the decimal one, so
// "1.234,56" and "1,234.56" are the same amount.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "R$"), "$"))
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case comma != -1:
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}
