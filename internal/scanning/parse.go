package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// extractedJSON mirrors the JSON the prompt asks the model for
type extractedJSON struct {
	InvoiceNumber json.RawMessage `json:"invoice_number"`
	Merchant      string          `json:"merchant"`
	Date          string          `json:"issue_date"`
	Amount        json.RawMessage `json:"amount"`
}

var fallbackDateFormats = []string{
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
}

// parseExtractedJSON parses the model's JSON answer
func parseExtractedJSON(text string, now time.Time) (*expense.Extracted, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw extractedJSON
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	amount, err := parseAmount(raw.Amount)
	if err != nil {
		return nil, err
	}

	return &expense.Extracted{
		InvoiceNumber: parseInvoiceNumber(raw.InvoiceNumber),
		Merchant:      strings.TrimSpace(raw.Merchant),
		Amount:        amount,
		IssueDate:     parseIssueDate(raw.Date, now),
	}, nil
}

// parseAmount accepts a number, a numeric string or null
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, nil
	}
	s = strings.Trim(s, `"`)
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	amount, err := expense.ParseMoney(s)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Abs(), nil
}

// parseInvoiceNumber accepts a string, a number or null
func parseInvoiceNumber(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	return s
}

// parseIssueDate falls back to today when the date is missing or unreadable
func parseIssueDate(s string, now time.Time) expense.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return expense.DateOf(now)
	}
	if d, err := expense.ParseDate(s); err == nil {
		return d
	}
	for _, format := range fallbackDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return expense.DateOf(t)
		}
	}
	return expense.DateOf(now)
}
