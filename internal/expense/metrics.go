package expense

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Metrics summarizes a set of records
type Metrics struct {
	Total      decimal.Decimal
	Count      int
	Average    decimal.Decimal
	ByCategory map[CostCenter]decimal.Decimal
}

// Aggregate computes metrics over records. The average of an empty set is zero.
func Aggregate(records []Record) Metrics {
	m := Metrics{
		Total:      decimal.Zero,
		Average:    decimal.Zero,
		ByCategory: make(map[CostCenter]decimal.Decimal),
	}
	for _, r := range records {
		m.Total = m.Total.Add(r.Amount)
		bucket := r.CostCenter.Bucket()
		m.ByCategory[bucket] = m.ByCategory[bucket].Add(r.Amount)
	}
	m.Count = len(records)
	if m.Count > 0 {
		m.Average = m.Total.Div(decimal.NewFromInt(int64(m.Count)))
	}
	return m
}

// Categories returns the populated cost centers in display order
func (m Metrics) Categories() []CostCenter {
	out := make([]CostCenter, 0, len(m.ByCategory))
	for _, c := range CostCenters {
		if _, ok := m.ByCategory[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Filter narrows a record set by issue date and cost center. Zero values match everything.
type Filter struct {
	From        Date
	To          Date
	CostCenters []CostCenter
}

// Match reports whether r passes the filter
func (f Filter) Match(r Record) bool {
	if !f.From.IsZero() && r.IssueDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.IssueDate.After(f.To) {
		return false
	}
	if len(f.CostCenters) > 0 && !slices.Contains(f.CostCenters, r.CostCenter.Bucket()) {
		return false
	}
	return true
}

// Apply returns the records matching the filter, preserving order
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
