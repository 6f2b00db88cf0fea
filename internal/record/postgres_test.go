package record

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// fakeRow is a pgx.Row that copies values into the scan destinations in order
type fakeRow struct {
	values []any
	err    error
}

var _ pgx.Row = (*fakeRow)(nil)

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		value := reflect.ValueOf(r.values[i])
		if !value.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan column %d: cannot assign %s to %s", i, value.Type(), target.Type())
		}
		target.Set(value)
	}
	return nil
}

var _ = ginkgo.Describe("PostgresDB rows", func() {
	var entry *Entry

	ginkgo.BeforeEach(func() {
		entry = &Entry{
			Record: expense.Record{
				ID: "rec-1",
				Fields: expense.Fields{
					InvoiceNumber: "000123",
					Merchant:      "Padaria São João",
					Amount:        decimal.RequireFromString("1234.56"),
					IssueDate:     expense.NewDate(2024, time.January, 5),
					CostCenter:    expense.Lodging,
					FileName:      "nota.pdf",
				},
				CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
				UpdatedAt: time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC),
			},
			ReceiptKey:  "rec-1_nota.pdf",
			ContentType: "application/pdf",
		}
	})

	ginkgo.It("reads back what it writes", func() {
		got, err := scanEntry(&fakeRow{values: entryArgs(entry)})
		Expect(err).NotTo(HaveOccurred())

		Expect(got.ID).To(Equal(entry.ID))
		Expect(got.InvoiceNumber).To(Equal("000123"))
		Expect(got.Merchant).To(Equal("Padaria São João"))
		Expect(got.Amount.Equal(entry.Amount)).To(BeTrue())
		Expect(got.IssueDate.String()).To(Equal("2024-01-05"))
		Expect(got.CostCenter).To(Equal(expense.Lodging))
		Expect(got.FileName).To(Equal("nota.pdf"))
		Expect(got.ReceiptKey).To(Equal("rec-1_nota.pdf"))
		Expect(got.ContentType).To(Equal("application/pdf"))
		Expect(got.CreatedAt).To(Equal(entry.CreatedAt))
		Expect(got.UpdatedAt).To(Equal(entry.UpdatedAt))
		Expect(got.ReceiptInline).To(BeEmpty())
	})

	ginkgo.It("keeps the amount exact through its text form", func() {
		entry.Amount = decimal.RequireFromString("0.10").Add(decimal.RequireFromString("0.20"))
		got, err := scanEntry(&fakeRow{values: entryArgs(entry)})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Amount.StringFixed(2)).To(Equal("0.30"))
	})

	ginkgo.It("stores a missing issue date as NULL", func() {
		entry.IssueDate = expense.Date{}
		args := entryArgs(entry)
		Expect(args[4]).To(BeNil())

		got, err := scanEntry(&fakeRow{values: args})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.IssueDate.IsZero()).To(BeTrue())
	})

	ginkgo.It("keeps an unknown cost center as stored", func() {
		entry.CostCenter = expense.CostCenter("Fuel")
		got, err := scanEntry(&fakeRow{values: entryArgs(entry)})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CostCenter).To(Equal(expense.CostCenter("Fuel")))
		Expect(got.CostCenter.Bucket()).To(Equal(expense.Other))
	})

	ginkgo.It("rejects an amount that is not numeric", func() {
		args := entryArgs(entry)
		args[3] = "twelve"
		_, err := scanEntry(&fakeRow{values: args})
		Expect(err).To(MatchError(ContainSubstring(`parsing amount "twelve"`)))
	})

	ginkgo.It("passes row errors through for not-found handling", func() {
		_, err := scanEntry(&fakeRow{err: pgx.ErrNoRows})
		Expect(errors.Is(err, pgx.ErrNoRows)).To(BeTrue())
	})
})
