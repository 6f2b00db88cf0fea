// Package terminal adapts the review workflow to an interactive terminal.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// Prompter asks questions on out and reads answers line by line from in
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	eof bool
}

// NewPrompter creates a Prompter
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// readLine returns the next trimmed line. A final line without a newline is still returned.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question; anything but y or yes is a no
func (p *Prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	answer, err := p.readLine(ctx)
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// ask shows the current value and returns the answer, or current when the answer is empty
func (p *Prompter) ask(ctx context.Context, label, current string) (string, error) {
	fmt.Fprintf(p.out, "%s [%s]: ", label, current)
	answer, err := p.readLine(ctx)
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		p.eof = true
		return current, nil
	}
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

// ReviewFields walks through the editable fields, keeping a value when the answer is empty.
// Malformed numbers, dates and cost centers are asked again until the input is closed.
// After that an unknown cost center falls back to its bucket.
func (p *Prompter) ReviewFields(ctx context.Context, fields *expense.Fields) error {
	var err error
	if fields.InvoiceNumber, err = p.ask(ctx, "Invoice number", fields.InvoiceNumber); err != nil {
		return err
	}
	if fields.Merchant, err = p.ask(ctx, "Merchant", fields.Merchant); err != nil {
		return err
	}

	for {
		answer, err := p.ask(ctx, "Amount (R$)", fields.Amount.StringFixed(2))
		if err != nil {
			return err
		}
		amount, err := ParseAmount(answer)
		if err == nil {
			fields.Amount = amount
			break
		}
		if p.eof {
			return err
		}
		fmt.Fprintln(p.out, err)
	}

	for {
		answer, err := p.ask(ctx, "Issue date (YYYY-MM-DD)", fields.IssueDate.String())
		if err != nil {
			return err
		}
		if answer == "" {
			break
		}
		date, err := expense.ParseDate(answer)
		if err == nil {
			fields.IssueDate = date
			break
		}
		if p.eof {
			return err
		}
		fmt.Fprintln(p.out, err)
	}

	names := make([]string, len(expense.CostCenters))
	for i, c := range expense.CostCenters {
		names[i] = string(c)
	}
	label := fmt.Sprintf("Cost center (%s)", strings.Join(names, ", "))
	for {
		answer, err := p.ask(ctx, label, string(fields.CostCenter))
		if err != nil {
			return err
		}
		cc, err := expense.ParseCostCenter(answer)
		if err == nil {
			fields.CostCenter = cc
			break
		}
		if p.eof {
			fields.CostCenter = fields.CostCenter.Bucket()
			break
		}
		fmt.Fprintln(p.out, err)
	}
	return nil
}

// ParseAmount reads a decimal amount in either separator convention
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	d, err := expense.ParseMoney(s)
	if err != nil {
		return decimal.Zero, &expense.ValidationError{Detail: fmt.Sprintf("invalid amount %q", s), Err: err}
	}
	return d, nil
}
