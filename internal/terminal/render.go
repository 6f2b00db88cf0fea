package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#585b70")).
			Padding(0, 2).
			Width(22)
	cardValueStyle = lipgloss.NewStyle().Bold(true)
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
)

const barWidth = 30

// RenderRecords draws the record list as a table. The # column is the 1-based row number
// the edit, delete and view commands accept.
func RenderRecords(records []expense.Record) string {
	if len(records) == 0 {
		return mutedStyle.Render("No records yet.")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Headers("#", "Date", "Merchant", "Invoice", "Cost center", "Amount", "Receipt")

	for i, r := range records {
		receipt := ""
		if r.HasReceipt() {
			receipt = "yes"
		}
		t.Row(
			fmt.Sprint(i+1),
			r.IssueDate.String(),
			r.Merchant,
			r.InvoiceNumber,
			string(r.CostCenter.Bucket()),
			expense.FormatMoney(r.Amount),
			receipt,
		)
	}
	return t.String()
}

// RenderDashboard draws the metric cards and a bar per cost center
func RenderDashboard(m expense.Metrics) string {
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total", expense.FormatMoney(m.Total)),
		card("Records", fmt.Sprint(m.Count)),
		card("Average", expense.FormatMoney(m.Average)),
	)

	categories := m.Categories()
	if len(categories) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, cards, mutedStyle.Render("No spend by cost center yet."))
	}

	lines := make([]string, 0, len(categories)+1)
	lines = append(lines, headerStyle.Render("By cost center"))
	for _, c := range categories {
		amount := m.ByCategory[c]
		lines = append(lines, fmt.Sprintf("%-10s %s %s", c, barStyle.Render(bar(amount, m.Total)), expense.FormatMoney(amount)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards, strings.Join(lines, "\n"))
}

func card(title, value string) string {
	return cardStyle.Render(mutedStyle.Render(title) + "\n" + cardValueStyle.Render(value))
}

// bar scales part against total; an empty total draws nothing
func bar(part, total decimal.Decimal) string {
	if !total.IsPositive() {
		return strings.Repeat(" ", barWidth)
	}
	n := int(part.Div(total).Mul(decimal.NewFromInt(barWidth)).Round(0).IntPart())
	n = max(0, min(barWidth, n))
	return strings.Repeat("█", n) + strings.Repeat(" ", barWidth-n)
}
