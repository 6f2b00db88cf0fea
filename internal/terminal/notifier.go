package terminal

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/zombor/reimbursement-tracker/internal/review"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
)

// Notifier prints notices as styled lines
type Notifier struct {
	out io.Writer
}

// NewNotifier creates a Notifier writing to out
func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Notify(notice review.Notice) {
	switch notice.Level {
	case review.LevelError:
		fmt.Fprintln(n.out, errorStyle.Render("✗ "+notice.Message))
	case review.LevelSuccess:
		fmt.Fprintln(n.out, successStyle.Render("✓ "+notice.Message))
	default:
		fmt.Fprintln(n.out, infoStyle.Render("• "+notice.Message))
	}
}
