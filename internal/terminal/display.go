package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// FileDisplay writes a receipt to disk and optionally hands it to an external viewer
type FileDisplay struct {
	Dir    string   // defaults to the system temp dir
	Opener []string // e.g. ["xdg-open"]; the file path is appended
	Out    io.Writer
}

// Show decodes the inline receipt into a file and opens it
func (d FileDisplay) Show(ctx context.Context, name, inline string) error {
	contentType, data, err := expense.DecodeInline(inline)
	if err != nil {
		return fmt.Errorf("decoding receipt: %w", err)
	}

	dir := d.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = expense.ExtensionFor(contentType)
	}
	f, err := os.CreateTemp(dir, "receipt-*"+ext)
	if err != nil {
		return fmt.Errorf("creating receipt file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing receipt file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing receipt file: %w", err)
	}

	if d.Out != nil {
		fmt.Fprintf(d.Out, "Receipt %s written to %s\n", name, f.Name())
	}
	if len(d.Opener) == 0 {
		return nil
	}
	args := append(append([]string{}, d.Opener[1:]...), f.Name())
	if err := exec.CommandContext(ctx, d.Opener[0], args...).Run(); err != nil {
		return fmt.Errorf("running %s: %w", d.Opener[0], err)
	}
	return nil
}
