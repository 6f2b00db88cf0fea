package review

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// File is a receipt selected by the user
type File interface {
	Name() string
	ContentType() string
	Open() (io.ReadCloser, error)
}

// PathFile is a File on the local filesystem
type PathFile struct {
	Path string
}

func (f PathFile) Name() string {
	return filepath.Base(f.Path)
}

// ContentType guesses the type from the extension, sniffing the first bytes when that fails
func (f PathFile) ContentType() string {
	var head []byte
	if fh, err := os.Open(f.Path); err == nil {
		buf := make([]byte, 512)
		n, _ := io.ReadFull(fh, buf)
		head = buf[:n]
		fh.Close()
	}
	return expense.ContentTypeFor(f.Path, head)
}

func (f PathFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Encoder turns selected files into inline data URLs in the background
type Encoder struct{}

// Pending is an encoding in progress
type Pending struct {
	done   chan struct{}
	inline string
	err    error
}

// Start begins encoding f and returns immediately
func (Encoder) Start(ctx context.Context, f File) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.inline, p.err = encode(ctx, f)
	}()
	return p
}

// Wait blocks until the encoding finishes or ctx is done
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.inline, p.err
	case <-ctx.Done():
		return "", &expense.EncodingError{Detail: "encoding receipt interrupted", Err: ctx.Err()}
	}
}

func encode(ctx context.Context, f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", &expense.EncodingError{Detail: "cannot read " + f.Name(), Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", &expense.EncodingError{Detail: "cannot read " + f.Name(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &expense.EncodingError{Detail: "encoding receipt interrupted", Err: err}
	}
	// zero-length files encode to an empty payload
	return expense.EncodeInline(f.ContentType(), data), nil
}
