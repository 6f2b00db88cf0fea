package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// ErrBusy is returned when an action of the same kind is already in flight. The trigger is ignored.
var ErrBusy = errors.New("another request is still in progress")

// State is a step of the review workflow
type State int

const (
	Idle State = iota
	Selecting
	Analyzing
	Reviewing
	Saving
)

func (s State) String() string {
	switch s {
	case Selecting:
		return "selecting"
	case Analyzing:
		return "analyzing"
	case Reviewing:
		return "reviewing"
	case Saving:
		return "saving"
	default:
		return "idle"
	}
}

// Analyzer extracts fields from a receipt file
type Analyzer interface {
	Analyze(ctx context.Context, name, contentType string, r io.Reader) (*expense.Extracted, error)
}

// Persister creates and updates records
type Persister interface {
	Create(ctx context.Context, fields expense.Fields) (*expense.Record, error)
	Update(ctx context.Context, id string, fields expense.Fields) (*expense.Record, error)
}

// Route is the persistence call a save issues
type Route int

const (
	RouteCreate Route = iota
	RouteUpdate
)

func (r Route) String() string {
	if r == RouteUpdate {
		return "update"
	}
	return "create"
}

// Draft is the record under review. A draft with an ID edits that record; without one it is new.
type Draft struct {
	ID string
	expense.Fields
}

// Route reports whether saving d creates or updates a record
func (d Draft) Route() Route {
	if d.ID != "" {
		return RouteUpdate
	}
	return RouteCreate
}

// SaveResult describes a completed save
type SaveResult struct {
	Route    Route
	Record   *expense.Record
	ShowList bool // new records send the user to the record list
}

// Workflow drives a receipt from selection through analysis and review to a saved record.
// It holds at most one draft.
type Workflow struct {
	analyzer  Analyzer
	persister Persister
	store     *Store
	notifier  Notifier
	encoder   Encoder

	mu    sync.Mutex
	state State
	file  File
	draft *Draft
}

// NewWorkflow creates an idle Workflow
func NewWorkflow(analyzer Analyzer, persister Persister, store *Store, notifier Notifier) *Workflow {
	return &Workflow{
		analyzer:  analyzer,
		persister: persister,
		store:     store,
		notifier:  notifier,
	}
}

// State returns the current state
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Selected returns the selected file, or nil
func (w *Workflow) Selected() File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file
}

// Draft returns a copy of the open draft
func (w *Workflow) Draft() (Draft, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft == nil {
		return Draft{}, false
	}
	return *w.draft, true
}

// Select chooses the receipt file to analyze
func (w *Workflow) Select(f File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Analyzing, Saving:
		return ErrBusy
	case Reviewing:
		return &expense.ValidationError{Detail: "finish or cancel the open review first"}
	}
	if f == nil {
		return &expense.ValidationError{Detail: "no file selected"}
	}
	w.file = f
	w.state = Selecting
	return nil
}

// Analyze sends the selected file to the analysis service while encoding it, and opens a
// new draft from the combined result. On failure the workflow returns to Idle and keeps the file.
func (w *Workflow) Analyze(ctx context.Context) (Draft, error) {
	w.mu.Lock()
	switch w.state {
	case Analyzing, Saving, Reviewing:
		w.mu.Unlock()
		return Draft{}, ErrBusy
	}
	if w.file == nil {
		w.mu.Unlock()
		err := &expense.ValidationError{Detail: "no file selected"}
		w.notifier.Notify(failure(err))
		return Draft{}, err
	}
	file := w.file
	w.state = Analyzing
	w.mu.Unlock()

	pending := w.encoder.Start(ctx, file)
	extracted, err := w.analyze(ctx, file)
	if err == nil {
		var inline string
		inline, err = pending.Wait(ctx)
		if err == nil {
			draft := Draft{Fields: expense.Fields{
				InvoiceNumber: extracted.InvoiceNumber,
				Merchant:      extracted.Merchant,
				Amount:        extracted.Amount,
				IssueDate:     extracted.IssueDate,
				CostCenter:    expense.DefaultCostCenter,
				FileName:      file.Name(),
				ReceiptInline: inline,
			}}

			w.mu.Lock()
			w.draft = &draft
			w.state = Reviewing
			w.mu.Unlock()

			w.notifier.Notify(Notice{Level: LevelInfo, Message: "Receipt analyzed, review the fields before saving"})
			return draft, nil
		}
	}

	w.mu.Lock()
	w.state = Idle
	w.mu.Unlock()
	w.notifier.Notify(failure(err))
	return Draft{}, err
}

func (w *Workflow) analyze(ctx context.Context, file File) (*expense.Extracted, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, &expense.EncodingError{Detail: "cannot read " + file.Name(), Err: err}
	}
	defer rc.Close()

	extracted, err := w.analyzer.Analyze(ctx, file.Name(), file.ContentType(), rc)
	if err != nil {
		var aerr *expense.AnalysisError
		if errors.As(err, &aerr) {
			return nil, err
		}
		return nil, &expense.AnalysisError{Detail: err.Error(), Err: err}
	}
	return extracted, nil
}

// Edit opens a draft copied from an existing record, skipping analysis
func (w *Workflow) Edit(rec expense.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Analyzing, Saving:
		return ErrBusy
	case Reviewing:
		return &expense.ValidationError{Detail: "finish or cancel the open review first"}
	}
	w.draft = &Draft{ID: rec.ID, Fields: rec.Fields}
	w.state = Reviewing
	return nil
}

// Update applies fn to the open draft
func (w *Workflow) Update(fn func(*expense.Fields)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Reviewing || w.draft == nil {
		return &expense.ValidationError{Detail: "no record is being reviewed"}
	}
	fields := w.draft.Fields
	fn(&fields)
	// the stored receipt is not replaceable from the review
	fields.ReceiptInline = w.draft.ReceiptInline
	w.draft.Fields = fields
	return nil
}

// Save submits the draft: an update when it carries an ID, a create otherwise.
// On failure the workflow stays in Reviewing with the draft untouched.
func (w *Workflow) Save(ctx context.Context) (*SaveResult, error) {
	w.mu.Lock()
	if w.state == Saving {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if w.state != Reviewing || w.draft == nil {
		w.mu.Unlock()
		return nil, &expense.ValidationError{Detail: "no record is being reviewed"}
	}
	if w.draft.Amount.IsNegative() {
		w.mu.Unlock()
		err := &expense.ValidationError{Detail: "amount must not be negative"}
		w.notifier.Notify(failure(err))
		return nil, err
	}
	draft := *w.draft
	w.state = Saving
	w.mu.Unlock()

	route := draft.Route()
	var (
		rec *expense.Record
		err error
	)
	if route == RouteUpdate {
		rec, err = w.persister.Update(ctx, draft.ID, draft.Fields)
	} else {
		rec, err = w.persister.Create(ctx, draft.Fields)
	}
	if err != nil {
		var perr *expense.PersistenceError
		if !errors.As(err, &perr) {
			err = &expense.PersistenceError{Detail: err.Error(), Err: err}
		}
		w.mu.Lock()
		w.state = Reviewing
		w.mu.Unlock()
		w.notifier.Notify(failure(err))
		return nil, err
	}

	w.mu.Lock()
	w.draft = nil
	w.state = Idle
	if route == RouteCreate {
		w.file = nil
	}
	w.mu.Unlock()

	if route == RouteUpdate {
		w.notifier.Notify(Notice{Level: LevelSuccess, Message: "Record updated"})
	} else {
		w.notifier.Notify(Notice{Level: LevelSuccess, Message: "Record saved"})
	}
	if err := w.store.Refresh(ctx); err != nil {
		w.notifier.Notify(failure(fmt.Errorf("refreshing records: %w", err)))
	}

	return &SaveResult{Route: route, Record: rec, ShowList: route == RouteCreate}, nil
}

// Cancel closes the review without saving. The selected file is kept.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Analyzing, Saving:
		return ErrBusy
	}
	w.draft = nil
	w.state = Idle
	return nil
}
