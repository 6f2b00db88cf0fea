package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// Deleter removes records
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Confirmer asks the user a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Display opens a stored receipt for viewing
type Display interface {
	Show(ctx context.Context, name, inline string) error
}

// Actions are the per-record operations of the record list
type Actions struct {
	workflow  *Workflow
	deleter   Deleter
	store     *Store
	confirmer Confirmer
	display   Display
	notifier  Notifier

	mu       sync.Mutex
	deleting map[string]bool
}

// NewActions wires the record operations
func NewActions(workflow *Workflow, deleter Deleter, store *Store, confirmer Confirmer, display Display, notifier Notifier) *Actions {
	return &Actions{
		workflow:  workflow,
		deleter:   deleter,
		store:     store,
		confirmer: confirmer,
		display:   display,
		notifier:  notifier,
		deleting:  make(map[string]bool),
	}
}

// Edit opens rec for review
func (a *Actions) Edit(rec expense.Record) error {
	if err := a.workflow.Edit(rec); err != nil {
		if !errors.Is(err, ErrBusy) {
			a.notifier.Notify(failure(err))
		}
		return err
	}
	return nil
}

// Delete removes rec after the user confirms. It reports whether the record was deleted.
// The cached set only changes through the refresh that follows a confirmed deletion.
func (a *Actions) Delete(ctx context.Context, rec expense.Record) (bool, error) {
	a.mu.Lock()
	if a.deleting[rec.ID] {
		a.mu.Unlock()
		return false, ErrBusy
	}
	a.deleting[rec.ID] = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.deleting, rec.ID)
		a.mu.Unlock()
	}()

	ok, err := a.confirmer.Confirm(ctx, fmt.Sprintf("Delete %s (%s)?", describe(rec), expense.FormatMoney(rec.Amount)))
	if err != nil {
		err = fmt.Errorf("confirming delete: %w", err)
		a.notifier.Notify(failure(err))
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := a.deleter.Delete(ctx, rec.ID); err != nil {
		var perr *expense.PersistenceError
		if !errors.As(err, &perr) {
			err = &expense.PersistenceError{Detail: err.Error(), Err: err}
		}
		a.notifier.Notify(failure(err))
		return false, err
	}

	a.notifier.Notify(Notice{Level: LevelSuccess, Message: "Record deleted"})
	if err := a.store.Refresh(ctx); err != nil {
		a.notifier.Notify(failure(fmt.Errorf("refreshing records: %w", err)))
	}
	return true, nil
}

// ViewReceipt hands the stored receipt of rec to the display
func (a *Actions) ViewReceipt(ctx context.Context, rec expense.Record) error {
	if !rec.HasReceipt() {
		err := &expense.NotAvailableError{RecordID: rec.ID}
		a.notifier.Notify(Notice{Level: LevelError, Message: err.Error()})
		return err
	}
	if err := a.display.Show(ctx, rec.FileName, rec.ReceiptInline); err != nil {
		err = fmt.Errorf("opening receipt: %w", err)
		a.notifier.Notify(failure(err))
		return err
	}
	return nil
}

func describe(rec expense.Record) string {
	if rec.Merchant != "" {
		return rec.Merchant
	}
	if rec.InvoiceNumber != "" {
		return "invoice " + rec.InvoiceNumber
	}
	return "record " + rec.ID
}
