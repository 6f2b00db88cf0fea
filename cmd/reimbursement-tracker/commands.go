package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/reimbursement-tracker/internal/client"
	"github.com/zombor/reimbursement-tracker/internal/expense"
	"github.com/zombor/reimbursement-tracker/internal/export"
	"github.com/zombor/reimbursement-tracker/internal/review"
	"github.com/zombor/reimbursement-tracker/internal/terminal"
)

// app wires the review core to the record service and the terminal
type app struct {
	root     *rootConfig
	prompter *terminal.Prompter
	notifier *terminal.Notifier
	store    *review.Store
	workflow *review.Workflow
	actions  *review.Actions
}

func newApp(root *rootConfig, display review.Display) *app {
	svc := client.New(root.serverURL)
	prompter := terminal.NewPrompter(root.stdin, root.stdout)
	notifier := terminal.NewNotifier(root.stderr)
	store := review.NewStore(svc)
	workflow := review.NewWorkflow(svc, svc, store, notifier)
	return &app{
		root:     root,
		prompter: prompter,
		notifier: notifier,
		store:    store,
		workflow: workflow,
		actions:  review.NewActions(workflow, svc, store, prompter, display, notifier),
	}
}

// load refreshes the record set, surfacing a failure as a notice
func (a *app) load(ctx context.Context) error {
	if err := a.store.Refresh(ctx); err != nil {
		a.notifier.Notify(review.Notice{Level: review.LevelError, Message: err.Error()})
		return err
	}
	return nil
}

// find resolves a row number from the list command, or a record ID
func (a *app) find(ref string) (expense.Record, error) {
	records := a.store.All()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(records) {
		return records[n-1], nil
	}
	for _, r := range records {
		if r.ID == ref {
			return r, nil
		}
	}
	return expense.Record{}, &expense.ValidationError{Detail: fmt.Sprintf("no record %q; use a row number from list or a record ID", ref)}
}

// review walks the open draft through the prompts and saves it after confirmation
func (a *app) review(ctx context.Context, title string) error {
	draft, ok := a.workflow.Draft()
	if !ok {
		return errors.New("no record is being reviewed")
	}
	fmt.Fprintln(a.root.stdout, title)

	for {
		fields := draft.Fields
		if err := a.prompter.ReviewFields(ctx, &fields); err != nil {
			a.workflow.Cancel()
			return err
		}
		if err := a.workflow.Update(func(f *expense.Fields) { *f = fields }); err != nil {
			return err
		}

		save, err := a.prompter.Confirm(ctx, fmt.Sprintf("Save %s %s on %s?", fields.Merchant, expense.FormatMoney(fields.Amount), fields.IssueDate))
		if err != nil {
			a.workflow.Cancel()
			return err
		}
		if !save {
			a.workflow.Cancel()
			a.notifier.Notify(review.Notice{Level: review.LevelInfo, Message: "Review cancelled, nothing saved"})
			return nil
		}

		result, err := a.workflow.Save(ctx)
		if err == nil {
			if result.ShowList {
				fmt.Fprintln(a.root.stdout, terminal.RenderRecords(a.store.All()))
			}
			return nil
		}
		var verr *expense.ValidationError
		var perr *expense.PersistenceError
		if !errors.As(err, &verr) && !errors.As(err, &perr) {
			return err
		}
		retry, cerr := a.prompter.Confirm(ctx, "Edit and try again?")
		if cerr != nil || !retry {
			a.workflow.Cancel()
			return err
		}
		draft, _ = a.workflow.Draft()
	}
}

type filterConfig struct {
	from        string
	to          string
	costCenters string
}

func (c *filterConfig) register(fs *ff.FlagSet) {
	fs.StringVar(&c.from, 0, "from", "", "only records issued on or after YYYY-MM-DD")
	fs.StringVar(&c.to, 0, "to", "", "only records issued on or before YYYY-MM-DD")
	fs.StringVar(&c.costCenters, 0, "cost-center", "", "comma-separated cost centers")
}

func (c filterConfig) filter() (expense.Filter, error) {
	var f expense.Filter
	var err error
	if c.from != "" {
		if f.From, err = expense.ParseDate(c.from); err != nil {
			return f, err
		}
	}
	if c.to != "" {
		if f.To, err = expense.ParseDate(c.to); err != nil {
			return f, err
		}
	}
	for _, name := range splitList(c.costCenters) {
		cc, err := expense.ParseCostCenter(name)
		if err != nil {
			return f, err
		}
		f.CostCenters = append(f.CostCenters, cc)
	}
	return f, nil
}

func newCaptureCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("capture").SetParent(root.flags)
	return &ff.Command{
		Name:      "capture",
		Usage:     "reimbursement-tracker capture <FILE>",
		ShortHelp: "analyze a receipt, review the fields and save the record",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("capture needs exactly one receipt file")
			}
			a := newApp(root, nil)
			if err := a.workflow.Select(review.PathFile{Path: args[0]}); err != nil {
				return err
			}
			fmt.Fprintf(root.stdout, "Analyzing %s...\n", args[0])
			if _, err := a.workflow.Analyze(ctx); err != nil {
				return err
			}
			return a.review(ctx, "Review the new record (press Enter to keep a value):")
		},
	}
}

func newListCommand(root *rootConfig) *ff.Command {
	var filter filterConfig
	fs := ff.NewFlagSet("list").SetParent(root.flags)
	filter.register(fs)
	return &ff.Command{
		Name:      "list",
		Usage:     "reimbursement-tracker list [FLAGS]",
		ShortHelp: "show stored records",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			f, err := filter.filter()
			if err != nil {
				return err
			}
			a := newApp(root, nil)
			if err := a.load(ctx); err != nil {
				return err
			}
			fmt.Fprintln(root.stdout, terminal.RenderRecords(f.Apply(a.store.All())))
			return nil
		},
	}
}

func newEditCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("edit").SetParent(root.flags)
	return &ff.Command{
		Name:      "edit",
		Usage:     "reimbursement-tracker edit <ROW|ID>",
		ShortHelp: "edit a stored record",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("edit needs a row number or record ID")
			}
			a := newApp(root, nil)
			if err := a.load(ctx); err != nil {
				return err
			}
			rec, err := a.find(args[0])
			if err != nil {
				return err
			}
			if err := a.actions.Edit(rec); err != nil {
				return err
			}
			return a.review(ctx, fmt.Sprintf("Editing %s (press Enter to keep a value):", rec.FileName))
		},
	}
}

func newDeleteCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("delete").SetParent(root.flags)
	return &ff.Command{
		Name:      "delete",
		Usage:     "reimbursement-tracker delete <ROW|ID>",
		ShortHelp: "delete a stored record after confirmation",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("delete needs a row number or record ID")
			}
			a := newApp(root, nil)
			if err := a.load(ctx); err != nil {
				return err
			}
			rec, err := a.find(args[0])
			if err != nil {
				return err
			}
			deleted, err := a.actions.Delete(ctx, rec)
			if err != nil {
				return err
			}
			if !deleted {
				a.notifier.Notify(review.Notice{Level: review.LevelInfo, Message: "Nothing deleted"})
			}
			return nil
		},
	}
}

func newViewCommand(root *rootConfig) *ff.Command {
	var (
		dir    string
		opener string
	)
	fs := ff.NewFlagSet("view").SetParent(root.flags)
	fs.StringVar(&dir, 0, "dir", os.TempDir(), "directory the receipt is written to")
	fs.StringVar(&opener, 0, "open", "", "command that opens the receipt, e.g. xdg-open")
	return &ff.Command{
		Name:      "view",
		Usage:     "reimbursement-tracker view [FLAGS] <ROW|ID>",
		ShortHelp: "open the stored receipt of a record",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("view needs a row number or record ID")
			}
			display := terminal.FileDisplay{Dir: dir, Opener: strings.Fields(opener), Out: root.stdout}
			a := newApp(root, display)
			if err := a.load(ctx); err != nil {
				return err
			}
			rec, err := a.find(args[0])
			if err != nil {
				return err
			}
			return a.actions.ViewReceipt(ctx, rec)
		},
	}
}

func newDashboardCommand(root *rootConfig) *ff.Command {
	var filter filterConfig
	fs := ff.NewFlagSet("dashboard").SetParent(root.flags)
	filter.register(fs)
	return &ff.Command{
		Name:      "dashboard",
		Usage:     "reimbursement-tracker dashboard [FLAGS]",
		ShortHelp: "show spend metrics",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			f, err := filter.filter()
			if err != nil {
				return err
			}
			a := newApp(root, nil)
			if err := a.load(ctx); err != nil {
				return err
			}
			metrics := a.store.Metrics()
			if !f.From.IsZero() || !f.To.IsZero() || len(f.CostCenters) > 0 {
				metrics = expense.Aggregate(f.Apply(a.store.All()))
			}
			fmt.Fprintln(root.stdout, terminal.RenderDashboard(metrics))
			return nil
		},
	}
}

func newExportCommand(root *rootConfig) *ff.Command {
	var (
		filter filterConfig
		out    string
	)
	fs := ff.NewFlagSet("export").SetParent(root.flags)
	filter.register(fs)
	fs.StringVar(&out, 'o', "out", "reimbursements.xlsx", "output workbook")
	return &ff.Command{
		Name:      "export",
		Usage:     "reimbursement-tracker export [FLAGS]",
		ShortHelp: "write records and metrics to an XLSX workbook",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			f, err := filter.filter()
			if err != nil {
				return err
			}
			a := newApp(root, nil)
			if err := a.load(ctx); err != nil {
				return err
			}
			records := f.Apply(a.store.All())

			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := export.WriteXLSX(file, records, expense.Aggregate(records)); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", out, err)
			}
			a.notifier.Notify(review.Notice{Level: review.LevelSuccess, Message: fmt.Sprintf("Exported %d records to %s", len(records), out)})
			return nil
		},
	}
}
