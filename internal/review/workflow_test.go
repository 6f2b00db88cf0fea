package review

import (
	"context"
	"errors"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

var _ = ginkgo.Describe("Workflow", func() {
	var (
		ctx      context.Context
		svc      *mockService
		store    *Store
		notifier *recordingNotifier
		workflow *Workflow
		file     *memFile
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		svc = &mockService{
			extracted: &expense.Extracted{
				InvoiceNumber: "000123",
				Merchant:      "Cafe X",
				Amount:        decimal.RequireFromString("12.50"),
				IssueDate:     expense.NewDate(2024, time.January, 5),
			},
		}
		store = NewStore(svc)
		notifier = &recordingNotifier{}
		workflow = NewWorkflow(svc, svc, store, notifier)
		file = &memFile{name: "nota.jpg", contentType: "image/jpeg", data: []byte("jpeg bytes")}
	})

	ginkgo.It("starts idle", func() {
		Expect(workflow.State()).To(Equal(Idle))
		_, ok := workflow.Draft()
		Expect(ok).To(BeFalse())
	})

	ginkgo.Describe("Select", func() {
		ginkgo.It("moves to Selecting and keeps the file", func() {
			Expect(workflow.Select(file)).To(Succeed())
			Expect(workflow.State()).To(Equal(Selecting))
			Expect(workflow.Selected()).To(Equal(file))
		})

		ginkgo.It("rejects a missing file", func() {
			var verr *expense.ValidationError
			Expect(errors.As(workflow.Select(nil), &verr)).To(BeTrue())
			Expect(workflow.State()).To(Equal(Idle))
		})
	})

	ginkgo.Describe("Analyze", func() {
		ginkgo.When("no file is selected", func() {
			ginkgo.It("fails without changing state or calling the service", func() {
				_, err := workflow.Analyze(ctx)
				var verr *expense.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Detail).To(Equal("no file selected"))
				Expect(workflow.State()).To(Equal(Idle))
				Expect(svc.analyzeCalls).To(BeZero())
				Expect(notifier.errors()).To(ConsistOf("no file selected"))
			})
		})

		ginkgo.When("analysis succeeds", func() {
			var (
				draft Draft
				err   error
			)

			ginkgo.BeforeEach(func() {
				Expect(workflow.Select(file)).To(Succeed())
			})

			ginkgo.JustBeforeEach(func() {
				draft, err = workflow.Analyze(ctx)
			})

			ginkgo.It("opens a new draft for review", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(workflow.State()).To(Equal(Reviewing))
				Expect(draft.ID).To(BeEmpty())
				Expect(draft.Route()).To(Equal(RouteCreate))
			})

			ginkgo.It("merges the extracted fields, default category, file name and inline receipt", func() {
				Expect(draft.Merchant).To(Equal("Cafe X"))
				Expect(draft.InvoiceNumber).To(Equal("000123"))
				Expect(draft.Amount.StringFixed(2)).To(Equal("12.50"))
				Expect(draft.IssueDate.String()).To(Equal("2024-01-05"))
				Expect(draft.CostCenter).To(Equal(expense.Food))
				Expect(draft.FileName).To(Equal("nota.jpg"))
				Expect(draft.ReceiptInline).To(Equal(expense.EncodeInline("image/jpeg", []byte("jpeg bytes"))))
			})

			ginkgo.It("does not persist anything", func() {
				Expect(svc.persistenceCalls()).To(BeZero())
			})
		})

		ginkgo.When("the file is empty", func() {
			ginkgo.BeforeEach(func() {
				file.data = nil
				Expect(workflow.Select(file)).To(Succeed())
			})

			ginkgo.It("still produces a draft with an empty receipt payload", func() {
				draft, err := workflow.Analyze(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(draft.ReceiptInline).To(Equal("data:image/jpeg;base64,"))
			})
		})

		ginkgo.When("the analysis service fails", func() {
			ginkgo.BeforeEach(func() {
				svc.analyzeErr = &expense.AnalysisError{Detail: "all models failed"}
				Expect(workflow.Select(file)).To(Succeed())
			})

			ginkgo.It("returns to Idle, keeps the file and surfaces the detail", func() {
				_, err := workflow.Analyze(ctx)
				var aerr *expense.AnalysisError
				Expect(errors.As(err, &aerr)).To(BeTrue())
				Expect(workflow.State()).To(Equal(Idle))
				Expect(workflow.Selected()).To(Equal(file))
				_, ok := workflow.Draft()
				Expect(ok).To(BeFalse())
				Expect(notifier.errors()).To(ConsistOf("all models failed"))
			})

			ginkgo.It("can be retried with the same file", func() {
				_, err := workflow.Analyze(ctx)
				Expect(err).To(HaveOccurred())
				svc.analyzeErr = nil
				_, err = workflow.Analyze(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(workflow.State()).To(Equal(Reviewing))
			})
		})

		ginkgo.When("the analyzer returns an untyped error", func() {
			ginkgo.BeforeEach(func() {
				svc.analyzeErr = errBoom
				Expect(workflow.Select(file)).To(Succeed())
			})

			ginkgo.It("reports it as an AnalysisError", func() {
				_, err := workflow.Analyze(ctx)
				var aerr *expense.AnalysisError
				Expect(errors.As(err, &aerr)).To(BeTrue())
				Expect(err).To(MatchError(errBoom))
			})
		})

		ginkgo.When("the file cannot be read", func() {
			ginkgo.BeforeEach(func() {
				file.openErr = errBoom
				Expect(workflow.Select(file)).To(Succeed())
			})

			ginkgo.It("fails with an EncodingError and returns to Idle", func() {
				_, err := workflow.Analyze(ctx)
				var eerr *expense.EncodingError
				Expect(errors.As(err, &eerr)).To(BeTrue())
				Expect(workflow.State()).To(Equal(Idle))
				Expect(workflow.Selected()).To(Equal(file))
			})
		})

		ginkgo.When("an analysis is already in flight", func() {
			var done chan error

			ginkgo.BeforeEach(func() {
				svc.analyzeGate = make(chan struct{})
				svc.analyzeEntered = make(chan struct{}, 1)
				Expect(workflow.Select(file)).To(Succeed())

				done = make(chan error, 1)
				go func() {
					defer ginkgo.GinkgoRecover()
					_, err := workflow.Analyze(ctx)
					done <- err
				}()
				Eventually(svc.analyzeEntered).Should(Receive())
			})

			ginkgo.It("ignores the second trigger", func() {
				Expect(workflow.State()).To(Equal(Analyzing))
				_, err := workflow.Analyze(ctx)
				Expect(err).To(MatchError(ErrBusy))

				close(svc.analyzeGate)
				Eventually(done).Should(Receive(BeNil()))
				Expect(svc.analyzeCalls).To(Equal(1))
				Expect(workflow.State()).To(Equal(Reviewing))
			})

			ginkgo.It("does not allow a new selection", func() {
				Expect(workflow.Select(&memFile{name: "other.png"})).To(MatchError(ErrBusy))
				close(svc.analyzeGate)
				Eventually(done).Should(Receive(BeNil()))
				Expect(workflow.Selected()).To(Equal(file))
			})
		})
	})

	ginkgo.Describe("Save", func() {
		ginkgo.When("saving a new draft (scenario A)", func() {
			var (
				before expense.Metrics
				result *SaveResult
				err    error
			)

			ginkgo.BeforeEach(func() {
				svc.records = []expense.Record{{ID: "1", Fields: expense.Fields{Amount: decimal.RequireFromString("7.50"), CostCenter: expense.Transport}}}
				Expect(store.Refresh(ctx)).To(Succeed())
				before = store.Metrics()

				Expect(workflow.Select(file)).To(Succeed())
				draft, analyzeErr := workflow.Analyze(ctx)
				Expect(analyzeErr).NotTo(HaveOccurred())
				Expect(draft.CostCenter).To(Equal(expense.Food))
			})

			ginkgo.JustBeforeEach(func() {
				result, err = workflow.Save(ctx)
			})

			ginkgo.It("creates the record exactly once with the reviewed fields", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(svc.creates).To(HaveLen(1))
				Expect(svc.updates).To(BeEmpty())
				Expect(svc.creates[0].Merchant).To(Equal("Cafe X"))
				Expect(svc.creates[0].Amount.StringFixed(2)).To(Equal("12.50"))
				Expect(svc.creates[0].IssueDate.String()).To(Equal("2024-01-05"))
				Expect(svc.creates[0].CostCenter).To(Equal(expense.Food))
			})

			ginkgo.It("returns to Idle and shows the list", func() {
				Expect(workflow.State()).To(Equal(Idle))
				_, ok := workflow.Draft()
				Expect(ok).To(BeFalse())
				Expect(result.Route).To(Equal(RouteCreate))
				Expect(result.ShowList).To(BeTrue())
				Expect(result.Record.ID).To(Equal("new-id"))
			})

			ginkgo.It("refreshes the store so the total grows by the new amount", func() {
				Expect(svc.listCalls).To(Equal(2))
				Expect(store.Metrics().Total.Sub(before.Total).StringFixed(2)).To(Equal("12.50"))
				Expect(store.Metrics().Count).To(Equal(before.Count + 1))
				Expect(store.Metrics().ByCategory[expense.Food].StringFixed(2)).To(Equal("12.50"))
			})
		})

		ginkgo.When("saving an edited record (scenario B)", func() {
			var existing expense.Record

			ginkgo.BeforeEach(func() {
				existing = expense.Record{ID: "7", Fields: expense.Fields{
					Merchant:      "Hotel",
					Amount:        decimal.RequireFromString("20.00"),
					IssueDate:     expense.NewDate(2024, time.March, 1),
					CostCenter:    expense.Lodging,
					FileName:      "hotel.pdf",
					ReceiptInline: "data:application/pdf;base64,JVBERg==",
				}}
				svc.records = []expense.Record{existing}
				Expect(workflow.Edit(existing)).To(Succeed())
				Expect(workflow.Update(func(f *expense.Fields) {
					f.Amount = decimal.RequireFromString("25.00")
				})).To(Succeed())
			})

			ginkgo.It("updates id 7 and never creates", func() {
				result, err := workflow.Save(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(svc.creates).To(BeEmpty())
				Expect(svc.updates).To(HaveLen(1))
				Expect(svc.updates[0].id).To(Equal("7"))
				Expect(svc.updates[0].fields.Amount.StringFixed(2)).To(Equal("25.00"))
				Expect(result.Route).To(Equal(RouteUpdate))
				Expect(result.ShowList).To(BeFalse())
			})

			ginkgo.It("carries the stored receipt through the edit", func() {
				_, err := workflow.Save(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(svc.updates[0].fields.ReceiptInline).To(Equal(existing.ReceiptInline))
				Expect(svc.updates[0].fields.FileName).To(Equal("hotel.pdf"))
			})

			ginkgo.It("refreshes the store", func() {
				_, err := workflow.Save(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(store.All()).To(HaveLen(1))
				Expect(store.Metrics().Total.StringFixed(2)).To(Equal("25.00"))
			})
		})

		ginkgo.When("the service rejects the save", func() {
			var before Draft

			ginkgo.BeforeEach(func() {
				svc.createErr = &expense.PersistenceError{Detail: "Error creating record"}
				Expect(workflow.Select(file)).To(Succeed())
				_, err := workflow.Analyze(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(workflow.Update(func(f *expense.Fields) {
					f.Merchant = "Typed by hand"
					f.CostCenter = expense.Equipment
				})).To(Succeed())
				before, _ = workflow.Draft()
			})

			ginkgo.It("stays in Reviewing with the draft unchanged", func() {
				_, err := workflow.Save(ctx)
				var perr *expense.PersistenceError
				Expect(errors.As(err, &perr)).To(BeTrue())
				Expect(workflow.State()).To(Equal(Reviewing))
				after, ok := workflow.Draft()
				Expect(ok).To(BeTrue())
				Expect(after).To(Equal(before))
			})

			ginkgo.It("surfaces the detail verbatim and does not refresh", func() {
				_, _ = workflow.Save(ctx)
				Expect(notifier.errors()).To(ConsistOf("Error creating record"))
				Expect(svc.listCalls).To(BeZero())
			})

			ginkgo.It("can be retried", func() {
				_, _ = workflow.Save(ctx)
				svc.createErr = nil
				_, err := workflow.Save(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(svc.creates).To(HaveLen(2))
			})
		})

		ginkgo.When("the amount is negative", func() {
			ginkgo.BeforeEach(func() {
				Expect(workflow.Edit(expense.Record{ID: "7"})).To(Succeed())
				Expect(workflow.Update(func(f *expense.Fields) {
					f.Amount = decimal.RequireFromString("-1")
				})).To(Succeed())
			})

			ginkgo.It("refuses to save and keeps reviewing", func() {
				_, err := workflow.Save(ctx)
				var verr *expense.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(workflow.State()).To(Equal(Reviewing))
				Expect(svc.persistenceCalls()).To(BeZero())
			})
		})

		ginkgo.When("the refresh after saving fails", func() {
			ginkgo.BeforeEach(func() {
				svc.records = []expense.Record{{ID: "1", Fields: expense.Fields{Amount: decimal.RequireFromString("3")}}}
				Expect(store.Refresh(ctx)).To(Succeed())
				svc.listErr = &expense.PersistenceError{Detail: "record service unavailable"}
				Expect(workflow.Edit(svc.records[0])).To(Succeed())
			})

			ginkgo.It("still reports the save and keeps the previous set", func() {
				result, err := workflow.Save(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Route).To(Equal(RouteUpdate))
				Expect(store.All()).To(HaveLen(1))
				Expect(notifier.errors()).To(ConsistOf(ContainSubstring("record service unavailable")))
			})
		})

		ginkgo.When("a save is already in flight", func() {
			var done chan error

			ginkgo.BeforeEach(func() {
				Expect(workflow.Select(file)).To(Succeed())
				_, err := workflow.Analyze(ctx)
				Expect(err).NotTo(HaveOccurred())

				svc.mu.Lock()
				svc.createGate = make(chan struct{})
				svc.createEntered = make(chan struct{}, 1)
				svc.mu.Unlock()

				done = make(chan error, 1)
				go func() {
					defer ginkgo.GinkgoRecover()
					_, err := workflow.Save(ctx)
					done <- err
				}()
				Eventually(svc.createEntered).Should(Receive())
			})

			ginkgo.It("ignores the second trigger", func() {
				Expect(workflow.State()).To(Equal(Saving))
				_, err := workflow.Save(ctx)
				Expect(err).To(MatchError(ErrBusy))
				Expect(workflow.State()).To(Equal(Saving))
				Expect(workflow.Cancel()).To(MatchError(ErrBusy))

				close(svc.createGate)
				Eventually(done).Should(Receive(BeNil()))
				Expect(svc.createCalls()).To(Equal(1))
				Expect(workflow.State()).To(Equal(Idle))
			})
		})

		ginkgo.When("nothing is under review", func() {
			ginkgo.It("returns a validation error", func() {
				_, err := workflow.Save(ctx)
				var verr *expense.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
			})
		})
	})

	ginkgo.Describe("Cancel", func() {
		ginkgo.BeforeEach(func() {
			svc.records = []expense.Record{{ID: "7", Fields: expense.Fields{Amount: decimal.RequireFromString("20")}}}
			Expect(store.Refresh(ctx)).To(Succeed())
			Expect(workflow.Edit(svc.records[0])).To(Succeed())
			Expect(workflow.Update(func(f *expense.Fields) { f.Merchant = "changed" })).To(Succeed())
		})

		ginkgo.It("discards the draft without any persistence call", func() {
			Expect(workflow.Cancel()).To(Succeed())
			Expect(workflow.State()).To(Equal(Idle))
			_, ok := workflow.Draft()
			Expect(ok).To(BeFalse())
			Expect(svc.persistenceCalls()).To(BeZero())
			Expect(store.All()).To(Equal(svc.records))
			Expect(svc.listCalls).To(Equal(1))
		})
	})

	ginkgo.Describe("Edit", func() {
		ginkgo.It("copies the record's fields and id", func() {
			rec := expense.Record{ID: "7", Fields: expense.Fields{Merchant: "Hotel", CostCenter: expense.Lodging}}
			Expect(workflow.Edit(rec)).To(Succeed())
			draft, ok := workflow.Draft()
			Expect(ok).To(BeTrue())
			Expect(draft.ID).To(Equal("7"))
			Expect(draft.Fields).To(Equal(rec.Fields))
			Expect(svc.analyzeCalls).To(BeZero())
		})

		ginkgo.It("refuses a second open draft", func() {
			Expect(workflow.Edit(expense.Record{ID: "1"})).To(Succeed())
			var verr *expense.ValidationError
			Expect(errors.As(workflow.Edit(expense.Record{ID: "2"}), &verr)).To(BeTrue())
			draft, _ := workflow.Draft()
			Expect(draft.ID).To(Equal("1"))
		})
	})

	ginkgo.Describe("Update", func() {
		ginkgo.It("cannot replace the stored receipt", func() {
			Expect(workflow.Edit(expense.Record{ID: "1", Fields: expense.Fields{ReceiptInline: "data:image/png;base64,AA=="}})).To(Succeed())
			Expect(workflow.Update(func(f *expense.Fields) { f.ReceiptInline = "" })).To(Succeed())
			draft, _ := workflow.Draft()
			Expect(draft.ReceiptInline).To(Equal("data:image/png;base64,AA=="))
		})

		ginkgo.It("requires an open draft", func() {
			var verr *expense.ValidationError
			Expect(errors.As(workflow.Update(func(*expense.Fields) {}), &verr)).To(BeTrue())
		})
	})
})

var _ = ginkgo.DescribeTable("Draft routing",
	func(d Draft, want Route) {
		Expect(d.Route()).To(Equal(want))
	},
	ginkgo.Entry("new draft", Draft{}, RouteCreate),
	ginkgo.Entry("new draft with fields", Draft{Fields: expense.Fields{Merchant: "x"}}, RouteCreate),
	ginkgo.Entry("editing draft", Draft{ID: "7"}, RouteUpdate),
	ginkgo.Entry("editing draft with opaque id", Draft{ID: "3f1c2e9a"}, RouteUpdate),
)
