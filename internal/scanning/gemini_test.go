package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ = Describe("tryModels", func() {
	var (
		models  []string
		answers map[string][]error
		calls   []string
		err     error
	)

	BeforeEach(func() {
		models = []string{"primary", "secondary"}
		answers = map[string][]error{}
		calls = nil
	})

	JustBeforeEach(func() {
		err = tryModels(context.Background(), models, 3, time.Millisecond, func(ctx context.Context, model string) error {
			calls = append(calls, model)
			queue := answers[model]
			if len(queue) == 0 {
				return nil
			}
			answers[model] = queue[1:]
			return queue[0]
		})
	})

	When("the first model answers", func() {
		It("calls it once", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"primary"}))
		})
	})

	When("the first model is out of quota once", func() {
		BeforeEach(func() {
			answers["primary"] = []error{status.Error(codes.ResourceExhausted, "quota exceeded")}
		})

		It("retries the same model", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"primary", "primary"}))
		})
	})

	When("the first model keeps failing on quota", func() {
		BeforeEach(func() {
			quota := errors.New("googleapi: Error 429: Resource has been exhausted")
			answers["primary"] = []error{quota, quota, quota}
		})

		It("moves to the next model after three attempts", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"primary", "primary", "primary", "secondary"}))
		})
	})

	When("the first model does not exist", func() {
		BeforeEach(func() {
			answers["primary"] = []error{status.Error(codes.NotFound, "model not found")}
		})

		It("skips straight to the next model", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"primary", "secondary"}))
		})
	})

	When("a model fails for another reason", func() {
		BeforeEach(func() {
			answers["primary"] = []error{errors.New("internal server error 500")}
		})

		It("moves on to the next model without retrying", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"primary", "secondary"}))
		})
	})

	When("a model answers with something that is not receipt JSON", func() {
		BeforeEach(func() {
			_, parseErr := parseExtractedJSON("I could not read this receipt", time.Now())
			Expect(parseErr).To(HaveOccurred())
			answers["primary"] = []error{parseErr}
		})

		It("asks the next model", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"primary", "secondary"}))
		})
	})

	When("every model fails for another reason", func() {
		var setupErr error

		BeforeEach(func() {
			setupErr = errors.New("invalid argument")
			answers["primary"] = []error{setupErr}
			answers["secondary"] = []error{setupErr}
		})

		It("returns the last error", func() {
			Expect(err).To(MatchError(setupErr))
			Expect(err).To(MatchError(ContainSubstring("secondary")))
			Expect(calls).To(Equal([]string{"primary", "secondary"}))
		})
	})

	When("every model is missing", func() {
		BeforeEach(func() {
			missing := errors.New("404 not found")
			answers["primary"] = []error{missing}
			answers["secondary"] = []error{missing}
		})

		It("returns the last error", func() {
			Expect(err).To(MatchError(ContainSubstring("all models failed")))
		})
	})
})
