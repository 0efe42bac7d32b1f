package scanning

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockScanner is a mock implementation of Scanner
type mockScanner struct {
	ext     *Extraction
	scanErr error
}

func (m *mockScanner) ScanBill(ctx context.Context, imageData []byte, contentType string) (*Extraction, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	return m.ext, nil
}

func (m *mockScanner) Close() error {
	return nil
}

var _ = Describe("Gateway", func() {
	var (
		scanner *mockScanner
		gateway *Gateway
		ext     *Extraction
		err     error
	)

	BeforeEach(func() {
		scanner = &mockScanner{
			ext: &Extraction{
				Description: "Dinner",
				IsBill:      true,
				Items:       []ItemData{{Name: "Pasta", Quantity: 1, UnitPrice: 12, TotalPrice: 12}},
				Summary:     SummaryData{Currency: "USD", TotalAmount: 12},
			},
		}
		gateway = NewGateway(scanner)
	})

	JustBeforeEach(func() {
		ext, err = gateway.Scan(context.Background(), []byte("fake image"), "image/jpeg")
	})

	When("the service returns a well-formed bill", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should pass the extraction through", func() {
			Expect(ext.Description).To(Equal("Dinner"))
			Expect(ext.Items).To(HaveLen(1))
		})
	})

	When("the service says the image is not a bill", func() {
		BeforeEach(func() {
			scanner.ext = &Extraction{IsBill: false}
		})

		It("returns ErrNotABill", func() {
			Expect(err).To(MatchError(ErrNotABill))
		})

		It("classifies as not_a_bill", func() {
			Expect(ClassifyFailure(err)).To(Equal(FailureNotABill))
		})

		It("is retryable", func() {
			Expect(ClassifyFailure(err).Retryable()).To(BeTrue())
		})
	})

	When("the service signals rate limiting", func() {
		BeforeEach(func() {
			scanner.ext = &Extraction{IsBill: false, Error: "RATE_LIMIT_EXCEEDED"}
		})

		It("returns ErrRateLimited", func() {
			Expect(err).To(MatchError(ErrRateLimited))
		})

		It("classifies as rate_limited", func() {
			Expect(ClassifyFailure(err)).To(Equal(FailureRateLimited))
		})

		It("is not retryable", func() {
			Expect(ClassifyFailure(err).Retryable()).To(BeFalse())
		})
	})

	When("the service reports some other error", func() {
		BeforeEach(func() {
			scanner.ext = &Extraction{IsBill: true, Error: "image too blurry"}
		})

		It("returns a transient error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(ErrNotABill))
			Expect(err).NotTo(MatchError(ErrRateLimited))
		})

		It("classifies as transient", func() {
			Expect(ClassifyFailure(err)).To(Equal(FailureTransient))
		})
	})

	When("the backend call fails outright", func() {
		BeforeEach(func() {
			scanner.scanErr = errors.New("connection refused")
		})

		It("returns a transient error wrapping the cause", func() {
			Expect(err).To(MatchError(scanner.scanErr))
			Expect(ClassifyFailure(err)).To(Equal(FailureTransient))
		})
	})

	When("classifying an arbitrary unrecognized error", func() {
		It("defaults to transient", func() {
			Expect(ClassifyFailure(errors.New("boom"))).To(Equal(FailureTransient))
		})
	})
})
