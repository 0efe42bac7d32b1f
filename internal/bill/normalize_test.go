package bill

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-analyzer/internal/scanning"
)

var _ = Describe("Normalize", func() {
	var (
		extraction *scanning.Extraction
		fallback   string
		now        time.Time
		bill       Bill
	)

	BeforeEach(func() {
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		fallback = "USD"
		extraction = &scanning.Extraction{
			IsBill:      true,
			Description: "Supermarket",
			Category:    scanning.CategoryData{Name: "Groceries", Icon: "cart"},
			Items: []scanning.ItemData{
				{Name: "Eggs", Quantity: 1, UnitPrice: 3.2, TotalPrice: 3.2},
			},
			Summary: scanning.SummaryData{
				Tax:         []scanning.TaxData{{Name: "VAT", Amount: 0.3}},
				TotalAmount: 3.5,
				Currency:    "eur",
			},
		}
	})

	JustBeforeEach(func() {
		bill = Normalize(extraction, fallback, now)
	})

	When("the extraction is complete", func() {
		It("carries the description and category", func() {
			Expect(bill.Description).To(Equal("Supermarket"))
			Expect(bill.Category.Name).To(Equal("Groceries"))
		})

		It("uppercases the detected currency", func() {
			Expect(bill.Summary.Currency).To(Equal("EUR"))
		})

		It("records the detected currency as the original", func() {
			Expect(bill.Summary.OriginalCurrency).To(Equal("EUR"))
		})

		It("trusts the extracted total as given", func() {
			Expect(bill.Summary.TotalAmount).To(Equal(3.5))
		})

		It("stamps the bill with the current time", func() {
			Expect(bill.Date).To(Equal(now))
		})

		It("leaves the bill without an identity", func() {
			Expect(bill.ID).To(BeEmpty())
		})
	})

	When("no currency was detected", func() {
		BeforeEach(func() {
			extraction.Summary.Currency = ""
		})

		It("falls back to the caller's currency", func() {
			Expect(bill.Summary.Currency).To(Equal("USD"))
		})

		It("records the fallback as the original currency", func() {
			Expect(bill.Summary.OriginalCurrency).To(Equal("USD"))
		})
	})

	When("the payload already carries an original currency", func() {
		BeforeEach(func() {
			// Persisted bill data being re-normalized after the user
			// corrected the currency label.
			extraction.Summary.Currency = "USD"
			extraction.Summary.OriginalCurrency = "EUR"
		})

		It("keeps the original currency untouched", func() {
			Expect(bill.Summary.Currency).To(Equal("USD"))
			Expect(bill.Summary.OriginalCurrency).To(Equal("EUR"))
		})
	})

	When("the extraction is nil", func() {
		BeforeEach(func() {
			extraction = nil
		})

		It("produces an empty but structurally valid bill", func() {
			Expect(bill.Items).NotTo(BeNil())
			Expect(bill.Items).To(BeEmpty())
			Expect(bill.Summary.Tax).NotTo(BeNil())
			Expect(bill.Summary.Currency).To(Equal("USD"))
		})
	})

	When("the extraction has no items or taxes", func() {
		BeforeEach(func() {
			extraction.Items = nil
			extraction.Summary.Tax = nil
		})

		It("yields empty slices, never nil", func() {
			Expect(bill.Items).NotTo(BeNil())
			Expect(bill.Summary.Tax).NotTo(BeNil())
		})
	})
})
