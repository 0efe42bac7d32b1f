package bill

import (
	"strings"
	"time"

	"github.com/zombor/bill-analyzer/internal/scanning"
)

// Normalize converts an extraction payload into a structurally valid Bill.
// It never fails: absent or malformed fields have already been defaulted by
// the lenient decoder, and everything else gets a zero value here. Whether
// the payload was a bill at all is the gateway's call, not this function's.
//
// The currency defaults to fallbackCurrency (typically the user's locale
// currency) when the model detected none. OriginalCurrency is captured from
// the detected currency exactly once: a payload that already carries one,
// such as persisted fullData being re-normalized, keeps it untouched even if
// the currency was edited since.
func Normalize(ext *scanning.Extraction, fallbackCurrency string, now time.Time) Bill {
	b := Bill{
		Date:  now,
		Items: []LineItem{},
		Summary: Summary{
			Tax: []TaxLine{},
		},
	}

	if ext == nil {
		b.Summary.Currency = normalizeCode(fallbackCurrency)
		b.Summary.OriginalCurrency = b.Summary.Currency
		return b
	}

	b.Description = ext.Description
	b.Category = CategoryTag{Name: ext.Category.Name, Icon: ext.Category.Icon}

	for _, item := range ext.Items {
		b.Items = append(b.Items, LineItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}

	for _, tax := range ext.Summary.Tax {
		b.Summary.Tax = append(b.Summary.Tax, TaxLine{
			Name:   tax.Name,
			Amount: tax.Amount,
		})
	}

	// The extracted total is trusted as given; the model may legitimately
	// report a total that differs from the item sum (discounts, rounding).
	b.Summary.TotalAmount = ext.Summary.TotalAmount

	b.Summary.Currency = normalizeCode(ext.Summary.Currency)
	if b.Summary.Currency == "" {
		b.Summary.Currency = normalizeCode(fallbackCurrency)
	}

	b.Summary.OriginalCurrency = normalizeCode(ext.Summary.OriginalCurrency)
	if b.Summary.OriginalCurrency == "" {
		b.Summary.OriginalCurrency = b.Summary.Currency
	}

	return b
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
