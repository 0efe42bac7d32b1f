package bill

import (
	"strconv"
	"strings"
)

// Editor operations transform a bill value and return a new one; the input
// is never mutated and no ambient state is involved. Items and taxes are
// addressed by position in the current sequence, so callers must re-resolve
// indexes against a freshly listed sequence before each edit — positions
// shift under inserts and deletes. An out-of-range delete or update target
// is a silent no-op.

// ItemDraft carries user-entered item fields as typed. Unparseable numbers
// coerce to 0.
type ItemDraft struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// TaxDraft carries a user-entered tax line.
type TaxDraft struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// UpsertItem replaces the item at index, or appends when index does not
// identify an existing position (pass -1 to append). The stored total price
// is always recomputed from the draft's quantity and unit price; any total
// the caller supplied is ignored.
func UpsertItem(b Bill, draft ItemDraft, index int) Bill {
	out := b.Clone()

	qty := parseAmount(draft.Quantity)
	price := parseAmount(draft.UnitPrice)
	item := LineItem{
		Name:       draft.Name,
		Quantity:   qty,
		UnitPrice:  price,
		TotalPrice: qty * price,
	}

	if index >= 0 && index < len(out.Items) {
		out.Items[index] = item
	} else {
		out.Items = append(out.Items, item)
	}

	out.Summary.TotalAmount = RecomputeTotal(out)
	return out
}

// DeleteItem removes the item at index. Out-of-range indexes leave the bill
// unchanged apart from a total recompute.
func DeleteItem(b Bill, index int) Bill {
	out := b.Clone()
	if index >= 0 && index < len(out.Items) {
		out.Items = append(out.Items[:index], out.Items[index+1:]...)
	}
	out.Summary.TotalAmount = RecomputeTotal(out)
	return out
}

// UpsertTax replaces the tax line at index, or appends when index does not
// identify an existing position.
func UpsertTax(b Bill, draft TaxDraft, index int) Bill {
	out := b.Clone()

	tax := TaxLine{
		Name:   draft.Name,
		Amount: parseAmount(draft.Amount),
	}

	if index >= 0 && index < len(out.Summary.Tax) {
		out.Summary.Tax[index] = tax
	} else {
		out.Summary.Tax = append(out.Summary.Tax, tax)
	}

	out.Summary.TotalAmount = RecomputeTotal(out)
	return out
}

// DeleteTax removes the tax line at index. Out-of-range indexes are a no-op.
func DeleteTax(b Bill, index int) Bill {
	out := b.Clone()
	if index >= 0 && index < len(out.Summary.Tax) {
		out.Summary.Tax = append(out.Summary.Tax[:index], out.Summary.Tax[index+1:]...)
	}
	out.Summary.TotalAmount = RecomputeTotal(out)
	return out
}

// SetBaseCurrency corrects the bill's stated currency label. Amounts are not
// rescaled: a misdetected currency means the figures were right and the
// label was wrong. Display conversion is a separate, read-only layer.
// OriginalCurrency keeps recording what was first detected.
func SetBaseCurrency(b Bill, code string) Bill {
	out := b.Clone()
	out.Summary.Currency = strings.ToUpper(strings.TrimSpace(code))
	return out
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
