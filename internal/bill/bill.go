package bill

import "time"

// LineItem is one purchased item on a bill. TotalPrice equals
// Quantity*UnitPrice for anything created or edited through the editor;
// extraction output is trusted as given since the model may report a
// discounted total.
type LineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// TaxLine is one tax or surcharge line. The amount is authoritative.
type TaxLine struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// CategoryTag is an opaque classification label. The icon is a display
// identifier for the rendering layer and is never validated here.
type CategoryTag struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Summary holds the bill-level figures. OriginalCurrency records the
// currency detected at creation time and survives later corrections to
// Currency.
type Summary struct {
	Currency         string    `json:"currency"`
	OriginalCurrency string    `json:"original_currency"`
	TotalAmount      float64   `json:"total_amount"`
	Tax              []TaxLine `json:"tax"`
}

// Bill is the canonical normalized representation of one analyzed receipt.
// ID is empty until the bill is first persisted; an unsaved bill has no
// identity beyond its in-memory value.
type Bill struct {
	ID          string      `json:"id,omitempty"`
	Date        time.Time   `json:"date"`
	Description string      `json:"description"`
	Category    CategoryTag `json:"category"`
	Items       []LineItem  `json:"items"`
	Summary     Summary     `json:"summary"`
	ImageRef    string      `json:"image_ref,omitempty"`
}

// Clone returns a deep copy so editor operations never alias the slices of
// the bill they were given.
func (b Bill) Clone() Bill {
	out := b
	out.Items = make([]LineItem, len(b.Items))
	copy(out.Items, b.Items)
	out.Summary.Tax = make([]TaxLine, len(b.Summary.Tax))
	copy(out.Summary.Tax, b.Summary.Tax)
	return out
}
