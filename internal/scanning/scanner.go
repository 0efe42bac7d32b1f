package scanning

import "context"

// Extraction is the structured payload a vision model returns for one bill
// image. Fields the model omitted or mis-typed are zero-valued; nothing in
// here has been validated beyond lenient JSON decoding.
type Extraction struct {
	Description string       `json:"description"`
	Category    CategoryData `json:"category"`
	Items       []ItemData   `json:"items"`
	Summary     SummaryData  `json:"summary"`
	IsBill      bool         `json:"isBill"`
	Error       string       `json:"error,omitempty"`
}

// CategoryData is an opaque classification label with a display-icon name.
type CategoryData struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// ItemData is one extracted line item.
type ItemData struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// TaxData is one extracted tax line. Amount is authoritative; no rate
// decomposition is modeled.
type TaxData struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// SummaryData holds the bill-level figures.
type SummaryData struct {
	Tax              []TaxData `json:"tax"`
	TotalAmount      float64   `json:"totalAmount"`
	Currency         string    `json:"currency"`
	OriginalCurrency string    `json:"originalCurrency,omitempty"`
}

// Scanner defines the interface for bill extraction backends
type Scanner interface {
	// ScanBill analyzes a bill image/PDF and extracts itemized data
	ScanBill(ctx context.Context, imageData []byte, contentType string) (*Extraction, error)
	// Close closes the scanner and releases resources
	Close() error
}
