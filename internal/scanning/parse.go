package scanning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// billScanPrompt is the shared prompt used by all LLM providers for scanning bills
const billScanPrompt = `You are analyzing a photo of a receipt or bill. Run OCR on the image and return the result as JSON.

Return ONLY valid JSON in this exact shape:
{
  "description": "short description of the bill",
  "category": {"name": "Groceries", "icon": "cart"},
  "items": [
    {"name": "item name", "quantity": 1, "unit_price": 0.00, "total_price": 0.00}
  ],
  "summary": {
    "tax": [{"name": "VAT", "amount": 0.00}],
    "totalAmount": 0.00,
    "currency": "USD"
  },
  "isBill": true,
  "error": ""
}

Important:
- quantity, unit_price, total_price, amount and totalAmount must be numbers (not strings)
- currency must be the ISO 4217 code of the currency the bill is denominated in
- Set isBill to false if the image is not a receipt or bill, and put a short reason in error
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// looseNumber decodes JSON numbers, numeric strings, null, or garbage into a
// float64, defaulting to 0 rather than failing. Vision models routinely quote
// numbers or emit nulls for fields they could not read.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = looseNumber(v)
	return nil
}

// looseString decodes a JSON string, or stringifies scalar tokens the model
// emitted where a string was expected. Objects and arrays decode to "".
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		*l = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*l = looseString(str)
		return nil
	}
	*l = looseString(s)
	return nil
}

// looseBool is true only for a literal true or "true"; anything else is false.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	*b = looseBool(s == "true" || s == `"true"`)
	return nil
}

// Raw decode targets. Each composite swallows type mismatches so one bad
// field cannot poison the rest of the payload.

type rawCategory struct {
	Name looseString `json:"name"`
	Icon looseString `json:"icon"`
}

func (c *rawCategory) UnmarshalJSON(data []byte) error {
	type alias rawCategory
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*c = rawCategory(a)
	return nil
}

type rawItem struct {
	Name       looseString `json:"name"`
	Quantity   looseNumber `json:"quantity"`
	UnitPrice  looseNumber `json:"unit_price"`
	TotalPrice looseNumber `json:"total_price"`
}

func (i *rawItem) UnmarshalJSON(data []byte) error {
	type alias rawItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*i = rawItem(a)
	return nil
}

type rawItemList []rawItem

func (l *rawItemList) UnmarshalJSON(data []byte) error {
	var items []rawItem
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

type rawTax struct {
	Name   looseString `json:"name"`
	Amount looseNumber `json:"amount"`
}

func (t *rawTax) UnmarshalJSON(data []byte) error {
	type alias rawTax
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*t = rawTax(a)
	return nil
}

type rawTaxList []rawTax

func (l *rawTaxList) UnmarshalJSON(data []byte) error {
	var taxes []rawTax
	if err := json.Unmarshal(data, &taxes); err != nil {
		*l = nil
		return nil
	}
	*l = taxes
	return nil
}

type rawSummary struct {
	Tax              rawTaxList  `json:"tax"`
	TotalAmount      looseNumber `json:"totalAmount"`
	Currency         looseString `json:"currency"`
	OriginalCurrency looseString `json:"originalCurrency"`
}

func (s *rawSummary) UnmarshalJSON(data []byte) error {
	type alias rawSummary
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*s = rawSummary(a)
	return nil
}

type rawExtraction struct {
	Description looseString `json:"description"`
	Category    rawCategory `json:"category"`
	Items       rawItemList `json:"items"`
	Summary     rawSummary  `json:"summary"`
	IsBill      looseBool   `json:"isBill"`
	Error       looseString `json:"error"`
}

// parseBillJSON parses the JSON response from a vision model
func parseBillJSON(text string) (*Extraction, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw rawExtraction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	return raw.extraction(), nil
}

// extraction converts the lenient decode targets into the clean payload type
func (r *rawExtraction) extraction() *Extraction {
	ext := &Extraction{
		Description: strings.TrimSpace(string(r.Description)),
		Category: CategoryData{
			Name: strings.TrimSpace(string(r.Category.Name)),
			Icon: strings.TrimSpace(string(r.Category.Icon)),
		},
		Summary: SummaryData{
			TotalAmount:      float64(r.Summary.TotalAmount),
			Currency:         strings.ToUpper(strings.TrimSpace(string(r.Summary.Currency))),
			OriginalCurrency: strings.ToUpper(strings.TrimSpace(string(r.Summary.OriginalCurrency))),
		},
		IsBill: bool(r.IsBill),
		Error:  strings.TrimSpace(string(r.Error)),
	}

	ext.Items = make([]ItemData, 0, len(r.Items))
	for _, item := range r.Items {
		ext.Items = append(ext.Items, ItemData{
			Name:       strings.TrimSpace(string(item.Name)),
			Quantity:   float64(item.Quantity),
			UnitPrice:  float64(item.UnitPrice),
			TotalPrice: float64(item.TotalPrice),
		})
	}

	ext.Summary.Tax = make([]TaxData, 0, len(r.Summary.Tax))
	for _, tax := range r.Summary.Tax {
		ext.Summary.Tax = append(ext.Summary.Tax, TaxData{
			Name:   strings.TrimSpace(string(tax.Name)),
			Amount: float64(tax.Amount),
		})
	}

	return ext
}
