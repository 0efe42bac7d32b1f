package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultProviderURL serves daily rate tables as
// /v1/currencies/{base}.json with lowercase currency codes.
const defaultProviderURL = "https://latest.currency-api.pages.dev"

// Provider fetches a rate table for a base currency
type Provider interface {
	FetchRates(ctx context.Context, base string) (*Snapshot, error)
}

// HTTPProvider implements Provider against the public currency-api endpoint
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates an HTTPProvider. An empty baseURL selects the
// public endpoint.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	if baseURL == "" {
		baseURL = defaultProviderURL
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchRates fetches the current rate table for base. Currency codes in the
// response are lowercase; they are normalized to uppercase before returning.
func (p *HTTPProvider) FetchRates(ctx context.Context, base string) (*Snapshot, error) {
	baseLower := strings.ToLower(strings.TrimSpace(base))
	if baseLower == "" {
		return nil, fmt.Errorf("base currency is required")
	}

	url := fmt.Sprintf("%s/v1/currencies/%s.json", p.baseURL, baseLower)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	}

	// The payload is keyed by the lowercase base code:
	// {"date": "2026-09-01", "usd": {"eur": 0.92, ...}}
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding rates response: %w", err)
	}

	var date string
	if raw, ok := payload["date"]; ok {
		if err := json.Unmarshal(raw, &date); err != nil {
			return nil, fmt.Errorf("decoding rate date: %w", err)
		}
	}

	rawRates, ok := payload[baseLower]
	if !ok {
		return nil, fmt.Errorf("rates for %s missing from response", base)
	}

	var rates map[string]float64
	if err := json.Unmarshal(rawRates, &rates); err != nil {
		return nil, fmt.Errorf("decoding rate table: %w", err)
	}

	normalized := make(map[string]float64, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}

	return &Snapshot{
		Base:      strings.ToUpper(base),
		AsOfDate:  date,
		Rates:     normalized,
		FetchedAt: time.Now(),
	}, nil
}
