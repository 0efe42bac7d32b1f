package currency

import "time"

// Snapshot is one fetched rate table. Rates are multipliers relative to Base
// and keyed by uppercase ISO 4217 codes.
type Snapshot struct {
	Base      string             `json:"base"`
	AsOfDate  string             `json:"date"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Age returns how long ago the snapshot was fetched
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Convert computes the display value of amount in the target currency. It is
// purely presentational: stored bill amounts are never rescaled. When no
// conversion is possible (same currency, nil snapshot, unknown target) the
// amount passes through unchanged so the caller always has a number to show.
func Convert(amount float64, from, to string, snap *Snapshot) float64 {
	if from == to {
		return amount
	}
	if snap == nil {
		return amount
	}
	if rate, ok := snap.Rates[to]; ok {
		return amount * rate
	}
	return amount
}
