package scanning

import (
	"context"
	"errors"
	"fmt"
)

// rateLimitErrorCode is the error value the extraction service returns when
// its quota is exhausted.
const rateLimitErrorCode = "RATE_LIMIT_EXCEEDED"

var (
	// ErrNotABill means the service recognized the image but it is not a
	// receipt or bill. Retrying with the same image will not help.
	ErrNotABill = errors.New("image is not a bill")

	// ErrRateLimited means the extraction service refused the request due to
	// quota exhaustion. An immediate retry is expected to fail identically.
	ErrRateLimited = errors.New("extraction service rate limit exceeded")
)

// Failure buckets every possible extraction error for callers that need to
// pick a user-facing behavior. Anything unrecognized is transient.
type Failure string

const (
	FailureNotABill    Failure = "not_a_bill"
	FailureRateLimited Failure = "rate_limited"
	FailureTransient   Failure = "transient"
)

// ClassifyFailure maps an error from Gateway.Scan to exactly one Failure.
func ClassifyFailure(err error) Failure {
	switch {
	case errors.Is(err, ErrNotABill):
		return FailureNotABill
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimited
	default:
		return FailureTransient
	}
}

// Retryable reports whether offering an immediate retry makes sense.
func (f Failure) Retryable() bool {
	return f != FailureRateLimited
}

// Gateway wraps a Scanner backend and classifies its results. A payload only
// passes through when the service produced a well-formed bill extraction;
// every other outcome surfaces as ErrNotABill, ErrRateLimited, or a transient
// error.
type Gateway struct {
	scanner Scanner
}

// NewGateway creates a Gateway around the given backend
func NewGateway(scanner Scanner) *Gateway {
	return &Gateway{scanner: scanner}
}

// Scan runs the image through the backend and classifies the response
func (g *Gateway) Scan(ctx context.Context, imageData []byte, contentType string) (*Extraction, error) {
	ext, err := g.scanner.ScanBill(ctx, imageData, contentType)
	if err != nil {
		// Transport, decode, and parse failures are all transient.
		return nil, fmt.Errorf("scanning bill: %w", err)
	}

	switch {
	case ext.Error == rateLimitErrorCode:
		return nil, ErrRateLimited
	case ext.Error != "":
		return nil, fmt.Errorf("extraction service error: %s", ext.Error)
	case !ext.IsBill:
		return nil, ErrNotABill
	}

	return ext, nil
}

// Close closes the underlying backend
func (g *Gateway) Close() error {
	return g.scanner.Close()
}
