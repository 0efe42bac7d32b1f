package bill

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxRetainedBills is the hard retention cap enforced by capped store
	// implementations. The oldest record is evicted once the cap is crossed.
	MaxRetainedBills = 20

	// WarnThreshold is the record count at which saves start flagging a
	// storage warning. Advisory only; saves never block on it.
	WarnThreshold = 10
)

// ErrNotFound is returned when an operation targets a record id that is not
// in the store.
var ErrNotFound = errors.New("bill not found")

// RecordSummary is the listing projection of a bill's summary
type RecordSummary struct {
	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`
}

// HistoryRecord is the persisted projection of a Bill. The in-memory Bill
// stays the editable working copy; a record only changes through explicit
// Save or Update calls.
type HistoryRecord struct {
	ID        string        `json:"id"`
	Date      time.Time     `json:"date"`
	Summary   RecordSummary `json:"summary"`
	Category  CategoryTag   `json:"category"`
	FullData  Bill          `json:"full_data"`
	ImageRef  string        `json:"image_ref,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SaveResult reports the id assigned to a newly saved bill and whether the
// store is nearing its retention cap.
type SaveResult struct {
	ID      string `json:"id"`
	Warning bool   `json:"warning"`
}

// NewRecord builds the persisted projection for a bill being saved for the
// first time. The id becomes the bill's identity from here on.
func NewRecord(id string, now time.Time, b Bill, imageRef string) HistoryRecord {
	b.ID = id
	b.ImageRef = imageRef
	if b.Date.IsZero() {
		b.Date = now
	}
	return HistoryRecord{
		ID:   id,
		Date: b.Date,
		Summary: RecordSummary{
			TotalAmount: b.Summary.TotalAmount,
			Currency:    b.Summary.Currency,
		},
		Category:  b.Category,
		FullData:  b,
		ImageRef:  imageRef,
		CreatedAt: now,
	}
}

// applyUpdate replaces a record's mutable projection with the given bill,
// keeping identity, creation time, and image reference intact.
func (r *HistoryRecord) applyUpdate(b Bill) {
	b.ID = r.ID
	if b.ImageRef == "" {
		b.ImageRef = r.ImageRef
	}
	if !b.Date.IsZero() {
		r.Date = b.Date
	}
	r.Summary = RecordSummary{
		TotalAmount: b.Summary.TotalAmount,
		Currency:    b.Summary.Currency,
	}
	r.Category = b.Category
	r.FullData = b
}

// Store defines the interface for bill history persistence. Implementations
// differ in retention policy: the device-local store enforces the cap and
// warning, the server-backed store treats capacity as unbounded.
type Store interface {
	// List returns the owner's records, most recent first
	List(ctx context.Context, owner string) ([]HistoryRecord, error)

	// Get retrieves a single record by id
	Get(ctx context.Context, id string) (*HistoryRecord, error)

	// Save persists a new record and reports the retention warning state
	Save(ctx context.Context, owner string, rec HistoryRecord) (SaveResult, error)

	// Update replaces an existing record's bill data; ErrNotFound if absent
	Update(ctx context.Context, id string, b Bill) error

	// Delete removes a record; deleting an absent id is not an error
	Delete(ctx context.Context, id string) error

	// Close closes the store
	Close() error
}
