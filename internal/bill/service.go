package bill

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/bill-analyzer/internal/scanning"
)

// Extractor is the slice of the scanning gateway the service depends on
type Extractor interface {
	Scan(ctx context.Context, imageData []byte, contentType string) (*scanning.Extraction, error)
}

// IDGenerator generates unique IDs for bills
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// AnalysisResult is what one successful extraction produces: the normalized
// working copy plus the outcome of the automatic history save. Saved is
// false when the store write failed; the bill itself is still returned so
// nothing the user scanned is lost.
type AnalysisResult struct {
	Bill           Bill `json:"bill"`
	Saved          bool `json:"saved"`
	StorageWarning bool `json:"storage_warning"`
}

// Service coordinates extraction, normalization, and history persistence
type Service struct {
	extractor  Extractor
	store      Store
	images     ImageStorage
	idGen      IDGenerator
	timeSource TimeSource
}

// NewService creates a Service with default ID generator and time source
func NewService(extractor Extractor, store Store, images ImageStorage) *Service {
	return &Service{
		extractor:  extractor,
		store:      store,
		images:     images,
		idGen:      &uuidGenerator{},
		timeSource: &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(extractor Extractor, store Store, images ImageStorage, idGen IDGenerator, timeSource TimeSource) *Service {
	return &Service{
		extractor:  extractor,
		store:      store,
		images:     images,
		idGen:      idGen,
		timeSource: timeSource,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length; phone uploads arrive with long generated names.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "bill"
	}

	return base + ext
}

// AnalyzeBill runs an uploaded image through extraction, normalizes the
// payload into a Bill, and auto-saves it to the owner's history.
//
// Extraction failures (not-a-bill, rate-limited, transient) propagate to the
// caller already classified by the gateway. A history write failure is
// downgraded to a warning on the result: the analyzed bill is returned
// unsaved rather than discarded.
func (s *Service) AnalyzeBill(ctx context.Context, owner, filename string, data []byte, contentType, fallbackCurrency string) (*AnalysisResult, error) {
	ext, err := s.extractor.Scan(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan bill",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, err
	}

	now := s.timeSource.Now()
	b := Normalize(ext, fallbackCurrency, now)

	id := s.idGen.Generate()

	// Retain the original upload so the bill can be re-inspected later.
	// Losing the image is not worth losing the analysis over.
	imageRef := ""
	ref, err := s.images.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		slog.Warn("Failed to retain bill image", "filename", filename, "error", err)
	} else {
		imageRef = ref
	}

	rec := NewRecord(id, now, b, imageRef)
	saveRes, err := s.store.Save(ctx, owner, rec)
	if err != nil {
		slog.Warn("Failed to save bill to history", "error", err)
		return &AnalysisResult{Bill: b}, nil
	}

	return &AnalysisResult{
		Bill:           rec.FullData,
		Saved:          true,
		StorageWarning: saveRes.Warning,
	}, nil
}

// GetBill retrieves a saved bill record by ID
func (s *Service) GetBill(ctx context.Context, id string) (*HistoryRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return rec, nil
}

// ListBills returns the owner's saved bills, most recent first
func (s *Service) ListBills(ctx context.Context, owner string) ([]HistoryRecord, error) {
	records, err := s.store.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return records, nil
}

// UpdateBill replaces a saved bill with an edited working copy
func (s *Service) UpdateBill(ctx context.Context, id string, b Bill) error {
	if err := s.store.Update(ctx, id, b); err != nil {
		return fmt.Errorf("updating bill: %w", err)
	}
	return nil
}

// DeleteBill removes a bill and its retained image
func (s *Service) DeleteBill(ctx context.Context, id string) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if rec.ImageRef != "" {
		if err := s.images.Delete(rec.ImageRef); err != nil {
			// Log error but continue with record deletion
			slog.Warn("Failed to delete bill image", "image_ref", rec.ImageRef, "error", err)
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting bill: %w", err)
	}
	return nil
}

// GetBillImage retrieves the retained image for a bill
func (s *Service) GetBillImage(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	if rec.ImageRef == "" {
		return nil, fmt.Errorf("bill has no retained image")
	}

	data, err := s.images.Get(rec.ImageRef)
	if err != nil {
		return nil, fmt.Errorf("getting bill image: %w", err)
	}
	return data, nil
}
