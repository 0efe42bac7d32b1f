package bill

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/bill-analyzer/internal/scanning"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// extractionFailure is the error body for a failed analysis. The failure
// field tells the client which retry affordance to offer.
type extractionFailure struct {
	Error     string `json:"error"`
	Failure   string `json:"failure"`
	Retryable bool   `json:"retryable"`
}

// handleAnalyzeBill accepts a multipart image upload and runs the full
// extraction pipeline
func (s *Server) handleAnalyzeBill(w http.ResponseWriter, r *http.Request) {
	// Max 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "File is too large. Maximum size is 50MB. Please compress or resize your image.",
		})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error reading file. Please try again."})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromExt(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	// The client's locale currency, used when the model detects none
	fallbackCurrency := r.FormValue("currency")
	if fallbackCurrency == "" {
		fallbackCurrency = "USD"
	}

	result, err := s.service.AnalyzeBill(r.Context(), s.owner(r), header.Filename, data, contentType, fallbackCurrency)
	if err != nil {
		failure := scanning.ClassifyFailure(err)
		status := http.StatusBadGateway
		switch failure {
		case scanning.FailureNotABill:
			status = http.StatusUnprocessableEntity
		case scanning.FailureRateLimited:
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, extractionFailure{
			Error:     err.Error(),
			Failure:   string(failure),
			Retryable: failure.Retryable(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// contentTypeFromExt guesses a MIME type from the filename extension
func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleListBills returns the owner's saved bills
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListBills(r.Context(), s.owner(r))
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		// A read failure surfaces as an empty history plus an error
		// indicator, never a hard failure for the client to untangle.
		writeJSON(w, http.StatusOK, map[string]any{
			"bills": []HistoryRecord{},
			"error": "Failed to load history",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bills": records})
}

// handleGetBill returns a single saved bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	rec, err := s.service.GetBill(r.Context(), id)
	if err != nil {
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateBill replaces a saved bill with an edited working copy
func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}

	var b Bill
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.service.UpdateBill(r.Context(), id, b); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Bill not found", http.StatusNotFound)
			return
		}
		slog.Error("Error updating bill", "id", id, "error", err)
		corsError(w, "Error updating bill", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteBill deletes a saved bill
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteBill(r.Context(), id); err != nil {
		corsError(w, "Error deleting bill", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetBillImage returns the retained image for a bill
func (s *Server) handleGetBillImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	data, err := s.service.GetBillImage(r.Context(), id)
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

// handleGetRates returns the cached rate snapshot for a base currency.
// 204 means no conversion data is available yet; the client shows
// unconverted amounts.
func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	base := strings.ToUpper(r.PathValue("base"))
	if base == "" {
		corsError(w, "Base currency required", http.StatusBadRequest)
		return
	}

	snap := s.rates.GetRates(r.Context(), base)
	if snap == nil {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
