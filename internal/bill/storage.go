package bill

import (
	"fmt"
	"os"
	"path/filepath"
)

// ImageStorage defines the interface for retaining original bill images.
// The returned reference is the opaque imageRef stored on the bill.
type ImageStorage interface {
	// Save stores image bytes and returns the reference
	Save(name string, data []byte) (string, error)

	// Get retrieves image bytes by reference
	Get(ref string) ([]byte, error)

	// Delete removes an image by reference
	Delete(ref string) error
}

// LocalImageStorage implements ImageStorage on the local filesystem
type LocalImageStorage struct {
	basePath string
}

// NewLocalImageStorage creates the storage directory if needed
func NewLocalImageStorage(basePath string) (*LocalImageStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalImageStorage{basePath: basePath}, nil
}

// Save stores an image file
func (l *LocalImageStorage) Save(name string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return name, nil
}

// Get retrieves an image file
func (l *LocalImageStorage) Get(ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, ref))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// Delete removes an image file
func (l *LocalImageStorage) Delete(ref string) error {
	if err := os.Remove(filepath.Join(l.basePath, ref)); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
