package bill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	historyBucket = "history"

	// historyKey versions the serialized list layout. The whole history is
	// one ordered JSON list under this key, newest first.
	historyKey = "bill_history_v1"
)

// BoltStore implements Store on a local BoltDB file. It is the device-local
// variant: single profile (owner is ignored), hard retention cap with
// oldest-first eviction, and a near-limit warning on saves.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the database file
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// readAll loads the stored record list within a transaction
func readAll(tx *bbolt.Tx) ([]HistoryRecord, error) {
	records := make([]HistoryRecord, 0)
	data := tx.Bucket([]byte(historyBucket)).Get([]byte(historyKey))
	if data == nil {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshaling history: %w", err)
	}
	return records, nil
}

// writeAll stores the record list within a transaction
func writeAll(tx *bbolt.Tx, records []HistoryRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	return tx.Bucket([]byte(historyBucket)).Put([]byte(historyKey), data)
}

// List returns all records, most recent first
func (s *BoltStore) List(ctx context.Context, owner string) ([]HistoryRecord, error) {
	var records []HistoryRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		records, err = readAll(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get retrieves a single record by id
func (s *BoltStore) Get(ctx context.Context, id string) (*HistoryRecord, error) {
	var found *HistoryRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		records, err := readAll(tx)
		if err != nil {
			return err
		}
		for i := range records {
			if records[i].ID == id {
				found = &records[i]
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Save inserts the record at the head of the list. When the cap is exceeded
// the oldest record falls off the tail. The warning flag trips at the warn
// threshold so the caller can surface a one-time notice.
func (s *BoltStore) Save(ctx context.Context, owner string, rec HistoryRecord) (SaveResult, error) {
	var result SaveResult
	err := s.db.Update(func(tx *bbolt.Tx) error {
		records, err := readAll(tx)
		if err != nil {
			return err
		}

		records = append([]HistoryRecord{rec}, records...)
		if len(records) > MaxRetainedBills {
			records = records[:MaxRetainedBills]
		}

		result = SaveResult{
			ID:      rec.ID,
			Warning: len(records) >= WarnThreshold,
		}
		return writeAll(tx, records)
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("saving bill: %w", err)
	}
	return result, nil
}

// Update replaces an existing record's bill data
func (s *BoltStore) Update(ctx context.Context, id string, b Bill) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		records, err := readAll(tx)
		if err != nil {
			return err
		}
		for i := range records {
			if records[i].ID == id {
				records[i].applyUpdate(b)
				return writeAll(tx, records)
			}
		}
		return ErrNotFound
	})
}

// Delete removes a record by id
func (s *BoltStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		records, err := readAll(tx)
		if err != nil {
			return err
		}
		kept := records[:0]
		for _, rec := range records {
			if rec.ID != id {
				kept = append(kept, rec)
			}
		}
		return writeAll(tx, kept)
	})
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
