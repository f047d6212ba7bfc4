// Package storage keeps the prediction history in a BoltDB file.
//
// Every served prediction becomes one JSON record keyed by its UTC timestamp
// and ID, so a cursor walks the bucket in time order and range queries are a
// single Seek.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"arecayield/internal/common"

	"go.etcd.io/bbolt"
)

const (
	predictionsBucket = "predictions" // Bucket name for prediction records
)

var ErrClosed = errors.New("store is closed")

// Store provides persistent storage for prediction records using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the history database under dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return Open(filepath.Join(dataPath, common.HistoryDBFile), false)
}

// Open opens the database file at path. A read-only store shares the file
// with a running server only while that server is not holding it.
func Open(path string, readOnly bool) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
				return fmt.Errorf("create predictions bucket: %w", err)
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is not an error.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s.db == nil {
		return ""
	}
	return s.db.Path()
}
