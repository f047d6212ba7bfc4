package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"arecayield/internal/features"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// keyLayout is fixed width so that byte order equals time order.
const keyLayout = "2006-01-02T15:04:05.000000000Z"

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID           string               `json:"id"`
	Timestamp    time.Time            `json:"timestamp"`
	RequestID    string               `json:"request_id,omitempty"`
	Observation  features.Observation `json:"observation"`
	Features     features.FeatureRow  `json:"features"`
	YieldKg      float64              `json:"yield_kg_per_palm"`
	ModelVersion string               `json:"model_version"`
}

func recordKey(ts time.Time, id string) []byte {
	return []byte(ts.UTC().Format(keyLayout) + "_" + id)
}

func timeKey(ts time.Time) []byte {
	return []byte(ts.UTC().Format(keyLayout))
}

// decodeRecord unmarshals one stored value. Malformed records are skipped
// with a warning so reads never fail on a single bad entry.
func decodeRecord(k, v []byte) (PredictionRecord, bool) {
	var rec PredictionRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		log.Warn().Err(err).Str("key", string(k)).Msg("skipping malformed prediction record")
		return PredictionRecord{}, false
	}
	return rec, true
}

// Save stores rec, assigning an ID and timestamp when they are empty, and
// returns the stored record.
func (s *Store) Save(rec PredictionRecord) (PredictionRecord, error) {
	if s.db == nil {
		return PredictionRecord{}, ErrClosed
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("marshal prediction record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		return b.Put(recordKey(rec.Timestamp, rec.ID), data)
	})
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("store prediction record: %w", err)
	}
	return rec, nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]PredictionRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}

	var records []PredictionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			rec, ok := decodeRecord(k, v)
			if !ok {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Range returns the records with start <= timestamp <= end, oldest first.
func (s *Store) Range(start, end time.Time) ([]PredictionRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	var records []PredictionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		startKey := timeKey(start)
		// Every key at exactly end starts with endKey followed by "_", which
		// sorts below "`".
		endKey := append(timeKey(end), '`')

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			rec, ok := decodeRecord(k, v)
			if !ok {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// DeleteBefore removes all records older than cutoff and returns how many
// were removed.
func (s *Store) DeleteBefore(cutoff time.Time) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}

	var removed int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}
		limit := timeKey(cutoff)
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
