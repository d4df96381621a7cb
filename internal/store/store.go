// Package store persists drain history in a local BoltDB file so the UI
// can list past queue runs across restarts.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"ocrd/pkg/types"
)

var bucketDrains = []byte("drains")

// HistoryStore records and lists drain summaries, keyed by a monotonic
// sequence so listing order matches drain order.
type HistoryStore struct {
	db *bolt.DB
}

// Open opens (or creates) the history database under dir.
func Open(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, "history.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDrains)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordDrain appends one drain summary to the history.
func (s *HistoryStore) RecordDrain(summary types.DrainSummary) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDrains)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

// ListDrains returns up to limit summaries, newest first. limit <= 0 means
// all.
func (s *HistoryStore) ListDrains(limit int) ([]types.DrainSummary, error) {
	var out []types.DrainSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDrains).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var s types.DrainSummary
			if err := json.Unmarshal(v, &s); err != nil {
				// Skip unreadable records rather than failing the listing.
				continue
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
