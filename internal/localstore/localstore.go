// Package localstore is the embedded offline cache: one bbolt file holding
// the manuscript library and the tombstone set.
package localstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/model"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/sync"
)

var (
	bucketManuscripts = []byte("manuscripts")
	bucketTombstones  = []byte("tombstones")
)

type Store struct {
	db *bolt.DB
}

// Open creates or opens the cache file and makes sure both buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening local store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketManuscripts, bucketTombstones} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing local store buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(id string) (model.Manuscript, error) {
	var m model.Manuscript
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketManuscripts).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: %s", sync.ErrNotFound, id)
		}
		return json.Unmarshal(raw, &m)
	})
	return m, err
}

// GetAll returns the cached library, newest first to mirror the remote
// store's ordering.
func (s *Store) GetAll() ([]model.Manuscript, error) {
	var docs []model.Manuscript
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketManuscripts).ForEach(func(_, raw []byte) error {
			var m model.Manuscript
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("undecodable cache entry: %w", err)
			}
			docs = append(docs, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UpdatedAt.After(docs[j].UpdatedAt) })
	return docs, nil
}

func (s *Store) Put(m model.Manuscript) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manuscript %s: %w", m.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketManuscripts).Put([]byte(m.ID), raw)
	})
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketManuscripts).Delete([]byte(id))
	})
}

func (s *Store) Exists(id string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketManuscripts).Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}

// PutTombstone durably marks id as deliberately deleted.
func (s *Store) PutTombstone(id string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTombstones).Put([]byte(id), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

// Tombstones returns every persisted deletion marker. Entries whose
// timestamp no longer parses still count as tombstones.
func (s *Store) Tombstones() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTombstones).ForEach(func(id, raw []byte) error {
			at, err := time.Parse(time.RFC3339Nano, string(raw))
			if err != nil {
				at = time.Time{}
			}
			out[string(id)] = at
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
