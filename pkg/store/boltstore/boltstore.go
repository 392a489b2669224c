// Package boltstore keeps records in a bbolt bucket. Keys are big-endian
// uint64 ids taken from the bucket sequence, so a cursor walks records in
// insertion order; values are the JSON documents.
package boltstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/store"
)

// ErrBucketNotFound is returned when the bucket disappeared after Open.
var ErrBucketNotFound = errors.New("boltstore: bucket not found")

// Store is a business.Store backed by a bbolt database.
type Store[T business.Record] struct {
	db     *bolt.DB
	owned  bool
	bucket []byte
	codec  *store.Codec[T]
}

// Open opens (or creates) the database file at path and the bucket named
// table.
func Open[T business.Record](path, table string) (*Store[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("boltstore: create directory for %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	s, err := New[T](db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New uses an already open database. The caller keeps ownership of db.
func New[T business.Record](db *bolt.DB, table string) (*Store[T], error) {
	if table == "" {
		return nil, fmt.Errorf("boltstore: table name is required")
	}
	bucket := []byte(table)
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: create bucket %s: %w", table, err)
	}
	return &Store[T]{db: db, bucket: bucket, codec: store.NewCodec[T](table)}, nil
}

// Close closes the database when the store opened it.
func (s *Store[T]) Close() error {
	if s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}

// All returns every record in id order.
func (s *Store[T]) All(context.Context) (iter.Seq[T], error) {
	var records []T
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := s.lookup(tx)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			record, err := s.codec.Decode(decodeKey(k), v)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return slices.Values(records), nil
}

// ByID returns the record stored under id, if any.
func (s *Store[T]) ByID(_ context.Context, id int64) (iter.Seq[T], error) {
	var records []T
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := s.lookup(tx)
		if err != nil {
			return err
		}
		v := b.Get(encodeKey(id))
		if v == nil {
			return nil
		}
		record, err := s.codec.Decode(id, v)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Values(records), nil
}

// Insert stores record, drawing its id from the bucket sequence unless it
// already has one.
func (s *Store[T]) Insert(_ context.Context, record T) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.lookup(tx)
		if err != nil {
			return err
		}

		var id int64
		if preset := record.GetID(); preset != nil {
			id = *preset
			if err := store.CheckPresetID(id); err != nil {
				return err
			}
			if b.Get(encodeKey(id)) != nil {
				return fmt.Errorf("%w: %d", store.ErrDuplicateID, id)
			}
			if uint64(id) > b.Sequence() {
				if err := b.SetSequence(uint64(id)); err != nil {
					return fmt.Errorf("boltstore: advance sequence: %w", err)
				}
			}
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("boltstore: next sequence: %w", err)
			}
			id = int64(seq)
		}

		data, err := s.codec.Encode(record)
		if err != nil {
			return err
		}
		if err := b.Put(encodeKey(id), data); err != nil {
			return fmt.Errorf("boltstore: put %d: %w", id, err)
		}
		record.SetID(id)
		return nil
	})
}

// Update replaces the stored document of record.
func (s *Store[T]) Update(_ context.Context, record T) error {
	id, err := store.RequireID(record)
	if err != nil {
		return err
	}
	data, err := s.codec.Encode(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.lookup(tx)
		if err != nil {
			return err
		}
		key := encodeKey(id)
		if b.Get(key) == nil {
			return fmt.Errorf("%w: %d", store.ErrNotFound, id)
		}
		return b.Put(key, data)
	})
}

// Remove deletes record.
func (s *Store[T]) Remove(_ context.Context, record T) error {
	id, err := store.RequireID(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.lookup(tx)
		if err != nil {
			return err
		}
		key := encodeKey(id)
		if b.Get(key) == nil {
			return fmt.Errorf("%w: %d", store.ErrNotFound, id)
		}
		return b.Delete(key)
	})
}

func (s *Store[T]) lookup(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(s.bucket)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
	}
	return b, nil
}

func encodeKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func decodeKey(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}
