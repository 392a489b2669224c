// Package memory provides an in-process business.Store intended for tests,
// examples and small tools. Records are stored as JSON snapshots, so callers
// never share state with the store: a record read back is a fresh copy.
package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/store"
)

// Store keeps records in insertion order.
type Store[T business.Record] struct {
	mu      sync.RWMutex
	codec   *store.Codec[T]
	records map[int64][]byte
	order   []int64
	nextID  int64
}

// New constructs an empty store. name only appears in error messages.
func New[T business.Record](name string) *Store[T] {
	return &Store[T]{
		codec:   store.NewCodec[T](name),
		records: map[int64][]byte{},
	}
}

// All returns a snapshot of every record in insertion order.
func (s *Store[T]) All(context.Context) (iter.Seq[T], error) {
	s.mu.RLock()
	ids := slices.Clone(s.order)
	payloads := make([][]byte, len(ids))
	for i, id := range ids {
		payloads[i] = s.records[id]
	}
	s.mu.RUnlock()

	records := make([]T, 0, len(ids))
	for i, id := range ids {
		record, err := s.codec.Decode(id, payloads[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return slices.Values(records), nil
}

// ByID returns the record stored under id, if any.
func (s *Store[T]) ByID(_ context.Context, id int64) (iter.Seq[T], error) {
	s.mu.RLock()
	payload, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return business.Empty[T](), nil
	}
	record, err := s.codec.Decode(id, payload)
	if err != nil {
		return nil, err
	}
	return slices.Values([]T{record}), nil
}

// Insert stores record, assigning the next identity when it has none.
func (s *Store[T]) Insert(_ context.Context, record T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := record.GetID()
	var assigned int64
	if id == nil {
		s.nextID++
		assigned = s.nextID
	} else {
		assigned = *id
		if err := store.CheckPresetID(assigned); err != nil {
			return err
		}
		if _, exists := s.records[assigned]; exists {
			return fmt.Errorf("%w: %d", store.ErrDuplicateID, assigned)
		}
		if assigned > s.nextID {
			s.nextID = assigned
		}
	}
	record.SetID(assigned)

	payload, err := s.codec.Encode(record)
	if err != nil {
		return err
	}
	s.records[assigned] = payload
	s.order = append(s.order, assigned)
	return nil
}

// Update replaces the stored snapshot of record.
func (s *Store[T]) Update(_ context.Context, record T) error {
	id, err := store.RequireID(record)
	if err != nil {
		return err
	}
	payload, err := s.codec.Encode(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	s.records[id] = payload
	return nil
}

// Remove deletes record.
func (s *Store[T]) Remove(_ context.Context, record T) error {
	id, err := store.RequireID(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(candidate int64) bool {
		return candidate == id
	})
	return nil
}

// Len reports how many records are stored.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
