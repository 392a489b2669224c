// Package store holds what the storage collaborators share: error sentinels
// and the JSON codec records are persisted with.
//
// Implementations live in subpackages:
//   - memory: process-local map, for tests and examples.
//   - sqlstore: database/sql over sqlite3 or pgx, one (id, data) table.
//   - boltstore: a bbolt bucket keyed by big-endian sequence numbers.
//
// Every implementation satisfies business.Store[T]. None of them know about
// behaviors; soft deletion, slugs and timestamps live above them.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/internal/hydrate"
)

var (
	// ErrNotFound is returned by Update and Remove when the record does not
	// exist in the store.
	ErrNotFound = errors.New("store: record not found")
	// ErrMissingID is returned when an operation needs an identity the record
	// does not have.
	ErrMissingID = errors.New("store: record has no id")
	// ErrDuplicateID is returned by Insert when a preset identity is taken.
	ErrDuplicateID = errors.New("store: duplicate id")
	// ErrInvalidID is returned by Insert when a preset identity is not
	// positive.
	ErrInvalidID = errors.New("store: id must be positive")
)

// Codec encodes records to JSON documents and hydrates them back, keeping the
// stored identity authoritative.
type Codec[T business.Record] struct {
	table   string
	decoder *hydrate.Decoder[T]
}

// NewCodec builds a codec for records stored under table.
func NewCodec[T business.Record](table string) *Codec[T] {
	return &Codec[T]{
		table:   table,
		decoder: hydrate.NewDecoder[T](hydrate.WithIDField[T]("id")),
	}
}

// Encode serialises record.
func (c *Codec[T]) Encode(record T) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("store: encode %s record: %w", c.table, err)
	}
	return data, nil
}

// Decode hydrates a record stored under id.
func (c *Codec[T]) Decode(id int64, data []byte) (T, error) {
	return c.decoder.DecodeBytes(hydrate.Context{Table: c.table, ID: id}, data)
}

// CheckPresetID rejects identities a store would never assign.
func CheckPresetID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return nil
}

// RequireID returns the record identity or ErrMissingID.
func RequireID(record business.Record) (int64, error) {
	id := record.GetID()
	if id == nil {
		return 0, ErrMissingID
	}
	return *id, nil
}
