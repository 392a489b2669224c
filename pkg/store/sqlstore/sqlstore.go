// Package sqlstore persists records as JSON documents in a single SQL table
// with an integer primary key:
//
//	CREATE TABLE <table> (id <auto increment>, data <json>)
//
// The id column is authoritative; it is injected into the document when a
// record is hydrated. SQLite (mattn/go-sqlite3) and PostgreSQL (pgx) are
// supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strings"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/store"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a business.Store backed by database/sql.
type Store[T business.Record] struct {
	db      *sql.DB
	owned   bool
	dialect dialect
	table   string
	codec   *store.Codec[T]
}

// Open connects to dsn with driver ("sqlite3" or "pgx"), applies the driver
// settings and creates table when it does not exist. Close releases the
// connection.
func Open[T business.Record](ctx context.Context, driver, dsn, table string) (*Store[T], error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required for driver %q", driver)
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", d.name, err)
	}
	db.SetMaxOpenConns(d.pool.maxOpen)
	db.SetMaxIdleConns(d.pool.maxIdle)
	db.SetConnMaxLifetime(d.pool.maxLifetime)
	db.SetConnMaxIdleTime(d.pool.maxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: connect %s: %w", d.name, err)
	}
	for _, stmt := range d.setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: execute %q: %w", stmt, err)
		}
	}

	s, err := New[T](ctx, db, driver, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing connection. The caller keeps ownership of db.
func New[T business.Record](ctx context.Context, db *sql.DB, driver, table string) (*Store[T], error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", table)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(d.createTable, table)); err != nil {
		return nil, fmt.Errorf("sqlstore: create table %s: %w", table, err)
	}
	return &Store[T]{
		db:      db,
		dialect: d,
		table:   table,
		codec:   store.NewCodec[T](table),
	}, nil
}

// Close closes the connection when the store opened it.
func (s *Store[T]) Close() error {
	if s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store[T]) DB() *sql.DB {
	return s.db
}

// All returns every record ordered by id.
func (s *Store[T]) All(ctx context.Context) (iter.Seq[T], error) {
	query := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", s.dialect.dataColumn, s.table)
	return s.query(ctx, query)
}

// ByID returns the record stored under id, if any.
func (s *Store[T]) ByID(ctx context.Context, id int64) (iter.Seq[T], error) {
	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE id = %s", s.dialect.dataColumn, s.table, s.dialect.placeholder(1))
	return s.query(ctx, query, id)
}

// Insert stores record and assigns the generated id. A preset id is kept
// and must not be taken.
func (s *Store[T]) Insert(ctx context.Context, record T) error {
	data, err := s.codec.Encode(record)
	if err != nil {
		return err
	}

	if id := record.GetID(); id != nil {
		if err := store.CheckPresetID(*id); err != nil {
			return err
		}
		exists, err := s.exists(ctx, *id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %d", store.ErrDuplicateID, *id)
		}
		query := fmt.Sprintf("INSERT INTO %s (id, data) VALUES (%s, %s)", s.table, s.dialect.placeholder(1), s.dialect.placeholder(2))
		if _, err := s.db.ExecContext(ctx, query, *id, string(data)); err != nil {
			return fmt.Errorf("sqlstore: insert into %s: %w", s.table, err)
		}
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (data) VALUES (%s)", s.table, s.dialect.placeholder(1))
	var id int64
	if s.dialect.returningID {
		if err := s.db.QueryRowContext(ctx, query+" RETURNING id", string(data)).Scan(&id); err != nil {
			return fmt.Errorf("sqlstore: insert into %s: %w", s.table, err)
		}
	} else {
		result, err := s.db.ExecContext(ctx, query, string(data))
		if err != nil {
			return fmt.Errorf("sqlstore: insert into %s: %w", s.table, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("sqlstore: read id for %s: %w", s.table, err)
		}
	}
	record.SetID(id)
	return nil
}

// Update replaces the stored document of record.
func (s *Store[T]) Update(ctx context.Context, record T) error {
	id, err := store.RequireID(record)
	if err != nil {
		return err
	}
	data, err := s.codec.Encode(record)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET data = %s WHERE id = %s", s.table, s.dialect.placeholder(1), s.dialect.placeholder(2))
	result, err := s.db.ExecContext(ctx, query, string(data), id)
	if err != nil {
		return fmt.Errorf("sqlstore: update %s/%d: %w", s.table, id, err)
	}
	return expectAffected(result, s.table, id)
}

// Remove deletes record.
func (s *Store[T]) Remove(ctx context.Context, record T) error {
	id, err := store.RequireID(record)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.table, s.dialect.placeholder(1))
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete %s/%d: %w", s.table, id, err)
	}
	return expectAffected(result, s.table, id)
}

func (s *Store[T]) exists(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = %s", s.table, s.dialect.placeholder(1))
	var one int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sqlstore: lookup %s/%d: %w", s.table, id, err)
	default:
		return true, nil
	}
}

// query reads every row before returning so no connection is held while the
// caller iterates.
func (s *Store[T]) query(ctx context.Context, query string, args ...any) (iter.Seq[T], error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("sqlstore: scan %s: %w", s.table, err)
		}
		record, err := s.codec.Decode(id, []byte(data))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate %s: %w", s.table, err)
	}
	return slices.Values(records), nil
}

func expectAffected(result sql.Result, table string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected for %s/%d: %w", table, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%d", store.ErrNotFound, table, id)
	}
	return nil
}
