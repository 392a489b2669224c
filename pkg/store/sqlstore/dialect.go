package sqlstore

import (
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverSQLite selects github.com/mattn/go-sqlite3.
	DriverSQLite = "sqlite3"
	// DriverPostgres selects the database/sql adapter of github.com/jackc/pgx/v5.
	DriverPostgres = "pgx"
)

// dialect captures the few statements that differ between drivers.
type dialect struct {
	name        string
	createTable string
	dataColumn  string
	returningID bool
	placeholder func(n int) string
	setup       []string
	pool        poolSettings
}

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:        DriverSQLite,
		createTable: `CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, data TEXT NOT NULL)`,
		dataColumn:  "data",
		placeholder: func(int) string { return "?" },
		setup: []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		},
		// SQLite allows one writer at a time.
		pool: poolSettings{maxOpen: 1, maxIdle: 1},
	},
	DriverPostgres: {
		name:        DriverPostgres,
		createTable: `CREATE TABLE IF NOT EXISTS %s (id BIGSERIAL PRIMARY KEY, data JSONB NOT NULL)`,
		dataColumn:  "data::text",
		returningID: true,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		pool: poolSettings{
			maxOpen:     25,
			maxIdle:     10,
			maxLifetime: 30 * time.Minute,
			maxIdleTime: 5 * time.Minute,
		},
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	return d, nil
}
