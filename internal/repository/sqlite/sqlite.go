// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of SQLite, so no C compiler needed.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB      : a connection pool (NOT a single connection!)
//   - sql.Tx      : a transaction pinned to one connection
//   - sql.Row(s)  : results; Rows must be closed
//
// PRAGMAS ARE PER CONNECTION:
// foreign_keys is OFF by default and applies only to the connection that set
// it. Running "PRAGMA foreign_keys=ON" once would leave every other pooled
// connection unprotected, so the pragmas travel in the DSN (_pragma=...) and
// the driver applies them to each new connection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/comparathor.db" → file-based database (persistent, WAL mode)
//   - ":memory:"            → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database. Pinning
	// the pool to one connection keeps all requests on the same data.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the store is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func dsn(path string) string {
	pragmas := []string{"foreign_keys(1)", "busy_timeout(5000)"}
	if !isMemory(path) {
		// WAL lets readers proceed while a write is in progress.
		pragmas = append(pragmas, "journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=" + strings.Join(pragmas, "&_pragma=")
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// withTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back on any error or panic, so every exit path
// releases the connection.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// constraintCode returns the extended SQLite result code carried by err, or 0.
func constraintCode(err error) int {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	code := constraintCode(err)
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isForeignKeyViolation(err error) bool {
	return constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// checkAffected turns "0 rows affected" into the given not-found error.
func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
func (db *DB) migrate() error {
	for _, m := range migrations {
		if _, err := db.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("creating %s: %w", m.name, err)
		}
	}
	return nil
}

var migrations = []struct {
	name string
	sql  string
}{
	{"users table", `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`},
	{"product_types table", `
		CREATE TABLE IF NOT EXISTS product_types (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			name            TEXT NOT NULL UNIQUE,
			description     TEXT NOT NULL DEFAULT '',
			metadata_schema TEXT NOT NULL DEFAULT '{}'
		);`},
	{"products table", `
		CREATE TABLE IF NOT EXISTS products (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id         TEXT NOT NULL REFERENCES users(id),
			product_type_id INTEGER NOT NULL REFERENCES product_types(id),
			name            TEXT NOT NULL,
			brand           TEXT NOT NULL DEFAULT '',
			price           TEXT NOT NULL DEFAULT '0',
			score           REAL NOT NULL DEFAULT 0,
			image           TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_products_user_id ON products(user_id);
		CREATE INDEX IF NOT EXISTS idx_products_type_id ON products(product_type_id);`},
	{"product_metadata table", `
		CREATE TABLE IF NOT EXISTS product_metadata (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			position   INTEGER NOT NULL,
			attribute  TEXT NOT NULL,
			value      TEXT NOT NULL DEFAULT '',
			score      REAL NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_product_metadata_product_id ON product_metadata(product_id);`},
	{"comparisons table", `
		CREATE TABLE IF NOT EXISTS comparisons (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id         TEXT NOT NULL REFERENCES users(id),
			title           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			date_created    TEXT NOT NULL,
			product_type_id INTEGER NOT NULL REFERENCES product_types(id),
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comparisons_user_id ON comparisons(user_id);`},
	{"comparison_products table", `
		CREATE TABLE IF NOT EXISTS comparison_products (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			comparison_id INTEGER NOT NULL REFERENCES comparisons(id) ON DELETE CASCADE,
			product_id    INTEGER NOT NULL REFERENCES products(id)
		);
		CREATE INDEX IF NOT EXISTS idx_comparison_products_comparison_id ON comparison_products(comparison_id);
		CREATE INDEX IF NOT EXISTS idx_comparison_products_product_id ON comparison_products(product_id);`},
}
