// Package store is the SQLite-backed Data Store. Every mutating method runs in
// its own transaction and has committed when it returns without error.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"orderhub/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS menu_items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT    NOT NULL,
	description  TEXT    NOT NULL DEFAULT '',
	price_cents  INTEGER NOT NULL CHECK (price_cents >= 0),
	category_id  INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	is_available INTEGER NOT NULL DEFAULT 1,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS dining_tables (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	table_number INTEGER NOT NULL UNIQUE,
	is_occupied  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS orders (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	table_id      INTEGER NOT NULL REFERENCES dining_tables(id),
	status        TEXT    NOT NULL DEFAULT 'pending',
	total_cents   INTEGER NOT NULL DEFAULT 0,
	tracking_code TEXT    UNIQUE,
	user_agent    TEXT    NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_created ON orders(created_at);
CREATE TABLE IF NOT EXISTS order_items (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id         INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	menu_item_id     INTEGER NOT NULL REFERENCES menu_items(id),
	quantity         INTEGER NOT NULL CHECK (quantity > 0),
	notes            TEXT    NOT NULL DEFAULT '',
	unit_price_cents INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS order_items_order ON order_items(order_id);
CREATE TABLE IF NOT EXISTS chat_messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id    INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	message     TEXT    NOT NULL,
	sender_type TEXT    NOT NULL DEFAULT 'client',
	timestamp   INTEGER NOT NULL,
	is_read     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS chat_messages_order_ts ON chat_messages(order_id, timestamp, id);
CREATE TABLE IF NOT EXISTS broken_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	item_name   TEXT    NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	reported_by TEXT    NOT NULL,
	reported_at INTEGER NOT NULL,
	resolved    INTEGER NOT NULL DEFAULT 0,
	resolved_at INTEGER
);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DSN turns a database path into a go-sqlite3 connection string. ":memory:"
// yields a private shared-cache in-memory database.
func DSN(path string) string {
	if path == ":memory:" {
		return "file:" + ulid.Make().String() + "?mode=memory&cache=shared&_fk=1"
	}
	return "file:" + path + "?_fk=1&_busy_timeout=5000&_journal_mode=WAL"
}

// Open opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// SQLite allows a single writer; one pooled connection keeps
	// transactions from contending on the file lock.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate applies the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SetClock replaces the store's time source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// translate maps driver errors onto domain errors.
func translate(err error, field string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return domain.Invalid(field, "already exists")
		case sqlite3.ErrConstraintForeignKey:
			return domain.Invalid(field, "references a missing or in-use record")
		}
		return domain.Invalid(field, se.Error())
	}
	return err
}

func stamp(t time.Time) int64 {
	return t.UnixNano()
}

func fromStamp(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.DataStore = (*Store)(nil)
