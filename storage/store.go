// Package storage implements the aggregator's persistent store: a single
// SQLite database holding the deduplicated federation entities, the rolling
// stats history, the TRU burn ledger and its sync cursor. The aggregator
// process owns the file exclusively for its lifetime.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite handle. All access flows through one underlying
// connection, making writes serializable; WAL journaling keeps concurrent
// readers off the writer's back.
type Store struct {
	db  *sql.DB
	log log.Logger
}

// Open creates or opens the database at path, applies the schema migration
// and returns the ready store. The parent directory is created when absent.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		log: log.New("database", filepath.Base(path)),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema idempotently. Tables are created when missing;
// columns introduced after the first release are retrofitted with ADD COLUMN
// attempts whose failure on an up-to-date file is ignored.
func (s *Store) migrate() error {
	for _, stmt := range tables {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	for _, col := range addColumns {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.table, col.column, col.decl)
		if _, err := s.db.Exec(stmt); err != nil {
			if !strings.Contains(err.Error(), "duplicate column name") {
				s.log.Debug("Schema column retrofit skipped", "table", col.table, "column", col.column, "err", err)
			}
			continue
		}
		s.log.Info("Retrofitted schema column", "table", col.table, "column", col.column)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting read helpers run
// standalone or inside a snapshot transaction.
type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func queryCount(q queryer, query string, args ...any) (int64, error) {
	var n int64
	if err := q.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// unixMilli converts a wall-clock instant to the store's epoch-millisecond
// representation.
func unixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// nullable maps empty strings to NULL so optional labels stay out of the
// distribution group counts.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableBool keeps tri-state flags (unset/true/false) distinguishable in
// the store.
func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func stringOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func boolPtr(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	b := nb.Bool
	return &b
}
