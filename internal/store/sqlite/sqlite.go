package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/loungeclock/internal/record"
	"github.com/loykin/loungeclock/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	d.SetMaxOpenConns(1)
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clients(
			position INTEGER NOT NULL,
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			buy_date TEXT NOT NULL DEFAULT '',
			total_seconds INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL,
			start_ms INTEGER NULL,
			paused BOOLEAN NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_clients_position ON clients(position);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) LoadClients(ctx context.Context) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, id, name, phone, role, buy_date, total_seconds, elapsed_seconds, start_ms, paused
		FROM clients
		ORDER BY position ASC;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return store.ScanRows(rows)
}

func (s *DB) ReplaceClients(ctx context.Context, list []record.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clients;`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clients(position, id, name, phone, role, buy_date, total_seconds, elapsed_seconds, start_ms, paused)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, rec := range list {
		r := store.ToRow(i, rec)
		if _, err := stmt.ExecContext(ctx, r.Position, r.ID, r.Name, r.Phone, r.Role, r.BuyDate, r.TotalSeconds, r.ElapsedSeconds, r.StartMs, r.Paused); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
