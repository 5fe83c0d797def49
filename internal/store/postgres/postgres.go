package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/loungeclock/internal/record"
	"github.com/loykin/loungeclock/internal/store"
)

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clients(
			position INTEGER NOT NULL,
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			buy_date TEXT NOT NULL DEFAULT '',
			total_seconds BIGINT NOT NULL,
			elapsed_seconds BIGINT NOT NULL,
			start_ms BIGINT NULL,
			paused BOOLEAN NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_clients_position ON clients(position);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) LoadClients(ctx context.Context) ([]record.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT position, id, name, phone, role, buy_date, total_seconds, elapsed_seconds, start_ms, paused
		FROM clients
		ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return store.ScanRows(rows)
}

func (p *DB) ReplaceClients(ctx context.Context, list []record.Record) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clients`); err != nil {
		return err
	}
	for i, rec := range list {
		r := store.ToRow(i, rec)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients(position, id, name, phone, role, buy_date, total_seconds, elapsed_seconds, start_ms, paused)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			r.Position, r.ID, r.Name, r.Phone, r.Role, r.BuyDate, r.TotalSeconds, r.ElapsedSeconds, r.StartMs, r.Paused)
		if err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
