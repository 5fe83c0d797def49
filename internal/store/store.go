package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/loykin/loungeclock/internal/record"
)

// Store persists the flat client snapshot served by the remote store.
// ReplaceClients swaps the whole snapshot atomically; LoadClients returns it
// in the order it was written.
type Store interface {
	EnsureSchema(ctx context.Context) error
	LoadClients(ctx context.Context) ([]record.Record, error)
	ReplaceClients(ctx context.Context, list []record.Record) error
	Close() error
}

// Row is the column form of a record shared by the SQL backends.
// StartMs holds the start timestamp in Unix milliseconds.
type Row struct {
	Position       int
	ID             string
	Name           string
	Phone          string
	Role           string
	BuyDate        string
	TotalSeconds   int64
	ElapsedSeconds int64
	StartMs        sql.NullInt64
	Paused         bool
}

func ToRow(pos int, r record.Record) Row {
	row := Row{
		Position:       pos,
		ID:             r.ID,
		Name:           r.Name,
		Phone:          r.Phone,
		Role:           r.Role,
		BuyDate:        r.BuyDate,
		TotalSeconds:   r.TotalSeconds,
		ElapsedSeconds: r.ElapsedSeconds,
		Paused:         r.Paused,
	}
	if r.StartTimestamp != nil {
		row.StartMs = sql.NullInt64{Int64: r.StartTimestamp.UnixMilli(), Valid: true}
	}
	return row
}

func (row Row) Record() record.Record {
	r := record.Record{
		ID:             row.ID,
		Name:           row.Name,
		Phone:          row.Phone,
		Role:           row.Role,
		BuyDate:        row.BuyDate,
		TotalSeconds:   row.TotalSeconds,
		ElapsedSeconds: row.ElapsedSeconds,
		Paused:         row.Paused,
	}
	if row.StartMs.Valid {
		ts := time.UnixMilli(row.StartMs.Int64).UTC()
		r.StartTimestamp = &ts
	}
	return r
}

// ScanRows reads rows selected in column order
// position, id, name, phone, role, buy_date, total_seconds, elapsed_seconds, start_ms, paused.
func ScanRows(rows *sql.Rows) ([]record.Record, error) {
	out := make([]record.Record, 0)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Position, &r.ID, &r.Name, &r.Phone, &r.Role, &r.BuyDate, &r.TotalSeconds, &r.ElapsedSeconds, &r.StartMs, &r.Paused); err != nil {
			return nil, err
		}
		out = append(out, r.Record())
	}
	return out, rows.Err()
}
