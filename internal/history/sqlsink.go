package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect describes how a SQL backend spells the audit table.
type Dialect struct {
	Name string
	// Placeholder returns the bind marker for the 1-based argument n.
	Placeholder func(n int) string
	TimeType    string
}

var (
	SQLiteDialect = Dialect{
		Name:        "sqlite",
		Placeholder: func(int) string { return "?" },
		TimeType:    "TIMESTAMP",
	}
	PostgresDialect = Dialect{
		Name:        "postgres",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		TimeType:    "TIMESTAMPTZ",
	}
)

// SQLSink appends events to the lounge_history table. The table and its
// (type, occurred_at) index are created when missing.
type SQLSink struct {
	db      *sql.DB
	dialect Dialect
	insert  string
	count   string
}

// NewSQLSink takes ownership of db and closes it if the schema cannot be created.
func NewSQLSink(ctx context.Context, db *sql.DB, d Dialect) (*SQLSink, error) {
	ph := make([]string, 6)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	s := &SQLSink{
		db:      db,
		dialect: d,
		insert: `INSERT INTO lounge_history(occurred_at, type, client_id, client_name, description, clients)
			VALUES(` + strings.Join(ph, ", ") + `)`,
		count: `SELECT COUNT(*) FROM lounge_history WHERE type = ` + d.Placeholder(1),
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lounge_history(
			occurred_at ` + s.dialect.TimeType + ` NOT NULL,
			type TEXT NOT NULL,
			client_id TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			clients INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS lounge_history_type_at ON lounge_history(type, occurred_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s history schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

func (s *SQLSink) Send(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, s.insert,
		e.OccurredAt.UTC(), string(e.Type), e.ClientID, e.ClientName, e.Description, e.Clients)
	return err
}

// Count returns the number of stored events of type t.
func (s *SQLSink) Count(ctx context.Context, t EventType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.count, string(t)).Scan(&n)
	return n, err
}

func (s *SQLSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
