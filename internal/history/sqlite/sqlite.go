package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/loungeclock/internal/history"
)

// Sink is the SQLite flavour of history.SQLSink.
type Sink struct {
	*history.SQLSink
}

// New opens "sqlite:///path/file.db", "sqlite://:memory:", a bare path or ":memory:".
func New(dsn string) (*Sink, error) {
	path := strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(path), "sqlite://") {
		path = path[len("sqlite://"):]
	}
	if path == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection so ":memory:" is a single database.
	db.SetMaxOpenConns(1)
	s, err := history.NewSQLSink(context.Background(), db, history.SQLiteDialect)
	if err != nil {
		return nil, err
	}
	return &Sink{SQLSink: s}, nil
}
