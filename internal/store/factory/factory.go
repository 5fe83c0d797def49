package factory

import (
	"errors"
	"strings"

	"github.com/loykin/loungeclock/internal/store"
	pg "github.com/loykin/loungeclock/internal/store/postgres"
	sq "github.com/loykin/loungeclock/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - sqlite:  "sqlite://<path>" or bare filepath (treated as sqlite)
//   - memory:  "memory://" (private in-memory sqlite, lost on exit)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "memory://") {
		return sq.New(":memory:")
	}
	if strings.HasPrefix(ld, "sqlite://") {
		path := strings.TrimPrefix(d, d[:len("sqlite://")])
		return sq.New(path)
	}
	return sq.New(d)
}
