package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/loungeclock/internal/record"
)

func TestSQLiteReplaceAndLoad(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	got, err := db.LoadClients(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty load: %v %v", got, err)
	}

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	list := []record.Record{
		{ID: "b", Name: "Bob", Phone: "1", Role: "vip", BuyDate: "2024-05-01", TotalSeconds: 3600, ElapsedSeconds: 10, StartTimestamp: &ts},
		{ID: "a", Name: "Ann", TotalSeconds: 60, Paused: true},
	}
	if err := db.ReplaceClients(ctx, list); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err = db.LoadClients(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("order not preserved: %+v", got)
	}
	if got[0].StartTimestamp == nil || !got[0].StartTimestamp.Equal(ts) || got[0].Paused {
		t.Fatalf("running record mangled: %+v", got[0])
	}
	if got[1].StartTimestamp != nil || !got[1].Paused {
		t.Fatalf("stopped record mangled: %+v", got[1])
	}

	if err := db.ReplaceClients(ctx, list[1:]); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, _ = db.LoadClients(ctx)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("replace did not drop old rows: %+v", got)
	}
}

func TestSQLiteReplaceRollsBackOnDuplicate(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "clients.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := db.ReplaceClients(ctx, []record.Record{{ID: "keep", Name: "K", TotalSeconds: 1}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	dup := []record.Record{{ID: "x", Name: "X", TotalSeconds: 1}, {ID: "x", Name: "Y", TotalSeconds: 1}}
	if err := db.ReplaceClients(ctx, dup); err == nil {
		t.Fatalf("expected primary key violation")
	}
	got, _ := db.LoadClients(ctx)
	if len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("failed replace was not rolled back: %+v", got)
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
