package history

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (m *memSink) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) Close() error { m.closed = true; return nil }

func TestFanoutDeliversToAll(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	f := NewFanout(nil, a, b)
	if f.Len() != 2 {
		t.Fatalf("Len = %d", f.Len())
	}
	err := f.Send(context.Background(), Event{Type: EventAutoPause, ClientID: "c1", ClientName: "Bob"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	for i, s := range []*memSink{a, b} {
		if len(s.events) != 1 || s.events[0].ClientID != "c1" {
			t.Fatalf("sink %d got %+v", i, s.events)
		}
		if s.events[0].OccurredAt.IsZero() {
			t.Fatalf("sink %d: occurred_at not filled", i)
		}
	}
}

func TestFanoutContinuesAfterFailure(t *testing.T) {
	boom := errors.New("down")
	bad, good := &memSink{err: boom}, &memSink{}
	f := NewFanout(nil, bad, good)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := f.Send(context.Background(), Event{Type: EventSnapshot, OccurredAt: at, Clients: 3})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(good.events) != 1 || !good.events[0].OccurredAt.Equal(at) || good.events[0].Clients != 3 {
		t.Fatalf("healthy sink missed the event: %+v", good.events)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !bad.closed || !good.closed {
		t.Fatalf("sinks not closed")
	}
}

func TestSQLSinkDialects(t *testing.T) {
	if got := PostgresDialect.Placeholder(3); got != "$3" {
		t.Fatalf("postgres placeholder = %q", got)
	}
	if got := SQLiteDialect.Placeholder(3); got != "?" {
		t.Fatalf("sqlite placeholder = %q", got)
	}
}

func TestSQLSinkRoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	s, err := NewSQLSink(ctx, db, SQLiteDialect)
	if err != nil {
		t.Fatalf("NewSQLSink: %v", err)
	}
	defer func() { _ = s.Close() }()

	f := NewFanout(nil, s)
	if err := f.Send(ctx, Event{Type: EventAutoPause, ClientID: "c1", ClientName: "Bob"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	n, err := s.Count(ctx, EventAutoPause)
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if n, _ := s.Count(ctx, EventSnapshot); n != 0 {
		t.Fatalf("snapshot count = %d", n)
	}
}
