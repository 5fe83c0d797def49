package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/loungeclock/internal/metrics"
)

// EventType defines the kind of audit event.
type EventType string

const (
	// EventSnapshot is an accepted POST /clients.
	EventSnapshot EventType = "snapshot"
	// EventAutoPause is an automatic pause after a client's time ran out.
	EventAutoPause EventType = "auto_pause"
)

// Event is an audit entry exported to external systems.
type Event struct {
	Type        EventType `json:"type"`
	OccurredAt  time.Time `json:"occurred_at"`
	ClientID    string    `json:"client_id,omitempty"`
	ClientName  string    `json:"client_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Clients     int       `json:"clients"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Fanout delivers every event to all sinks. A failing sink does not stop the others.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: append([]Sink(nil), sinks...), logger: logger}
}

func (f *Fanout) Len() int { return len(f.sinks) }

// Send returns the joined errors of every failed sink.
func (f *Fanout) Send(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Send(ctx, e); err != nil {
			f.logger.Warn("History sink failed", "event", e.Type, "error", err)
			metrics.IncHistoryError(string(e.Type))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that has a Close method.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
