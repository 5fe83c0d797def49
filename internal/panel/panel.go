// Package panel owns the client registry and sync coordinator and exposes the
// operator actions. A Panel is not safe for concurrent use; wrap it in a Loop
// to serialize actions with the periodic tick and refresh.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/loykin/loungeclock/internal/accounting"
	"github.com/loykin/loungeclock/internal/metrics"
	"github.com/loykin/loungeclock/internal/record"
	"github.com/loykin/loungeclock/internal/registry"
	"github.com/loykin/loungeclock/internal/syncer"
	"github.com/loykin/loungeclock/internal/timer"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrCancelled    = errors.New("action cancelled")
	ErrUnauthorized = syncer.ErrUnauthorized
	ErrNotFound     = registry.ErrNotFound
	ErrDuplicateID  = registry.ErrDuplicateID
)

// Row is one rendered line of the client table.
type Row struct {
	record.Record
	State     timer.State
	Remaining int64
	Display   string
	LowTime   bool
}

// NewClient is the add-client form.
type NewClient struct {
	ID    string // optional; a random UUID is used when blank
	Name  string
	Phone string
	Role  string
	Hours string
}

type Options struct {
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Notifier  Notifier
	Renderer  Renderer
	Confirmer Confirmer
	NewID     func() string
}

type Panel struct {
	reg       *registry.Registry
	sync      *syncer.Coordinator
	clock     clockwork.Clock
	logger    *slog.Logger
	notifier  Notifier
	renderer  Renderer
	confirmer Confirmer
	newID     func() string
	filter    registry.Status
}

func New(remote syncer.Remote, opts Options) *Panel {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{logger: opts.Logger}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	reg := registry.New()
	return &Panel{
		reg:       reg,
		sync:      syncer.New(remote, reg, opts.Logger.With("component", "sync")),
		clock:     opts.Clock,
		logger:    opts.Logger,
		notifier:  opts.Notifier,
		renderer:  opts.Renderer,
		confirmer: opts.Confirmer,
		newID:     opts.NewID,
		filter:    registry.StatusAll,
	}
}

// SyncState exposes the coordinator state.
func (p *Panel) SyncState() syncer.State { return p.sync.State() }

// Get returns the current copy of a record.
func (p *Panel) Get(id string) (record.Record, bool) { return p.reg.Get(id) }

// Records returns every record in view order.
func (p *Panel) Records() []record.Record { return p.reg.All() }

// SetFilter changes the status filter used by Rows and Render.
func (p *Panel) SetFilter(status registry.Status) error {
	if _, err := ParseFilter(string(status)); err != nil {
		return err
	}
	p.filter = status
	p.render()
	return nil
}

func (p *Panel) Filter() registry.Status { return p.filter }

// ParseFilter is registry.ParseStatus with ErrInvalidInput attached.
func ParseFilter(s string) (registry.Status, error) {
	st, err := registry.ParseStatus(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return st, nil
}

// Sort selects a sort key, flipping direction on repeated selection.
func (p *Panel) Sort(key registry.SortKey) (registry.SortState, error) {
	st, err := p.reg.Sort(key, p.clock.Now())
	if err != nil {
		return st, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	p.render()
	return st, nil
}

// Rows returns the visible rows for the current filter.
func (p *Panel) Rows() []Row {
	now := p.clock.Now()
	list, err := p.reg.Filter(p.filter, now)
	if err != nil {
		p.logger.Error("Invalid filter", "filter", p.filter, "error", err)
		return nil
	}
	rows := make([]Row, len(list))
	for i, rec := range list {
		rem := accounting.RemainingSeconds(rec, now)
		rows[i] = Row{
			Record:    rec,
			State:     timer.StateOf(rec),
			Remaining: rem,
			Display:   accounting.FormatDuration(rem),
			LowTime:   accounting.LowTime(rec, now),
		}
	}
	return rows
}

// Refresh pulls the registry from the remote store unless local changes are pending.
// Failures are logged by the coordinator and otherwise ignored.
func (p *Panel) Refresh(ctx context.Context) { _ = p.Load(ctx) }

// Load is Refresh that reports the pull error.
func (p *Panel) Load(ctx context.Context) error {
	pulled, err := p.sync.Pull(ctx)
	if err != nil {
		return err
	}
	if !pulled {
		return nil
	}
	p.reg.Resort(p.clock.Now())
	p.render()
	return nil
}

// Tick expires running records whose time is up and re-renders the view.
// Each expiry is audited and announced exactly once.
func (p *Panel) Tick(ctx context.Context) {
	now := p.clock.Now()
	var expired []record.Record
	running, stopped := 0, 0
	for _, rec := range p.reg.All() {
		var fired bool
		_ = p.reg.Update(rec.ID, func(r *record.Record) error {
			fired = timer.Expire(r, now)
			if fired {
				expired = append(expired, r.Clone())
			}
			return nil
		})
		if fired || !rec.Running() {
			stopped++
		} else {
			running++
		}
	}
	metrics.SetClients(running, stopped)

	if len(expired) > 0 {
		p.sync.MarkDirty()
	}
	for _, rec := range expired {
		metrics.IncExpiry()
		metrics.RecordTransition(timer.StateRunning.String(), timer.StateStopped.String())
		p.logger.Info("Client time finished", "id", rec.ID, "name", rec.Name, "elapsed", rec.ElapsedSeconds)
		p.sync.LogAutoPause(ctx, rec)
		p.notifier.Notify(fmt.Sprintf("Client %s has finished their time.", rec.Name))
	}
	p.render()
}

// CreateClient validates the form, authorizes, adds the record and saves.
func (p *Panel) CreateClient(ctx context.Context, in NewClient, secret string) (record.Record, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || phone == "" {
		return record.Record{}, p.fail("create", fmt.Errorf("%w: name and phone are required", ErrInvalidInput))
	}
	secs, err := timer.HoursToSeconds(in.Hours)
	if err != nil {
		return record.Record{}, p.fail("create", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	if err := p.authorize(ctx, secret); err != nil {
		return record.Record{}, p.fail("create", err)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = p.newID()
	}
	rec := record.New(id, name, phone, in.Role, secs, p.clock.Now())
	if err := p.reg.Add(rec); err != nil {
		return record.Record{}, p.fail("create", err)
	}
	p.commit(ctx, "create", secret, fmt.Sprintf("Added client %s with %s", rec.Name, accounting.FormatDuration(secs)))
	return rec, nil
}

// Toggle starts a stopped record or pauses a running one.
func (p *Panel) Toggle(ctx context.Context, id, secret string) (timer.State, error) {
	cur, ok := p.reg.Get(id)
	if !ok {
		return timer.StateStopped, p.fail("toggle", fmt.Errorf("%s: %w", id, ErrNotFound))
	}
	from := timer.StateOf(cur)
	if err := p.authorize(ctx, secret); err != nil {
		return from, p.fail("toggle", err)
	}
	var to timer.State
	err := p.reg.Update(id, func(r *record.Record) error {
		var err error
		to, err = timer.Toggle(r, p.clock.Now())
		return err
	})
	if err != nil {
		return from, p.fail("toggle", err)
	}
	metrics.RecordTransition(from.String(), to.String())
	verb := "Started"
	if to == timer.StateStopped {
		verb = "Paused"
	}
	p.commit(ctx, "toggle", secret, fmt.Sprintf("%s %s", verb, cur.Name))
	return to, nil
}

// AddTime extends a record by hours and minutes.
func (p *Panel) AddTime(ctx context.Context, id, hours, minutes, secret string) (int64, error) {
	secs, err := timer.ParseAddTime(hours, minutes)
	if err != nil {
		return 0, p.fail("add_time", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	cur, ok := p.reg.Get(id)
	if !ok {
		return 0, p.fail("add_time", fmt.Errorf("%s: %w", id, ErrNotFound))
	}
	if err := p.authorize(ctx, secret); err != nil {
		return 0, p.fail("add_time", err)
	}
	if err := p.reg.Update(id, func(r *record.Record) error { return timer.AddTime(r, secs) }); err != nil {
		return 0, p.fail("add_time", err)
	}
	p.commit(ctx, "add_time", secret, fmt.Sprintf("Added %s to %s", accounting.FormatDuration(secs), cur.Name))
	return secs, nil
}

// Delete removes a record after authorization and, when a Confirmer is set, confirmation.
func (p *Panel) Delete(ctx context.Context, id, secret string) error {
	cur, ok := p.reg.Get(id)
	if !ok {
		return p.fail("delete", fmt.Errorf("%s: %w", id, ErrNotFound))
	}
	if err := p.authorize(ctx, secret); err != nil {
		return p.fail("delete", err)
	}
	if p.confirmer != nil {
		yes, err := p.confirmer.Confirm(ctx, fmt.Sprintf("Are you sure you want to delete %s?", cur.Name))
		if err != nil {
			return p.fail("delete", err)
		}
		if !yes {
			metrics.IncAction("delete", "cancelled")
			return ErrCancelled
		}
	}
	if err := p.reg.Remove(id); err != nil {
		return p.fail("delete", err)
	}
	p.commit(ctx, "delete", secret, fmt.Sprintf("Deleted %s", cur.Name))
	return nil
}

// authorize validates secret remotely before any state changes.
func (p *Panel) authorize(ctx context.Context, secret string) error {
	if !p.sync.ValidateSecret(ctx, secret) {
		return ErrUnauthorized
	}
	return nil
}

// commit marks the change dirty, re-renders and pushes. Push failures are only logged.
func (p *Panel) commit(ctx context.Context, action, secret, description string) {
	metrics.IncAction(action, "ok")
	p.sync.MarkDirty()
	p.render()
	_ = p.sync.Push(ctx, secret, description)
}

func (p *Panel) fail(action string, err error) error {
	result := "error"
	switch {
	case errors.Is(err, ErrUnauthorized):
		result = "unauthorized"
	case errors.Is(err, ErrInvalidInput):
		result = "invalid"
	}
	metrics.IncAction(action, result)
	p.logger.Debug("Action rejected", "action", action, "error", err)
	return err
}

func (p *Panel) render() {
	if p.renderer != nil {
		p.renderer.Render(p.Rows())
	}
}

// SetConfirmer replaces the delete confirmation port; nil disables confirmation.
func (p *Panel) SetConfirmer(c Confirmer) { p.confirmer = c }

// Now returns the panel clock's current time.
func (p *Panel) Now() time.Time { return p.clock.Now() }
