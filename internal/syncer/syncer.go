// Package syncer keeps the local registry and the remote store eventually consistent.
//
// State Machine:
// Clean -> Dirty (MarkDirty) -> Clean (successful Push)
//
// Pull is skipped while Dirty so a background refresh cannot overwrite an unsaved edit.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loykin/loungeclock/internal/metrics"
	"github.com/loykin/loungeclock/internal/record"
	"github.com/loykin/loungeclock/internal/registry"
	"github.com/loykin/loungeclock/pkg/client"
)

var ErrUnauthorized = errors.New("invalid or missing password")

// Remote is the subset of the remote store used by the coordinator.
type Remote interface {
	FetchClients(ctx context.Context) ([]record.Record, error)
	SaveClients(ctx context.Context, req client.SaveRequest) error
	CheckPassword(ctx context.Context, password string) (bool, error)
	LogAutoPause(ctx context.Context, id, name string) error
}

type State int32

const (
	StateClean State = iota
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Coordinator is not safe for concurrent use; it shares the registry's owner goroutine.
type Coordinator struct {
	remote Remote
	reg    *registry.Registry
	state  State
	logger *slog.Logger
}

func New(remote Remote, reg *registry.Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{remote: remote, reg: reg, state: StateClean, logger: logger}
}

func (c *Coordinator) State() State { return c.state }

// MarkDirty records an unsaved local mutation.
func (c *Coordinator) MarkDirty() {
	if c.state != StateDirty {
		c.logger.Debug("Local changes pending")
	}
	c.state = StateDirty
}

// Pull replaces the registry with the remote snapshot. It reports false without
// contacting the remote while local changes are pending. On error the registry
// is left untouched.
func (c *Coordinator) Pull(ctx context.Context) (bool, error) {
	if c.state == StateDirty {
		c.logger.Debug("Pull skipped, local changes pending")
		metrics.IncPull("skipped")
		return false, nil
	}
	list, err := c.remote.FetchClients(ctx)
	if err != nil {
		c.logger.Warn("Failed to load clients", "error", err)
		metrics.IncPull("error")
		return false, fmt.Errorf("pull: %w", err)
	}
	c.reg.Replace(list)
	metrics.IncPull("ok")
	return true, nil
}

// ValidateSecret asks the remote store whether secret is valid.
// Blank secrets and transport failures count as invalid.
func (c *Coordinator) ValidateSecret(ctx context.Context, secret string) bool {
	if secret == "" {
		metrics.IncPasswordCheck(false)
		return false
	}
	ok, err := c.remote.CheckPassword(ctx, secret)
	if err != nil {
		c.logger.Warn("Password check failed", "error", err)
		ok = false
	}
	metrics.IncPasswordCheck(ok)
	return ok
}

// Push validates secret and sends every well-formed record with description.
// Dirty is cleared only on success; failures are logged and returned.
func (c *Coordinator) Push(ctx context.Context, secret, description string) error {
	if !c.ValidateSecret(ctx, secret) {
		c.logger.Warn("Save rejected", "description", description)
		metrics.IncPush("unauthorized")
		return ErrUnauthorized
	}
	req := client.SaveRequest{
		Clients:     record.WellFormedOnly(c.reg.All()),
		Password:    secret,
		Description: description,
	}
	if err := c.remote.SaveClients(ctx, req); err != nil {
		c.logger.Warn("Failed to save clients", "error", err, "description", description)
		metrics.IncPush("error")
		if errors.Is(err, client.ErrUnauthorized) {
			return ErrUnauthorized
		}
		return fmt.Errorf("push: %w", err)
	}
	c.state = StateClean
	metrics.IncPush("ok")
	c.logger.Info("Clients saved", "count", len(req.Clients), "description", description)
	return nil
}

// LogAutoPause records an expiry on the remote store. Failures are only logged.
func (c *Coordinator) LogAutoPause(ctx context.Context, rec record.Record) {
	if err := c.remote.LogAutoPause(ctx, rec.ID, rec.Name); err != nil {
		c.logger.Warn("Failed to log auto pause", "id", rec.ID, "error", err)
	}
}
