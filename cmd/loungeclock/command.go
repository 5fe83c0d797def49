package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/loykin/loungeclock/internal/config"
	"github.com/loykin/loungeclock/internal/logger"
	"github.com/loykin/loungeclock/internal/panel"
	"github.com/loykin/loungeclock/internal/syncer"
	"github.com/loykin/loungeclock/pkg/client"
)

var errNotSaved = errors.New("changes were not saved to the remote store")

// command carries what every subcommand resolves from flags and config.
type command struct {
	flags *GlobalFlags
}

type session struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	client *client.Client
}

func (s *session) Close() { _ = s.closer.Close() }

// open loads config, builds the logger and the remote client.
// Logs go to errOut so command output stays machine-readable.
func (c *command) open(errOut io.Writer) (*session, error) {
	cfg, err := config.Load(c.flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if c.flags.APIUrl != "" {
		cfg.Panel.BackendURL = c.flags.APIUrl
	}
	log, closer, err := logger.New(cfg.Log, errOut)
	if err != nil {
		return nil, err
	}
	cc := cfg.Panel.ClientConfig()
	cc.Logger = log.With("component", "client")
	return &session{cfg: cfg, logger: log, closer: closer, client: client.New(cc)}, nil
}

// newPanel builds a panel and loads the remote snapshot.
func (s *session) newPanel(ctx context.Context, opts panel.Options) (*panel.Panel, error) {
	opts.Logger = s.logger
	p := panel.New(s.client, opts)
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// credentials prefers the --password flag over asking on src.
func (c *command) credentials(src panel.CredentialSource) panel.CredentialSource {
	if c.flags.Password != "" {
		return panel.StaticSecret(c.flags.Password)
	}
	return src
}

// secret returns the --password flag or asks for it.
func (c *command) secret(ctx context.Context, src panel.CredentialSource, action string) (string, error) {
	return c.credentials(src).Secret(ctx, fmt.Sprintf("Password to %s: ", action))
}

// saved reports a push that did not go through after a successful action.
func saved(p *panel.Panel) error {
	if p.SyncState() == syncer.StateDirty {
		return errNotSaved
	}
	return nil
}
