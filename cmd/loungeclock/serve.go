package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/loungeclock/internal/auth"
	"github.com/loykin/loungeclock/internal/history"
	histfactory "github.com/loykin/loungeclock/internal/history/factory"
	"github.com/loykin/loungeclock/internal/metrics"
	"github.com/loykin/loungeclock/internal/server"
	storefactory "github.com/loykin/loungeclock/internal/store/factory"
	itls "github.com/loykin/loungeclock/internal/tls"
)

type serveFlags struct {
	Listen string
	Store  string
}

func createServeCommand(c *command) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the remote store the panel syncs with",
		Long: `Run the HTTP remote store. The admin password comes from
[server.auth] password or password_hash (or LOUNGECLOCK_SERVER_AUTH_PASSWORD).

Examples:
  loungeclock serve --config lounge.toml
  loungeclock serve --listen :3000 --store sqlite://lounge.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides server.listen)")
	cmd.Flags().StringVar(&f.Store, "store", "", "store DSN (overrides server.store)")
	return cmd
}

func (c *command) serve(ctx context.Context, cmd *cobra.Command, f *serveFlags) error {
	s, err := c.open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()
	cfg := s.cfg.Server
	if f.Listen != "" {
		cfg.Listen = f.Listen
	}
	if f.Store != "" {
		cfg.Store = f.Store
	}

	if c.flags.Password != "" && cfg.Auth.PasswordHash == "" {
		cfg.Auth.Password = c.flags.Password
	}
	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	st, err := storefactory.NewFromDSN(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("store schema: %w", err)
	}

	sinks, err := histfactory.NewSinks(cfg.History)
	if err != nil {
		return fmt.Errorf("history sinks: %w", err)
	}
	hist := history.NewFanout(s.logger.With("component", "history"), sinks...)
	defer func() { _ = hist.Close() }()

	if s.cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}
	}

	router := server.NewRouter(st, verifier, server.Options{
		BasePath: cfg.BasePath,
		History:  hist,
		Logger:   s.logger.With("component", "server"),
		Metrics:  s.cfg.Metrics.Enabled,
	})
	tlsConfig, err := itls.Setup(cfg.TLS)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	srv := server.NewServer(cfg.Listen, router, tlsConfig)
	s.logger.Info("Remote store listening", "addr", cfg.Listen, "tls", tlsConfig != nil, "store", cfg.Store, "history_sinks", hist.Len())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Remote store stopped")
	return nil
}
