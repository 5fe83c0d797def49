package loungeclock

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/loungeclock/internal/accounting"
	"github.com/loykin/loungeclock/internal/auth"
	"github.com/loykin/loungeclock/internal/config"
	"github.com/loykin/loungeclock/internal/metrics"
	"github.com/loykin/loungeclock/internal/panel"
	"github.com/loykin/loungeclock/internal/record"
	iapi "github.com/loykin/loungeclock/internal/server"
	"github.com/loykin/loungeclock/internal/store"
	storefactory "github.com/loykin/loungeclock/internal/store/factory"
	"github.com/loykin/loungeclock/pkg/client"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = record.Record

type Row = panel.Row

type Panel = panel.Panel

type PanelOptions = panel.Options

type NewClient = panel.NewClient

type Loop = panel.Loop

type LoopConfig = panel.LoopConfig

type Config = config.Config

var (
	ErrUnauthorized = panel.ErrUnauthorized
	ErrInvalidInput = panel.ErrInvalidInput
	ErrNotFound     = panel.ErrNotFound
	ErrCancelled    = panel.ErrCancelled
)

// NewPanel creates a panel synced with the remote store at baseURL.
func NewPanel(baseURL string, timeout time.Duration, opts PanelOptions) *Panel {
	c := client.New(client.Config{BaseURL: baseURL, Timeout: timeout, Logger: opts.Logger})
	return panel.New(c, opts)
}

func NewLoop(p *Panel, cfg LoopConfig) (*Loop, error) { return panel.NewLoop(p, cfg) }

func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// RemainingSeconds and FormatDuration expose the accounting used by the panel.
func RemainingSeconds(r Record, now time.Time) int64 { return accounting.RemainingSeconds(r, now) }
func FormatDuration(seconds int64) string           { return accounting.FormatDuration(seconds) }

// NewHTTPHandler builds the remote store handler backed by storeDSN so it can be
// mounted under basePath in another router. The close function closes the store.
func NewHTTPHandler(storeDSN, password, basePath string) (http.Handler, func() error, error) {
	r, st, err := newRouter(storeDSN, password, basePath)
	if err != nil {
		return nil, nil, err
	}
	return r.Handler(), st.Close, nil
}

// NewHTTPServer starts the remote store on addr backed by storeDSN.
// The returned close function shuts the server down and closes the store.
func NewHTTPServer(addr, storeDSN, password string) (*http.Server, func() error, error) {
	r, st, err := newRouter(storeDSN, password, "")
	if err != nil {
		return nil, nil, err
	}
	srv := iapi.NewServer(addr, r, nil)
	closeFn := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(ctx)
		if cerr := st.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return srv, closeFn, nil
}

func newRouter(storeDSN, password, basePath string) (*iapi.Router, store.Store, error) {
	v, err := auth.NewVerifier(auth.Config{Password: password})
	if err != nil {
		return nil, nil, err
	}
	st, err := storefactory.NewFromDSN(storeDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return iapi.NewRouter(st, v, iapi.Options{BasePath: basePath}), st, nil
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
