package server

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/loungeclock/internal/auth"
	"github.com/loykin/loungeclock/internal/history"
	"github.com/loykin/loungeclock/internal/metrics"
	"github.com/loykin/loungeclock/internal/record"
	"github.com/loykin/loungeclock/internal/store"
	"github.com/loykin/loungeclock/pkg/client"
)

// Router serves the remote store consumed by the panel.
// Endpoints:
//
//	GET  {basePath}/clients          full snapshot
//	POST {basePath}/clients          body: {clients, password, description}
//	POST {basePath}/check-password   body: {password}
//	POST {basePath}/log-auto-pause   body: {clientId, clientName}
//	GET  {basePath}/health
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	store    store.Store
	verifier *auth.Verifier
	history  *history.Fanout
	logger   *slog.Logger
	basePath string
	metrics  bool
}

// Options carries the optional collaborators of a Router.
type Options struct {
	BasePath string
	History  *history.Fanout
	Logger   *slog.Logger
	// Metrics mounts GET /metrics and records request latency.
	Metrics bool
}

func NewRouter(st store.Store, verifier *auth.Verifier, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.History == nil {
		opts.History = history.NewFanout(opts.Logger)
	}
	return &Router{
		store:    st,
		verifier: verifier,
		history:  opts.History,
		logger:   opts.Logger,
		basePath: sanitizeBase(opts.BasePath),
		metrics:  opts.Metrics,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	if r.metrics {
		g.Use(observe())
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	group := g.Group(r.basePath)
	group.GET("/clients", r.handleList)
	group.POST("/clients", r.handleSave)
	group.POST("/check-password", r.handleCheckPassword)
	group.POST("/log-auto-pause", r.handleAutoPause)
	group.GET("/health", r.handleHealth)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// A non-nil tlsConfig serves HTTPS with its certificates.
func NewServer(addr string, r *Router, tlsConfig *tls.Config) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		var err error
		if tlsConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			r.logger.Error("HTTP server stopped", "addr", addr, "error", err)
		}
	}()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleList(c *gin.Context) {
	list, err := r.store.LoadClients(c.Request.Context())
	if err != nil {
		r.logger.Error("Load clients failed", "error", err)
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: "failed to load clients"})
		return
	}
	if list == nil {
		list = []record.Record{}
	}
	writeJSON(c, http.StatusOK, list)
}

func (r *Router) handleSave(c *gin.Context) {
	var req client.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !r.verifier.Check(req.Password) {
		writeJSON(c, http.StatusUnauthorized, errorResp{Error: "invalid password"})
		return
	}
	list := record.UniqueByID(record.WellFormedOnly(req.Clients))
	if dropped := len(req.Clients) - len(list); dropped > 0 {
		r.logger.Warn("Dropped malformed or duplicate clients", "count", dropped)
	}
	ctx := c.Request.Context()
	if err := r.store.ReplaceClients(ctx, list); err != nil {
		r.logger.Error("Save clients failed", "error", err)
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: "failed to save clients"})
		return
	}
	metrics.RecordSnapshot(len(list))
	r.logger.Info("Snapshot saved", "clients", len(list), "description", req.Description)
	r.record(ctx, history.Event{Type: history.EventSnapshot, Description: req.Description, Clients: len(list)})
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleCheckPassword(c *gin.Context) {
	var req client.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	valid := r.verifier.Check(req.Password)
	metrics.IncPasswordCheck(valid)
	writeJSON(c, http.StatusOK, client.PasswordResponse{Valid: valid})
}

func (r *Router) handleAutoPause(c *gin.Context) {
	var req client.AutoPauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.ClientID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "clientId required"})
		return
	}
	r.logger.Info("Client auto-paused", "id", req.ClientID, "name", req.ClientName)
	r.record(c.Request.Context(), history.Event{
		Type:        history.EventAutoPause,
		ClientID:    req.ClientID,
		ClientName:  req.ClientName,
		Description: "Time expired for " + req.ClientName,
	})
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// record sends to the history sinks; sink failures never fail the request.
func (r *Router) record(ctx context.Context, e history.Event) {
	if r.history.Len() == 0 {
		return
	}
	_ = r.history.Send(ctx, e)
}

func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
