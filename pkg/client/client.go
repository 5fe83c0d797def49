package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/loykin/loungeclock/internal/record"
)

// DefaultBaseURL is the local development backend.
const DefaultBaseURL = "http://localhost:3000"

// ErrUnauthorized is returned when the remote store rejects the password.
var ErrUnauthorized = errors.New("password rejected by remote store")

// Client talks to the remote client store over HTTP+JSON.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	// Timeout of zero means requests are bounded only by their context.
	Timeout time.Duration
	Logger  *slog.Logger
	TLS     *TLSClientConfig
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	CACert     string // CA certificate file path
	ServerName string // Server name for verification
	SkipVerify bool   // Skip certificate verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL}
}

// New creates a remote store client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.TLS != nil {
		tlsConfig, err := setupClientTLS(*config.TLS)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// BaseURL returns the normalized remote address.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchClients returns the full remote snapshot.
func (c *Client) FetchClients(ctx context.Context) ([]record.Record, error) {
	var list []record.Record
	if err := c.doJSON(ctx, http.MethodGet, "/clients", nil, &list); err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched clients", "count", len(list))
	return list, nil
}

// SaveClients replaces the remote snapshot.
func (c *Client) SaveClients(ctx context.Context, req SaveRequest) error {
	if req.Clients == nil {
		req.Clients = []record.Record{}
	}
	c.logger.Debug("Saving clients", "count", len(req.Clients), "description", req.Description)
	return c.doJSON(ctx, http.MethodPost, "/clients", req, nil)
}

// CheckPassword asks the remote store whether password is the shared secret.
func (c *Client) CheckPassword(ctx context.Context, password string) (bool, error) {
	var out PasswordResponse
	if err := c.doJSON(ctx, http.MethodPost, "/check-password", PasswordRequest{Password: password}, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// LogAutoPause records an automatic expiry on the remote store.
func (c *Client) LogAutoPause(ctx context.Context, id, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/log-auto-pause", AutoPauseRequest{ClientID: id, ClientName: name}, nil)
}

// IsReachable checks the health endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		c.logger.Debug("Remote store unreachable", "error", err)
		return false
	}
	return true
}

func setupClientTLS(cfg TLSClientConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.SkipVerify,
		ServerName:         cfg.ServerName,
	}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// doJSON performs a request with an optional JSON body and decodes a JSON reply into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}
