package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/loykin/loungeclock/internal/auth"
	"github.com/loykin/loungeclock/internal/logger"
	itls "github.com/loykin/loungeclock/internal/tls"
	"github.com/loykin/loungeclock/pkg/client"
)

// EnvPrefix prefixes environment overrides, e.g. LOUNGECLOCK_PANEL_BACKEND_URL.
const EnvPrefix = "LOUNGECLOCK"

// Config is the top-level TOML/YAML structure.
type Config struct {
	EnvFiles []string      `mapstructure:"env_files"`
	Log      logger.Config `mapstructure:"log"`
	Panel    PanelConfig   `mapstructure:"panel"`
	Server   ServerConfig  `mapstructure:"server"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
}

// PanelConfig drives the admin panel and the one-shot commands.
type PanelConfig struct {
	BackendURL     string        `mapstructure:"backend_url"`
	Tick           string        `mapstructure:"tick"`
	Refresh        string        `mapstructure:"refresh"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TLS            TLSConfig     `mapstructure:"tls"`
}

type TLSConfig struct {
	CACert     string `mapstructure:"ca_cert"`
	ServerName string `mapstructure:"server_name"`
	SkipVerify bool   `mapstructure:"skip_verify"`
}

// ServerConfig drives the reference remote store.
type ServerConfig struct {
	Listen   string      `mapstructure:"listen"`
	BasePath string      `mapstructure:"base_path"`
	Store    string      `mapstructure:"store"`
	History  []string    `mapstructure:"history"`
	Auth     auth.Config `mapstructure:"auth"`
	TLS      itls.Config `mapstructure:"tls"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ClientConfig converts the panel section into remote client settings.
func (p PanelConfig) ClientConfig() client.Config {
	c := client.Config{BaseURL: p.BackendURL, Timeout: p.RequestTimeout}
	if p.TLS.CACert != "" || p.TLS.ServerName != "" || p.TLS.SkipVerify {
		c.TLS = &client.TLSClientConfig{
			CACert:     p.TLS.CACert,
			ServerName: p.TLS.ServerName,
			SkipVerify: p.TLS.SkipVerify,
		}
	}
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env_files", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("panel.backend_url", client.DefaultBaseURL)
	v.SetDefault("panel.tick", "1s")
	v.SetDefault("panel.refresh", "30s")
	v.SetDefault("panel.request_timeout", 10*time.Second)
	v.SetDefault("panel.tls.ca_cert", "")
	v.SetDefault("panel.tls.server_name", "")
	v.SetDefault("panel.tls.skip_verify", false)

	v.SetDefault("server.listen", ":3000")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.store", "sqlite://loungeclock.db")
	v.SetDefault("server.history", []string{})
	v.SetDefault("server.auth.password", "")
	v.SetDefault("server.auth.password_hash", "")
	v.SetDefault("server.auth.bcrypt_cost", 0)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.min_version", "")
	v.SetDefault("server.tls.hosts", []string{})
	v.SetDefault("server.tls.valid_days", 365)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, _ := Load("")
	return cfg
}

// Load reads path (TOML or YAML by extension; empty means defaults only),
// loads env_files into the process environment, then applies LOUNGECLOCK_*
// overrides. Variables already set in the environment win over env_files.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if t := configType(path); t != "" {
			v.SetConfigType(t)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	files := v.GetStringSlice("env_files")
	if err := LoadEnvFiles(resolve(path, files)...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Panel.BackendURL) == "" {
		errs = append(errs, errors.New("panel.backend_url must not be empty"))
	}
	if c.Panel.RequestTimeout < 0 {
		errs = append(errs, errors.New("panel.request_timeout must not be negative"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen required when metrics are enabled"))
	}
	return errors.Join(errs...)
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// resolve makes relative env_files entries relative to the config file.
func resolve(cfgPath string, files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = filepath.Clean(f)
		if cfgPath != "" && !filepath.IsAbs(f) {
			f = filepath.Join(filepath.Dir(cfgPath), f)
		}
		out = append(out, f)
	}
	return out
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}
