// Package config provides hierarchical configuration loading for lspkit.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"net"
	"os"
	"path/filepath"
	"time"
)

// Config holds all runtime configuration for the lspkit host.
type Config struct {
	Server    Server    `yaml:"server"`
	Provision Provision `yaml:"provision"`
	Release   Release   `yaml:"release"`
	Worktree  Worktree  `yaml:"worktree"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Cache     Cache     `yaml:"cache"`
	NATS      NATS      `yaml:"nats"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host            string        `yaml:"host"` // Listen address; empty binds every interface (default: 127.0.0.1)
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port the HTTP server listens on.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// Provision holds binary provisioning configuration.
type Provision struct {
	WorkDir             string        `yaml:"work_dir"`             // Root of the per-server working areas
	DownloadConcurrency int           `yaml:"download_concurrency"` // Max concurrent downloads across servers (default: 2)
	DownloadTimeout     time.Duration `yaml:"download_timeout"`     // Per-download timeout; 0 disables (default: 5m)
}

// Release holds release registry configuration.
type Release struct {
	APIURL    string        `yaml:"api_url"`
	Token     string        `yaml:"token"`
	TokenFile string        `yaml:"token_file"` // Re-read on SIGHUP; overrides Token when non-empty
	Timeout   time.Duration `yaml:"timeout"`
}

// Worktree holds the local worktree configuration.
type Worktree struct {
	Root         string `yaml:"root"`
	SettingsFile string `yaml:"settings_file"` // User-level settings; project settings live in <root>/.lspkit/settings.json
	PathEnv      string `yaml:"path_env"`      // Overrides $PATH for binary lookup
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for release lookups.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Cache holds label and release lookup cache configuration.
type Cache struct {
	LabelMaxCost      int64         `yaml:"label_max_cost"` // Max cached labels
	LabelTTL          time.Duration `yaml:"label_ttl"`
	ReleaseTTL        time.Duration `yaml:"release_ttl"`         // Opt-in; 0 (default) looks up the registry on every update check
	ReleaseMaxEntries int64         `yaml:"release_max_entries"` // In-process entries
	ReleaseBucket     string        `yaml:"release_bucket"`      // NATS KV bucket shared between hosts; needs nats.url
}

// NATS holds optional NATS status publishing configuration.
type NATS struct {
	URL string `yaml:"url"` // Empty disables status publishing
}

// Telemetry holds OpenTelemetry exporter configuration.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"` // Empty keeps the no-op providers
	ServiceName  string `yaml:"service_name"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	return Config{
		Server: Server{
			Host:            "127.0.0.1",
			Port:            "7420",
			ShutdownTimeout: 10 * time.Second,
		},
		Provision: Provision{
			WorkDir:             defaultWorkDir(),
			DownloadConcurrency: 2,
			DownloadTimeout:     5 * time.Minute,
		},
		Release: Release{
			APIURL:  "https://api.github.com",
			Timeout: 15 * time.Second,
		},
		Worktree: Worktree{
			Root: ".",
		},
		Logging: Logging{
			Level:   "info",
			Service: "lspkit",
		},
		Breaker: Breaker{
			MaxFailures: 3,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			LabelMaxCost:      100_000,
			LabelTTL:          10 * time.Minute,
			ReleaseMaxEntries: 256,
			ReleaseBucket:     "lspkit_releases",
		},
		Telemetry: Telemetry{
			ServiceName: "lspkit",
		},
	}
}

func defaultWorkDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lspkit", "servers")
	}
	return filepath.Join(dir, "lspkit", "servers")
}
