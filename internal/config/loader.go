package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "lspkit.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv("LSPKIT_CONFIG"); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Host, "LSPKIT_HOST")
	setString(&cfg.Server.Port, "LSPKIT_PORT")
	setDuration(&cfg.Server.ShutdownTimeout, "LSPKIT_SHUTDOWN_TIMEOUT")

	setString(&cfg.Provision.WorkDir, "LSPKIT_WORK_DIR")
	setInt(&cfg.Provision.DownloadConcurrency, "LSPKIT_DOWNLOAD_CONCURRENCY")
	setDuration(&cfg.Provision.DownloadTimeout, "LSPKIT_DOWNLOAD_TIMEOUT")

	setString(&cfg.Release.APIURL, "LSPKIT_RELEASE_API_URL")
	setString(&cfg.Release.Token, "GITHUB_TOKEN")
	setString(&cfg.Release.Token, "LSPKIT_RELEASE_TOKEN")
	setString(&cfg.Release.TokenFile, "LSPKIT_RELEASE_TOKEN_FILE")
	setDuration(&cfg.Release.Timeout, "LSPKIT_RELEASE_TIMEOUT")

	setString(&cfg.Worktree.Root, "LSPKIT_WORKTREE_ROOT")
	setString(&cfg.Worktree.SettingsFile, "LSPKIT_SETTINGS_FILE")
	setString(&cfg.Worktree.PathEnv, "LSPKIT_PATH")

	setString(&cfg.Logging.Level, "LSPKIT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "LSPKIT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "LSPKIT_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "LSPKIT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "LSPKIT_BREAKER_TIMEOUT")

	setInt64(&cfg.Cache.LabelMaxCost, "LSPKIT_LABEL_CACHE_MAX_COST")
	setDuration(&cfg.Cache.LabelTTL, "LSPKIT_LABEL_CACHE_TTL")
	setDuration(&cfg.Cache.ReleaseTTL, "LSPKIT_RELEASE_CACHE_TTL")
	setInt64(&cfg.Cache.ReleaseMaxEntries, "LSPKIT_RELEASE_CACHE_MAX_ENTRIES")
	setString(&cfg.Cache.ReleaseBucket, "LSPKIT_RELEASE_CACHE_BUCKET")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Provision.WorkDir == "" {
		return errors.New("provision.work_dir is required")
	}
	if cfg.Provision.DownloadConcurrency < 1 {
		return errors.New("provision.download_concurrency must be >= 1")
	}
	if cfg.Release.APIURL == "" {
		return errors.New("release.api_url is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.LabelMaxCost < 1 {
		return errors.New("cache.label_max_cost must be >= 1")
	}
	if cfg.Cache.ReleaseTTL < 0 {
		return errors.New("cache.release_ttl must be >= 0")
	}
	if cfg.Cache.ReleaseTTL > 0 && cfg.Cache.ReleaseMaxEntries < 1 {
		return errors.New("cache.release_max_entries must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
