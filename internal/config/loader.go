package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMetricsPath is used when ServerConfig.MetricsPath is empty.
const DefaultMetricsPath = "/metrics"

// DefaultShutdownTimeoutSeconds is used when
// ServerConfig.ShutdownTimeoutSeconds is zero.
const DefaultShutdownTimeoutSeconds = 10

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = DefaultMetricsPath
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
	if cfg.Models.DefaultModel == "" {
		cfg.Models.DefaultModel = "base"
	}
	if cfg.Models.DefaultDevice == "" {
		cfg.Models.DefaultDevice = "auto"
	}
	if cfg.Models.DefaultComputeType == "" {
		cfg.Models.DefaultComputeType = "auto"
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found; soft/advisory
// issues are logged via slog rather than rejected.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Models.Dir == "" {
		errs = append(errs, errors.New("models.dir is required"))
	}

	if cfg.Resources.GPUMarginGB < 0 {
		errs = append(errs, fmt.Errorf("resources.gpu_margin_gb %.2f must not be negative", cfg.Resources.GPUMarginGB))
	}
	if cfg.Resources.RAMMarginGB < 0 {
		errs = append(errs, fmt.Errorf("resources.ram_margin_gb %.2f must not be negative", cfg.Resources.RAMMarginGB))
	}

	if cfg.Audit.PostgresDSN == "" {
		slog.Warn("audit.postgres_dsn is empty; transcription requests will not be recorded")
	}
	if cfg.Audit.PostgresDSN != "" && cfg.Audit.QueueSize <= 0 {
		slog.Warn("audit.queue_size is not set; defaulting to 256")
	}

	if cfg.Server.EnableMCP && cfg.MCP.Name == "" {
		errs = append(errs, errors.New("mcp.name is required when server.enable_mcp is true"))
	}

	return errors.Join(errs...)
}
