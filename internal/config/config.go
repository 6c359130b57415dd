// Package config provides the configuration schema and loader for sttgate.
package config

// Config is the root configuration structure for sttgate. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Models    ModelsConfig    `yaml:"models"`
	Resources ResourcesConfig `yaml:"resources"`
	Audit     AuditConfig     `yaml:"audit"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// LogLevel controls slog verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// ServerConfig holds network, logging, and feature-toggle settings for the
// sttgate HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`

	// EnableWebsocketStatus turns on the /ws/status operational snapshot feed.
	EnableWebsocketStatus bool `yaml:"enable_websocket_status"`

	// EnableMCP turns on the MCP tool-server adapter alongside the HTTP API.
	EnableMCP bool `yaml:"enable_mcp"`

	// MetricsPath is the path the Prometheus exporter is mounted on.
	// Defaults to "/metrics" if empty.
	MetricsPath string `yaml:"metrics_path"`

	// ShutdownTimeoutSeconds bounds how long graceful shutdown waits for
	// in-flight requests to finish. Defaults to 10s if zero.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// ModelsConfig controls where acoustic models are loaded from and which
// model is used when a request does not name one explicitly.
type ModelsConfig struct {
	// Dir is the directory whisper.cpp GGML model files live in.
	Dir string `yaml:"dir"`

	// DefaultModel is used when a request omits model_name.
	DefaultModel string `yaml:"default_model"`

	// DefaultDevice and DefaultComputeType are used when a request omits
	// those fields. "auto" is a valid value for both.
	DefaultDevice      string `yaml:"default_device"`
	DefaultComputeType string `yaml:"default_compute_type"`
}

// ResourcesConfig overrides the resource manager's default margins.
// Leaving a field at zero keeps the built-in default from [tunables].
type ResourcesConfig struct {
	GPUMarginGB float64 `yaml:"gpu_margin_gb"`
	RAMMarginGB float64 `yaml:"ram_margin_gb"`
}

// AuditConfig configures the optional async Postgres audit log.
type AuditConfig struct {
	// PostgresDSN is the connection string. Leave empty to disable the
	// audit log entirely — it never sits on the admission-decision path,
	// so disabling it only loses the historical record, not serving
	// ability.
	PostgresDSN string `yaml:"postgres_dsn"`

	// QueueSize bounds the number of pending audit writes buffered in
	// memory before new writes are dropped (no persistent queueing across
	// restarts — this buffer is memory-only and disposable).
	QueueSize int `yaml:"queue_size"`
}

// MCPConfig holds the identity sttgate's MCP tool server reports in its
// handshake, when ServerConfig.EnableMCP is set.
type MCPConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}
