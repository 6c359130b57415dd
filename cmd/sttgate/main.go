// Command sttgate is the main entry point for the STT serving control
// plane: a Model Registry, Resource Manager, Concurrency Gate, and async
// Service facade fronted by an HTTP (and optionally MCP) adapter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sttgate/sttgate/internal/audit"
	"github.com/sttgate/sttgate/internal/config"
	"github.com/sttgate/sttgate/internal/health"
	"github.com/sttgate/sttgate/internal/httpapi"
	"github.com/sttgate/sttgate/internal/mcpapi"
	"github.com/sttgate/sttgate/internal/observe"
	"github.com/sttgate/sttgate/internal/sttservice"
	"github.com/sttgate/sttgate/pkg/inference"
	"github.com/sttgate/sttgate/pkg/inference/whispercpp"
	"github.com/sttgate/sttgate/pkg/registry"
	"github.com/sttgate/sttgate/pkg/resources"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sttgate: config file %q not found — pass its path with -config\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sttgate: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sttgate starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"models_dir", cfg.Models.Dir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ──────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "sttgate",
		ServiceVersion: "dev",
	})
	if err != nil {
		slog.Error("failed to initialise observability provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Error("observability shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Resource manager and model registry ───────────────────────────────────
	res := resources.New()
	if cfg.Resources.GPUMarginGB > 0 {
		res.GPUMarginGB = cfg.Resources.GPUMarginGB
	}
	if cfg.Resources.RAMMarginGB > 0 {
		res.RAMMarginGB = cfg.Resources.RAMMarginGB
	}

	reg := registry.New(func(key sttypes.ModelKey) (inference.AcousticModel, error) {
		return whispercpp.Load(key, cfg.Models.Dir)
	})

	svc := sttservice.New(reg, res)

	// ── Optional audit log ─────────────────────────────────────────────────────
	var auditLogger *audit.Logger
	if cfg.Audit.PostgresDSN != "" {
		auditLogger, err = audit.New(ctx, cfg.Audit.PostgresDSN, cfg.Audit.QueueSize)
		if err != nil {
			slog.Error("failed to initialise audit log", "err", err)
			return 1
		}
		defer auditLogger.Close()
	}

	// ── HTTP adapter ───────────────────────────────────────────────────────────
	healthHandler := health.New(health.Checker{
		Name: "models_dir",
		Check: func(context.Context) error {
			info, err := os.Stat(cfg.Models.Dir)
			if err != nil {
				return fmt.Errorf("stat models dir: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%q is not a directory", cfg.Models.Dir)
			}
			return nil
		},
	})

	httpCfg := httpapi.Config{
		MetricsPath:           cfg.Server.MetricsPath,
		EnableWebsocketStatus: cfg.Server.EnableWebsocketStatus,
		DefaultModelName:      cfg.Models.DefaultModel,
		DefaultDevice:         cfg.Models.DefaultDevice,
		DefaultComputeType:    cfg.Models.DefaultComputeType,
	}

	var serverOpts []httpapi.Option
	if auditLogger != nil {
		serverOpts = append(serverOpts, httpapi.WithAuditLogger(auditLogger))
	}
	apiServer := httpapi.New(httpCfg, svc, reg, res, healthHandler, metrics, serverOpts...)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Handler(promhttp.Handler()))

	if cfg.Server.EnableMCP {
		mcpServer := mcpapi.NewServer(mcpapi.Config{
			Name:               cfg.MCP.Name,
			Version:            cfg.MCP.Version,
			DefaultModelName:   cfg.Models.DefaultModel,
			DefaultDevice:      cfg.Models.DefaultDevice,
			DefaultComputeType: cfg.Models.DefaultComputeType,
		}, svc)
		mux.Handle("/mcp", mcpapi.Handler(mcpServer))
		slog.Info("mcp tool server enabled", "name", cfg.MCP.Name, "version", cfg.MCP.Version)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: mux,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		slog.Info("server ready", "listen_addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-serveErrCh:
		if err != nil {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = config.DefaultShutdownTimeoutSeconds * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
		return 1
	}

	if err := reg.Close(closeAcousticModel); err != nil {
		slog.Error("error closing acoustic models", "err", err)
	}

	slog.Info("goodbye")
	return 0
}

// closeAcousticModel releases a *whispercpp.Model's underlying resources,
// ignoring any other AcousticModel implementation that doesn't need it.
func closeAcousticModel(m inference.AcousticModel) error {
	if wm, ok := m.(*whispercpp.Model); ok {
		return wm.Close()
	}
	return nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
