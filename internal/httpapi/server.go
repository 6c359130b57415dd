// Package httpapi wires the HTTP adapter described in spec §4.H and §6: a
// single multipart POST /transcribe endpoint, health/readiness and metrics
// routes, and an optional WebSocket status feed.
package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sttgate/sttgate/internal/audit"
	"github.com/sttgate/sttgate/internal/health"
	"github.com/sttgate/sttgate/internal/observe"
	"github.com/sttgate/sttgate/internal/sttservice"
	"github.com/sttgate/sttgate/pkg/registry"
	"github.com/sttgate/sttgate/pkg/resources"
)

// Config selects which optional routes are mounted and supplies the
// defaults applied to a /transcribe request that omits query parameters.
type Config struct {
	// MetricsPath is where the Prometheus handler is mounted (e.g. "/metrics").
	MetricsPath string

	// EnableWebsocketStatus mounts GET /ws/status, a periodic snapshot feed
	// of resource usage and loaded models.
	EnableWebsocketStatus bool

	// DefaultModelName, DefaultDevice, and DefaultComputeType fill in a
	// request's model_name/device/compute_type when the query omits them,
	// per [config.ModelsConfig].
	DefaultModelName   string
	DefaultDevice      string
	DefaultComputeType string
}

// Server bundles the HTTP adapter's collaborators: the transcription
// facade, the health handler, and the metrics used by the request
// middleware.
type Server struct {
	cfg       Config
	service   *sttservice.Service
	registry  *registry.Registry
	resources *resources.Manager
	health    *health.Handler
	metrics   *observe.Metrics
	audit     *audit.Logger
}

// Option configures a [Server] at construction time.
type Option func(*Server)

// WithAuditLogger attaches an audit trail. Every /transcribe call records
// one [audit.Entry] after the response is determined; the record never
// blocks the response.
func WithAuditLogger(l *audit.Logger) Option {
	return func(s *Server) { s.audit = l }
}

// New builds a [Server]. metrics may be nil to disable the observability
// middleware (tests typically do this).
func New(cfg Config, svc *sttservice.Service, reg *registry.Registry, res *resources.Manager, healthHandler *health.Handler, metrics *observe.Metrics, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		service:   svc,
		registry:  reg,
		resources: res,
		health:    healthHandler,
		metrics:   metrics,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the fully wired http.Handler: routes composed with the
// request-ID and observability middleware.
func (s *Server) Handler(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	s.health.Register(mux)
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)

	if s.cfg.EnableWebsocketStatus {
		mux.HandleFunc("GET /ws/status", s.handleWSStatus)
	}

	if metricsHandler != nil {
		path := s.cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, metricsHandler)
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = observe.Middleware(s.metrics)(handler)
	}
	handler = requestIDMiddleware(handler)
	return handler
}

// requestIDMiddleware assigns a fresh request ID to every inbound request
// that doesn't already carry one, exposing it on the X-Request-ID response
// header. Downstream handlers and logs can correlate on it independently of
// the OTel trace ID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
