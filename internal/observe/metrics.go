// Package observe provides application-wide observability primitives for
// sttgate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sttgate metrics.
const meterName = "github.com/sttgate/sttgate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscribeDuration tracks end-to-end transcribe_async latency.
	TranscribeDuration metric.Float64Histogram

	// InferenceDuration tracks the acoustic model call itself, excluding
	// admission control and the concurrency-gate wait.
	InferenceDuration metric.Float64Histogram

	// GateWaitDuration tracks time spent blocked acquiring a model's
	// concurrency gate before inference starts.
	GateWaitDuration metric.Float64Histogram

	// ModelConstructionDuration tracks how long loading a model from disk
	// takes the first time a model key is requested.
	ModelConstructionDuration metric.Float64Histogram

	// --- Counters ---

	// AdmissionRejections counts requests turned away by resource
	// admission control. Use with attribute:
	//   attribute.String("model_key", ...)
	AdmissionRejections metric.Int64Counter

	// InferenceErrors counts acoustic-model failures. Use with attribute:
	//   attribute.String("model_key", ...)
	InferenceErrors metric.Int64Counter

	// ModelLoadErrors counts model construction failures. Use with
	// attribute:
	//   attribute.String("model_key", ...)
	ModelLoadErrors metric.Int64Counter

	// --- Gauges ---

	// InFlightTranscriptions tracks requests currently holding a
	// concurrency-gate slot.
	InFlightTranscriptions metric.Int64UpDownCounter

	// LoadedModels tracks the number of distinct model keys currently
	// resident in the registry.
	LoadedModels metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for transcription-pipeline latencies, which span a much wider range than
// typical HTTP request latencies (model construction and long audio clips
// can run tens of seconds).
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscribeDuration, err = m.Float64Histogram("sttgate.transcribe.duration",
		metric.WithDescription("End-to-end transcribe_async latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("sttgate.inference.duration",
		metric.WithDescription("Acoustic model inference latency, excluding admission and gate wait."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GateWaitDuration, err = m.Float64Histogram("sttgate.gate_wait.duration",
		metric.WithDescription("Time spent blocked acquiring a model's concurrency gate."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelConstructionDuration, err = m.Float64Histogram("sttgate.model_construction.duration",
		metric.WithDescription("Time spent loading a model from disk on first use."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AdmissionRejections, err = m.Int64Counter("sttgate.admission.rejections",
		metric.WithDescription("Total requests rejected by resource admission control."),
	); err != nil {
		return nil, err
	}
	if met.InferenceErrors, err = m.Int64Counter("sttgate.inference.errors",
		metric.WithDescription("Total acoustic model inference failures."),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadErrors, err = m.Int64Counter("sttgate.model_load.errors",
		metric.WithDescription("Total model construction failures."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.InFlightTranscriptions, err = m.Int64UpDownCounter("sttgate.in_flight",
		metric.WithDescription("Requests currently holding a concurrency-gate slot."),
	); err != nil {
		return nil, err
	}
	if met.LoadedModels, err = m.Int64UpDownCounter("sttgate.loaded_models",
		metric.WithDescription("Number of distinct model keys currently resident."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sttgate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAdmissionRejection is a convenience method that records a rejection
// counter increment for the given model key.
func (m *Metrics) RecordAdmissionRejection(ctx context.Context, modelKey string) {
	m.AdmissionRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("model_key", modelKey)))
}

// RecordInferenceError is a convenience method that records an inference
// error counter increment for the given model key.
func (m *Metrics) RecordInferenceError(ctx context.Context, modelKey string) {
	m.InferenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("model_key", modelKey)))
}

// RecordModelLoadError is a convenience method that records a model load
// error counter increment for the given model key.
func (m *Metrics) RecordModelLoadError(ctx context.Context, modelKey string) {
	m.ModelLoadErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("model_key", modelKey)))
}
