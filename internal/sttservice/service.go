// Package sttservice implements the async STT Service facade (spec §4.G):
// it combines the resource manager and the model registry into the single
// entry point HTTP and MCP adapters call.
package sttservice

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sttgate/sttgate/pkg/inference"
	"github.com/sttgate/sttgate/pkg/registry"
	"github.com/sttgate/sttgate/pkg/resources"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

// defaultOptions mirrors service.py's transcribe_async default dict.
var defaultOptions = sttypes.TranscribeOptions{
	Task:           sttypes.TaskTranscribe,
	VADFilter:      true,
	BeamSize:       5,
	ReturnMeta:     false,
	DecodeWAVBytes: true,
}

// Request is the facade's input. ModelName/Device/ComputeType mirror the
// wire-level "auto" strings from spec §6; Options carries the recognised
// per-request knobs.
type Request struct {
	ModelName   string
	Device      string
	ComputeType string
	Audio       sttypes.AudioInput
	Options     sttypes.TranscribeOptions
}

// Service is the async STT Service facade. The zero value is not usable;
// construct with [New].
type Service struct {
	registry  *registry.Registry
	resources *resources.Manager

	tracer trace.Tracer
	meter  metric.Meter

	transcribeDuration metric.Float64Histogram
	rejections         metric.Int64Counter
	inFlight           metric.Int64UpDownCounter
}

// Option configures a [Service] at construction time.
type Option func(*Service)

// WithTracer sets the tracer used for the per-request span. Defaults to the
// global OTel tracer (a no-op until a provider is registered) if not set.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMeter sets the meter used for the facade's instruments. Defaults to
// the global OTel meter (a no-op until a provider is registered) if not set.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) { s.meter = m }
}

// New builds a [Service] over reg and res. The registry is used as given,
// already wired with its [registry.Loader] via [registry.New].
func New(reg *registry.Registry, res *resources.Manager, opts ...Option) *Service {
	s := &Service{registry: reg, resources: res}
	for _, o := range opts {
		o(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("sttgate/sttservice")
	}
	if s.meter == nil {
		s.meter = otel.Meter("sttgate/sttservice")
	}
	{
		s.transcribeDuration, _ = s.meter.Float64Histogram(
			"sttgate.transcribe.duration",
			metric.WithDescription("End-to-end transcribe_async duration in seconds"),
			metric.WithUnit("s"),
		)
		s.rejections, _ = s.meter.Int64Counter(
			"sttgate.transcribe.rejections",
			metric.WithDescription("Count of requests rejected by admission control"),
		)
		s.inFlight, _ = s.meter.Int64UpDownCounter(
			"sttgate.transcribe.in_flight",
			metric.WithDescription("Requests currently holding a concurrency gate slot"),
		)
	}
	return s
}

// estimateAudioMinutes is the conservative fallback used when the caller
// did not supply DurationSeconds, matching service.py's
// _estimate_audio_minutes: without decoding the payload up front, assume a
// short one-minute clip rather than guess wrong in either direction.
func estimateAudioMinutes(opts sttypes.TranscribeOptions) float64 {
	if opts.DurationSeconds > 0 {
		return opts.DurationSeconds / 60.0
	}
	return 1.0
}

func mergeOptions(o sttypes.TranscribeOptions) sttypes.TranscribeOptions {
	merged := defaultOptions
	if o.Language != "" {
		merged.Language = o.Language
	}
	if o.Task != "" {
		merged.Task = o.Task
	}
	merged.VADFilter = o.VADFilter
	if o.BeamSize > 0 {
		merged.BeamSize = o.BeamSize
	}
	merged.ReturnMeta = o.ReturnMeta
	merged.DurationSeconds = o.DurationSeconds
	merged.DecodeWAVBytes = o.DecodeWAVBytes || merged.DecodeWAVBytes
	return merged
}

// Transcribe runs the full pipeline described in spec §4.G: resolve
// device/compute, check whether the model is already resident, estimate
// audio length, run admission control, obtain-or-build the model with a
// concurrency hint sized from current headroom, acquire that model's
// concurrency gate (blocking, cancellable via ctx), and finally dispatch
// inference — releasing the gate unconditionally on every exit path.
func (s *Service) Transcribe(ctx context.Context, req Request) (sttypes.TranscriptionResult, error) {
	ctx, span := s.tracer.Start(ctx, "sttservice.Transcribe")
	defer span.End()

	start := time.Now()
	opts := mergeOptions(req.Options)

	resolvedDevice, resolvedCompute := s.resources.Resolve(req.Device, req.ComputeType)
	key := registry.Canonicalize(req.ModelName, resolvedDevice, resolvedCompute)

	isLoaded := s.registry.IsLoaded(key)
	audioMinutes := estimateAudioMinutes(opts)

	est, err := s.resources.AdmitOrFail(resolvedDevice, req.ModelName, resolvedCompute, audioMinutes, opts.BeamSize, isLoaded)
	if err != nil {
		s.recordRejection(ctx, key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission rejected")
		return sttypes.TranscriptionResult{}, err
	}

	concurrency := s.resources.ConcurrencyHint(resolvedDevice, est, nil)
	if concurrency < 1 {
		concurrency = 1
	}

	model, err := s.registry.GetOrCreate(key, concurrency)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model construction failed")
		return sttypes.TranscriptionResult{}, err
	}

	release, err := s.registry.Acquire(ctx, key, concurrency)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "concurrency gate acquire failed")
		return sttypes.TranscriptionResult{}, fmt.Errorf("sttservice: %w", err)
	}
	s.incInFlight(ctx, key, 1)
	defer func() {
		s.incInFlight(ctx, key, -1)
		release()
	}()

	result, err := inference.TranscribeWithModel(model, key, req.Audio, opts)
	s.recordDuration(ctx, key, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inference failed")
		return sttypes.TranscriptionResult{}, err
	}
	return result, nil
}

func (s *Service) recordRejection(ctx context.Context, key sttypes.ModelKey) {
	if s.rejections == nil {
		return
	}
	s.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("model_key", key.String())))
}

func (s *Service) incInFlight(ctx context.Context, key sttypes.ModelKey, delta int64) {
	if s.inFlight == nil {
		return
	}
	s.inFlight.Add(ctx, delta, metric.WithAttributes(attribute.String("model_key", key.String())))
}

func (s *Service) recordDuration(ctx context.Context, key sttypes.ModelKey, d time.Duration) {
	if s.transcribeDuration == nil {
		return
	}
	s.transcribeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("model_key", key.String())))
}
