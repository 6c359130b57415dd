// Package registry implements the Model Registry (spec §4.E): a lazy,
// cached, at-most-once-per-key constructor for acoustic models, plus the
// per-model concurrency gate (spec §4.E invariant 3 / §5).
package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/sttgate/sttgate/pkg/hwprobe"
	"github.com/sttgate/sttgate/pkg/inference"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

// Loader constructs an [inference.AcousticModel] for a canonical key. The
// registry calls this at most once per key, regardless of how many
// concurrent callers race to request it.
type Loader func(key sttypes.ModelKey) (inference.AcousticModel, error)

// Registry is safe for concurrent use. The zero value is not usable; call
// [New].
type Registry struct {
	load Loader

	mu     sync.RWMutex
	models map[sttypes.ModelKey]inference.AcousticModel
	gates  map[sttypes.ModelKey]*semaphore.Weighted

	group singleflight.Group
}

// New returns a [Registry] that uses load to construct models on demand.
func New(load Loader) *Registry {
	return &Registry{
		load:   load,
		models: make(map[sttypes.ModelKey]inference.AcousticModel),
		gates:  make(map[sttypes.ModelKey]*semaphore.Weighted),
	}
}

// Canonicalize resolves "auto" device/compute and clamps out-of-range
// values to their defaults, matching registry.py's _key: device falls back
// to cpu, compute falls back to float32 on cpu or float16 on cuda.
func Canonicalize(modelName, device, computeType string) sttypes.ModelKey {
	d, c := hwprobe.ResolveAutoDeviceCompute(device, computeType)

	dev := sttypes.Device(d)
	if dev != sttypes.DeviceCPU && dev != sttypes.DeviceCUDA {
		dev = sttypes.DeviceCPU
	}

	compute := sttypes.ComputeType(c)
	switch compute {
	case sttypes.ComputeFloat32, sttypes.ComputeFloat16, sttypes.ComputeInt8:
		// already valid
	default:
		if dev == sttypes.DeviceCUDA {
			compute = sttypes.ComputeFloat16
		} else {
			compute = sttypes.ComputeFloat32
		}
	}

	return sttypes.ModelKey{ModelName: modelName, Device: dev, ComputeType: compute}
}

// IsLoaded reports whether key already has a constructed model, without
// triggering construction.
func (r *Registry) IsLoaded(key sttypes.ModelKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[key]
	return ok
}

// GetOrCreate returns the model for key, constructing it via the configured
// Loader if this is the first request for that key. Concurrent callers
// requesting the same key block on one another and all observe the single
// constructed model (or its single construction error) — invariant 2 of
// spec §8, implemented with a double-checked read plus a
// [singleflight.Group] keyed on key.String() so at most one Loader call is
// ever in flight per key.
//
// concurrency sets the capacity of key's semaphore the first time it is
// installed; it is ignored on subsequent calls, matching the registry's
// "semaphore capacity is fixed at first publish" decision (spec §8 Open
// Question).
func (r *Registry) GetOrCreate(key sttypes.ModelKey, concurrency int) (inference.AcousticModel, error) {
	r.mu.RLock()
	if m, ok := r.models[key]; ok {
		r.mu.RUnlock()
		return m, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		r.mu.RLock()
		if m, ok := r.models[key]; ok {
			r.mu.RUnlock()
			return m, nil
		}
		r.mu.RUnlock()

		m, err := r.load(key)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.models[key] = m
		r.installGateLocked(key, concurrency)
		r.mu.Unlock()

		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(inference.AcousticModel), nil
}

// GetSemaphore returns key's concurrency gate, installing one with the
// given default capacity if none exists yet (e.g. because the caller wants
// to acquire a slot before the model has finished constructing). Capacity
// is fixed at first install and never resized.
func (r *Registry) GetSemaphore(key sttypes.ModelKey, defaultCapacity int) *semaphore.Weighted {
	r.mu.RLock()
	g, ok := r.gates[key]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.installGateLocked(key, defaultCapacity)
	return r.gates[key]
}

func (r *Registry) installGateLocked(key sttypes.ModelKey, capacity int) {
	if _, ok := r.gates[key]; ok {
		return
	}
	if capacity < 1 {
		capacity = 1
	}
	r.gates[key] = semaphore.NewWeighted(int64(capacity))
}

// Acquire blocks until key's concurrency gate admits the caller or ctx is
// cancelled, per spec §5 ("request cancellation must propagate to a
// blocked acquire").
func (r *Registry) Acquire(ctx context.Context, key sttypes.ModelKey, defaultCapacity int) (release func(), err error) {
	g := r.GetSemaphore(key, defaultCapacity)
	if err := g.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("registry: acquire concurrency gate for %s: %w", key, err)
	}
	return func() { g.Release(1) }, nil
}

// Keys returns a snapshot of every currently-loaded model key, for
// diagnostics (the /ws/status feed).
func (r *Registry) Keys() []sttypes.ModelKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]sttypes.ModelKey, 0, len(r.models))
	for k := range r.models {
		keys = append(keys, k)
	}
	return keys
}

// Close calls closeFn on every constructed model and returns the first error
// it reports. The registry does not inspect the models itself: closeFn
// decides what cleanup a concrete AcousticModel needs (cmd/sttgate/main.go
// type-asserts to whispercpp.Model and calls its Close).
func (r *Registry) Close(closeFn func(inference.AcousticModel) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, m := range r.models {
		if err := closeFn(m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
