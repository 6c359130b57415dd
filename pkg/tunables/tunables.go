// Package tunables holds the static cost tables used by the resource
// manager's admission heuristics (spec §4.B). Values are deliberately rough
// — they are read-only after process startup and intended to be corrected
// from production telemetry, not derived analytically.
package tunables

import (
	"log/slog"

	"github.com/antzucaro/matchr"
)

// ModelResidentGB is the approximate resident footprint, in GB, of each
// known model at float16 precision (multiplier 1.0 in [ComputeMultiplier]).
// Unknown models fall back to
// [UnknownModelResidentGB].
var ModelResidentGB = map[string]float64{
	"tiny":     0.7,
	"base":     1.4,
	"small":    2.5,
	"medium":   5.0,
	"large":    10.0,
	"large-v2": 11.0,
	"large-v3": 12.0,
}

// ComputeMultiplier scales resident GB by numeric precision.
var ComputeMultiplier = map[string]float64{
	"float32": 2.0,
	"float16": 1.0,
	"int8":    0.6,
}

// TransientPerMinuteGB is the approximate transient footprint, in GB, per
// minute of audio at the baseline beam size, by model.
var TransientPerMinuteGB = map[string]float64{
	"tiny":     0.2,
	"base":     0.2,
	"small":    0.3,
	"medium":   0.5,
	"large":    0.8,
	"large-v2": 0.9,
	"large-v3": 1.0,
}

const (
	// UnknownModelResidentGB is the resident-GB fallback for a model name not
	// present in [ModelResidentGB].
	UnknownModelResidentGB = 2.0

	// UnknownModelTransientPerMinuteGB is the transient-GB/min fallback for a
	// model name not present in [TransientPerMinuteGB].
	UnknownModelTransientPerMinuteGB = 0.3

	// DefaultBeamBaseline is the beam size at which transient cost neither
	// scales up nor clamps down.
	DefaultBeamBaseline = 5

	// GPUMarginGB is the VRAM headroom kept free on top of any estimate.
	GPUMarginGB = 1.5

	// RAMMarginGB is the system-RAM headroom kept free on top of any estimate.
	RAMMarginGB = 2.0

	// DefaultGPUConcurrency is the concurrency hint fallback when the
	// transient-cost divisor is degenerate on a GPU device.
	DefaultGPUConcurrency = 1

	// DefaultCPUConcurrency is the concurrency hint fallback when the
	// transient-cost divisor is degenerate on a CPU device.
	DefaultCPUConcurrency = 2
)

// ResidentGB returns the base resident-GB figure for modelName, logging a
// fuzzy suggestion (via Jaro-Winkler similarity) when the name is unknown but
// close to a recognised one — likely a typo rather than a genuinely new
// model.
func ResidentGB(modelName string) float64 {
	if v, ok := ModelResidentGB[modelName]; ok {
		return v
	}
	warnUnknownModel(modelName)
	return UnknownModelResidentGB
}

// TransientPerMinute returns the base transient-GB/min figure for modelName.
// Unlike ResidentGB it does not log again; callers are expected to call
// ResidentGB first for the same request.
func TransientPerMinute(modelName string) float64 {
	if v, ok := TransientPerMinuteGB[modelName]; ok {
		return v
	}
	return UnknownModelTransientPerMinuteGB
}

// warnUnknownModel logs a diagnostic suggesting the closest known model name
// by Jaro-Winkler similarity, when one is reasonably close.
func warnUnknownModel(modelName string) {
	best := ""
	bestScore := 0.0
	for known := range ModelResidentGB {
		score := matchr.JaroWinkler(modelName, known, true)
		if score > bestScore {
			bestScore, best = score, known
		}
	}
	if best != "" && bestScore >= 0.8 {
		slog.Warn("unrecognised model name — did you mean a known model?",
			"model_name", modelName,
			"suggestion", best,
			"similarity", bestScore,
		)
		return
	}
	slog.Warn("unrecognised model name — using generic cost estimate",
		"model_name", modelName,
		"resident_gb", UnknownModelResidentGB,
		"transient_gb_per_min", UnknownModelTransientPerMinuteGB,
	)
}
