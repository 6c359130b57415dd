// Package resources implements the Resource Manager (spec §4.D): memory cost
// estimation, admission control, and concurrency sizing derived from a
// hardware snapshot. Admission here is advisory — no memory is actually
// reserved between a successful admission and the caller acquiring the
// model's semaphore; see spec §5 "Resource accounting vs. reality".
package resources

import (
	"fmt"
	"math"

	"github.com/sttgate/sttgate/pkg/hwprobe"
	"github.com/sttgate/sttgate/pkg/sttypes"
	"github.com/sttgate/sttgate/pkg/tunables"
)

// Manager estimates and admits requests against live hardware capacity. The
// zero value is ready to use; Manager holds no mutable state and is safe for
// concurrent use.
type Manager struct {
	GPUMarginGB float64
	RAMMarginGB float64
}

// New returns a [Manager] configured with the default safety margins from
// [tunables].
func New() *Manager {
	return &Manager{
		GPUMarginGB: tunables.GPUMarginGB,
		RAMMarginGB: tunables.RAMMarginGB,
	}
}

// Probe takes one hardware snapshot.
func (m *Manager) Probe() sttypes.ResourceSnapshot {
	return hwprobe.Probe()
}

// Estimate computes the projected resident/transient cost of one request per
// spec §3's Estimate formula.
func (m *Manager) Estimate(modelName string, computeType string, audioMinutes float64, beamSize int) sttypes.Estimate {
	residentBase := tunables.ResidentGB(modelName)
	mult, ok := tunables.ComputeMultiplier[computeType]
	if !ok {
		mult = 1.0
	}
	resident := residentBase * mult

	transientBase := tunables.TransientPerMinute(modelName)
	beamScale := math.Max(1.0, float64(beamSize)/float64(tunables.DefaultBeamBaseline))
	minutes := math.Max(0.2, audioMinutes)
	transient := transientBase * minutes * beamScale

	return sttypes.Estimate{ResidentGB: resident, TransientGB: transient}
}

// CanAccept reports whether device has enough free capacity for est, given
// whether the model is already loaded (in which case resident cost is free).
// If snap is nil a fresh probe is taken.
func (m *Manager) CanAccept(device string, est sttypes.Estimate, isLoaded bool, snap *sttypes.ResourceSnapshot) (bool, string) {
	if snap == nil {
		s := m.Probe()
		snap = &s
	}

	resident := est.ResidentGB
	if isLoaded {
		resident = 0
	}
	need := resident + est.TransientGB

	if device == "cuda" {
		if !snap.GPUPresent {
			return false, "GPU not present"
		}
		free := math.Max(0, snap.GPUFreeGB-m.GPUMarginGB)
		if need <= free {
			return true, ""
		}
		return false, fmt.Sprintf("Insufficient VRAM: need ~%.2fGB, free ~%.2fGB", need, free)
	}

	free := math.Max(0, snap.RAMAvailGB-m.RAMMarginGB)
	if need <= free {
		return true, ""
	}
	return false, fmt.Sprintf("Insufficient RAM: need ~%.2fGB, free ~%.2fGB", need, free)
}

// ConcurrencyHint returns how many simultaneous inferences device can sustain
// given est's transient footprint (floored at 0.1 GB): the headroom above the
// margin divided by that footprint, and never less than 1. It falls back to
// the tunables' defaults when est carries no transient cost, and returns 0
// when device is "cuda" and no GPU is present.
func (m *Manager) ConcurrencyHint(device string, est sttypes.Estimate, snap *sttypes.ResourceSnapshot) int {
	if snap == nil {
		s := m.Probe()
		snap = &s
	}

	degenerate := est.TransientGB <= 0
	transient := math.Max(est.TransientGB, 0.1)

	if device == "cuda" {
		if !snap.GPUPresent {
			return 0
		}
		if degenerate {
			return tunables.DefaultGPUConcurrency
		}
		free := math.Max(0, snap.GPUFreeGB-m.GPUMarginGB)
		return max(1, int(free/transient))
	}

	if degenerate {
		return tunables.DefaultCPUConcurrency
	}
	free := math.Max(0, snap.RAMAvailGB-m.RAMMarginGB)
	return max(1, int(free/transient))
}

// AdmitOrFail combines Estimate, Probe, and CanAccept into a single
// admission decision. On rejection it returns a
// [sttypes.ResourceRejectedError] carrying the snapshot observed at decision
// time.
func (m *Manager) AdmitOrFail(device, modelName, computeType string, audioMinutes float64, beamSize int, isLoaded bool) (sttypes.Estimate, error) {
	est := m.Estimate(modelName, computeType, audioMinutes, beamSize)
	snap := m.Probe()
	ok, reason := m.CanAccept(device, est, isLoaded, &snap)
	if !ok {
		if reason == "" {
			reason = "insufficient resources"
		}
		return sttypes.Estimate{}, &sttypes.ResourceRejectedError{
			Reason:   reason,
			Snapshot: snap,
			Estimate: est,
		}
	}
	return est, nil
}

// Resolve resolves "auto" device/compute selections. It is a thin pass
// through to [hwprobe.ResolveAutoDeviceCompute], kept on Manager so callers
// only need one collaborator for admission-adjacent decisions.
func (m *Manager) Resolve(device, computeType string) (string, string) {
	return hwprobe.ResolveAutoDeviceCompute(device, computeType)
}
