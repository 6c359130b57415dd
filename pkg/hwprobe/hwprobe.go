// Package hwprobe reports GPU and system RAM capacity and resolves "auto"
// device/compute-type selections. It mirrors the teacher's provider
// construction style: pure queries, no exceptions — absence of information is
// reported as zero values with ok=false, never a panic or error return.
//
// Real GPU memory readings require CUDA tooling (nvidia-smi, NVML) that is
// not guaranteed to be present in every build environment; this package
// degrades to "no GPU" rather than failing the process when such tooling is
// unavailable, exactly as spec §4.A requires ("absence of information ...
// must not raise").
package hwprobe

import (
	"bufio"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sttgate/sttgate/pkg/sttypes"
)

// GPUMemory reports (total_gb, free_gb, ok) for the first visible GPU. ok is
// false when no GPU could be detected; in that case total and free are 0.
//
// Detection shells out to `nvidia-smi --query-gpu=memory.total,memory.free
// --format=csv,noheader,nounits`, the same mechanism operators already use to
// monitor CUDA boxes. Any failure (binary missing, no GPU, parse error) is
// swallowed and reported as "not present".
func GPUMemory() (totalGB, freeGB float64, ok bool) {
	out, err := exec.Command("nvidia-smi", "--query-gpu=memory.total,memory.free", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, 0, false
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if !scanner.Scan() {
		return 0, 0, false
	}
	fields := strings.Split(scanner.Text(), ",")
	if len(fields) != 2 {
		return 0, 0, false
	}
	totalMiB, err1 := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	freeMiB, err2 := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	const mibToGB = 1.0 / 953.674
	return totalMiB * mibToGB, freeMiB * mibToGB, true
}

// RAM reports (total_gb, available_gb, ok) for system memory by reading
// /proc/meminfo. ok is false on any platform where that file is unavailable
// (e.g. non-Linux); callers must treat that as "unknown", not zero capacity.
func RAM() (totalGB, availGB float64, ok bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	var totalKB, availKB float64
	var haveTotal, haveAvail bool

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			if v, ok := parseMeminfoKB(line); ok {
				totalKB, haveTotal = v, true
			}
		case strings.HasPrefix(line, "MemAvailable:"):
			if v, ok := parseMeminfoKB(line); ok {
				availKB, haveAvail = v, true
			}
		}
	}
	if !haveTotal || !haveAvail {
		return 0, 0, false
	}
	const kbToGB = 1.0 / (1024.0 * 1024.0)
	return totalKB * kbToGB, availKB * kbToGB, true
}

// parseMeminfoKB extracts the numeric kB value from a "Key:   12345 kB" line.
func parseMeminfoKB(line string) (float64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Probe packages one GPU reading and one RAM reading into a
// [sttypes.ResourceSnapshot]. It is cheap enough to call per request.
func Probe() sttypes.ResourceSnapshot {
	var snap sttypes.ResourceSnapshot

	if total, free, ok := GPUMemory(); ok {
		snap.GPUPresent = true
		snap.GPUTotalGB = total
		snap.GPUFreeGB = free
	}

	if total, avail, ok := RAM(); ok {
		snap.RAMTotalGB = total
		snap.RAMAvailGB = avail
		snap.RAMKnown = true
	}

	return snap
}

// ResolveAutoDeviceCompute resolves "auto" device/compute selections against
// current GPU presence. A non-"auto" input passes through unchanged except
// for compute_type="auto", which still depends on the resolved device.
func ResolveAutoDeviceCompute(device, computeType string) (string, string) {
	d := device
	if d == "auto" {
		if _, _, ok := GPUMemory(); ok {
			d = "cuda"
		} else {
			d = "cpu"
		}
	}
	c := computeType
	if c == "auto" {
		if d == "cuda" {
			c = "float16"
		} else {
			c = "float32"
		}
	}
	return d, c
}
