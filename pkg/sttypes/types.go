// Package sttypes defines the shared value types and error taxonomy used
// across sttgate's serving control plane: the canonical model key, resource
// estimates and snapshots, transcription options, and the tagged audio input
// union. These types form the lingua franca between the registry, the
// resource manager, the audio normaliser, and the facade — kept in one
// package to avoid import cycles between them.
package sttypes

import "fmt"

// Device is a resolved inference device. Unlike the wire-level string, a
// Device value is never "auto" — see [ModelKey].
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ComputeType is a resolved numeric precision. Never "auto" in a [ModelKey].
type ComputeType string

const (
	ComputeFloat32 ComputeType = "float32"
	ComputeFloat16 ComputeType = "float16"
	ComputeInt8    ComputeType = "int8"
)

// Task selects transcription vs. translation-to-English.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// ModelKey is the canonical, immutable, hashable identity of one loaded
// acoustic model. Auto device/compute is always resolved before a ModelKey is
// constructed — see [hwprobe.ResolveAutoDeviceCompute] and
// [registry.Canonicalize].
type ModelKey struct {
	ModelName   string
	Device      Device
	ComputeType ComputeType
}

// String renders the key as "name/device/compute" for logs and metric labels.
func (k ModelKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ModelName, k.Device, k.ComputeType)
}

// ResourceSnapshot is a point-in-time capacity observation. Snapshots are
// consumed by a single admission decision and then discarded; they are never
// mutated or cached.
type ResourceSnapshot struct {
	GPUPresent  bool
	GPUTotalGB  float64
	GPUFreeGB   float64
	RAMTotalGB  float64
	RAMAvailGB  float64
	// RAMKnown is false when the RAM probe could not determine a value.
	RAMKnown bool
}

// Estimate is the projected memory cost of admitting one request.
type Estimate struct {
	ResidentGB float64
	TransientGB float64
}

// TranscribeOptions carries the recognised per-request knobs. An empty Task
// and a non-positive BeamSize are filled in from [sttservice] defaults before
// the pipeline runs; Language, VADFilter, ReturnMeta and DurationSeconds are
// used as given.
type TranscribeOptions struct {
	Language        string
	Task            Task
	VADFilter       bool
	BeamSize        int
	ReturnMeta      bool
	DurationSeconds float64
	DecodeWAVBytes  bool
}

// AudioInputKind discriminates the tagged union held by [AudioInput].
type AudioInputKind int

const (
	AudioInputPath AudioInputKind = iota
	AudioInputBytes
	AudioInputSamples
)

// AudioInput is a tagged sum of the three accepted audio representations: a
// file path, an opaque encoded byte buffer, or a 1-D float32 sample array
// assumed mono at 16 kHz. Exactly one of the corresponding fields is set,
// matching Kind.
type AudioInput struct {
	Kind    AudioInputKind
	Path    string
	Bytes   []byte
	Samples []float32

	// Dims optionally records the shape of the array the caller supplied
	// (mirroring a numpy ndarray's .shape). A Go []float32 is always
	// structurally 1-D, so this only matters for callers that pass a
	// multi-dimensional shape hint explicitly — see
	// [NewMultiDimSamplesInput] — which the normaliser must reject with
	// ErrInvalidArgument, matching spec invariant "sample array not 1-D".
	Dims []int
}

// NewPathInput builds an [AudioInput] that refers to a file path.
func NewPathInput(path string) AudioInput {
	return AudioInput{Kind: AudioInputPath, Path: path}
}

// NewBytesInput builds an [AudioInput] wrapping an encoded byte buffer.
func NewBytesInput(b []byte) AudioInput {
	return AudioInput{Kind: AudioInputBytes, Bytes: b}
}

// NewSamplesInput builds an [AudioInput] wrapping raw float32 samples,
// assumed mono at 16 kHz.
func NewSamplesInput(s []float32) AudioInput {
	return AudioInput{Kind: AudioInputSamples, Samples: s, Dims: []int{len(s)}}
}

// NewMultiDimSamplesInput builds a sample-array [AudioInput] tagged with an
// explicit multi-dimensional shape, for callers that need to exercise the
// "not 1-D" rejection path (spec invariant, scenario S5).
func NewMultiDimSamplesInput(s []float32, dims []int) AudioInput {
	return AudioInput{Kind: AudioInputSamples, Samples: s, Dims: dims}
}

// Segment is one timed span of a transcription result.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// TranscriptionResult is the outcome of one transcription call. When the
// request did not set ReturnMeta, only Text is populated; callers should
// treat the remaining fields as zero values in that case.
type TranscriptionResult struct {
	Text                string
	Language            string
	LanguageProbability float64
	DurationSeconds     float64
	Segments            []Segment
	ModelUsed           string
}
