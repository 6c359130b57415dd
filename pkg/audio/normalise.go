// Package audio implements the Audio Input Normaliser (spec §4.C): it turns
// a path, an opaque byte buffer, or a raw float32 sample array into whatever
// the inference engine accepts, decoding WAV in memory when feasible and
// falling back to a scoped temp file otherwise.
package audio

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sttgate/sttgate/pkg/sttypes"
)

// TargetSampleRate is the sample rate the inference engine expects.
const TargetSampleRate = 16000

// Prepared is the realised form of an [sttypes.AudioInput]: either a file
// path or an in-memory float32 mono waveform at [TargetSampleRate]. Callers
// must call Close exactly once, on every exit path, to release any temp
// file — Close is safe to call even when no temp file was created.
type Prepared struct {
	// Path is set when the model should read audio from disk — either
	// because the caller supplied a path, or because in-memory decode was
	// skipped or failed and the bytes were spooled to a temp file.
	Path string

	// Samples is set when in-memory decode succeeded or the caller supplied
	// a sample array directly. Mutually exclusive with Path.
	Samples []float32

	tempPath string
}

// IsPath reports whether the model should be invoked with Path rather than
// Samples.
func (p *Prepared) IsPath() bool { return p.Path != "" }

// Close deletes the temp file created for this call, if any. Unlink
// failures are swallowed after a best-effort attempt, per spec §4.C/§7 —
// temp files are cleaned up on every exit path but a stray failure to
// unlink must not turn into a request failure.
func (p *Prepared) Close() error {
	if p.tempPath == "" {
		return nil
	}
	path := p.tempPath
	p.tempPath = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("audio: failed to remove temp file", "path", path, "error", err)
	}
	return nil
}

// Prepare realises input into a [Prepared] value ready for the inference
// driver. The caller owns the returned value and must Close it.
func Prepare(input sttypes.AudioInput, decodeWAVBytes bool) (*Prepared, error) {
	switch input.Kind {
	case sttypes.AudioInputPath:
		return preparePath(input.Path)
	case sttypes.AudioInputBytes:
		return prepareBytes(input.Bytes, decodeWAVBytes)
	case sttypes.AudioInputSamples:
		return prepareSamples(input)
	default:
		return nil, fmt.Errorf("%w: unrecognised audio input kind", sttypes.ErrInvalidArgument)
	}
}

func preparePath(path string) (*Prepared, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty audio path", sttypes.ErrInvalidArgument)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: audio file not found: %s", sttypes.ErrInvalidArgument, path)
		}
		return nil, fmt.Errorf("%w: stat audio file: %v", sttypes.ErrInputIO, err)
	}
	return &Prepared{Path: path}, nil
}

func prepareBytes(b []byte, decodeWAVBytes bool) (*Prepared, error) {
	if decodeWAVBytes {
		if samples, err := decodeWAV(b, TargetSampleRate); err == nil {
			return &Prepared{Samples: samples}, nil
		}
		// Fall through to the temp-file path on any decode failure —
		// non-WAV payloads (MP3, OGG, ...) and malformed WAV both land here.
	}
	return spoolToTempFile(b)
}

func spoolToTempFile(b []byte) (*Prepared, error) {
	f, err := os.CreateTemp("", "sttgate-audio-*.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", sttypes.ErrInputIO, err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		path := f.Name()
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: write temp file: %v", sttypes.ErrInputIO, err)
	}

	return &Prepared{Path: f.Name(), tempPath: f.Name()}, nil
}

func prepareSamples(input sttypes.AudioInput) (*Prepared, error) {
	if len(input.Dims) > 1 {
		return nil, fmt.Errorf("%w: audio sample array must be 1-D, got shape %v", sttypes.ErrInvalidArgument, input.Dims)
	}

	samples := input.Samples
	for _, v := range samples {
		if v > 1.0 || v < -1.0 {
			slog.Warn("audio: sample array values exceed [-1.0, 1.0]; consider normalising")
			break
		}
	}
	slog.Warn("audio: ensure sample array is sampled at 16kHz mono for best results")

	return &Prepared{Samples: samples}, nil
}
