// Package whispercpp implements [inference.AcousticModel] on top of the
// whisper.cpp CGO bindings. The whisper.cpp static library and headers must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH, same as
// the teacher's native provider.
package whispercpp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/sttgate/sttgate/pkg/inference"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

// ModelPath resolves a canonical model name to the GGML file whisper.cpp
// expects, using the upstream whisper.cpp naming convention
// ("ggml-<name>.bin") inside modelsDir. Device and compute type do not
// affect the path: whisper.cpp GGML files are not quantised per backend the
// way faster-whisper's CTranslate2 models are.
func ModelPath(modelsDir string, key sttypes.ModelKey) string {
	return filepath.Join(modelsDir, "ggml-"+key.ModelName+".bin")
}

// Model wraps a loaded whisper.cpp model. One Model is shared across
// concurrent Transcribe calls — each call opens its own whisper.cpp
// context, which is the unit of thread-unsafety in the underlying library,
// while the model weights themselves are read-only and shared.
type Model struct {
	key   sttypes.ModelKey
	inner whisperlib.Model
}

var _ inference.AcousticModel = (*Model)(nil)

// Load opens the GGML model file for key from modelsDir. Any failure is
// wrapped as [sttypes.ModelLoadFailedError], matching the registry's
// construction contract (spec invariant 2).
func Load(key sttypes.ModelKey, modelsDir string) (*Model, error) {
	path := ModelPath(modelsDir, key)
	m, err := whisperlib.New(path)
	if err != nil {
		return nil, &sttypes.ModelLoadFailedError{Key: key, Cause: fmt.Errorf("load %s: %w", path, err)}
	}
	return &Model{key: key, inner: m}, nil
}

// Close releases the underlying whisper.cpp model. Called by the registry
// only if it ever evicts a model — spec §8 does not currently require
// eviction, so in practice this runs at process shutdown via a registry
// sweep.
func (m *Model) Close() error {
	if m.inner == nil {
		return nil
	}
	return m.inner.Close()
}

// Transcribe implements [inference.AcousticModel]. It opens a fresh
// whisper.cpp context (required because contexts, unlike the model, are not
// safe for concurrent use), configures it from params, runs inference, and
// returns a lazy [inference.SegmentReader] over the produced segments.
func (m *Model) Transcribe(samples []float32, params inference.Params) (inference.SegmentReader, inference.Info, error) {
	wctx, err := m.inner.NewContext()
	if err != nil {
		return nil, inference.Info{}, fmt.Errorf("whispercpp: create context: %w", err)
	}

	lang := params.Language
	if lang == "" || lang == "auto" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whispercpp: failed to set language, using auto-detect", "language", lang, "error", err)
	}
	wctx.SetTranslate(params.Task == sttypes.TaskTranslate)
	wctx.SetVAD(params.VADFilter)
	if params.BeamSize > 0 {
		wctx.SetBeamSize(params.BeamSize)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, inference.Info{}, fmt.Errorf("whispercpp: process audio: %w", err)
	}

	info := inference.Info{
		Language:        strings.TrimSpace(wctx.DetectedLanguage()),
		DurationSeconds: float64(len(samples)) / 16000,
	}
	if info.Language == "" {
		info.Language = wctx.Language()
	}

	return &segmentReader{wctx: wctx}, info, nil
}

// segmentReader adapts whisper.cpp's NextSegment()-until-io.EOF iteration
// to [inference.SegmentReader], matching the teacher's native.go infer()
// drain loop.
type segmentReader struct {
	wctx whisperlib.Context
	err  error
}

func (r *segmentReader) Next() (sttypes.Segment, bool) {
	if r.err != nil {
		return sttypes.Segment{}, false
	}
	seg, err := r.wctx.NextSegment()
	if errors.Is(err, io.EOF) {
		return sttypes.Segment{}, false
	}
	if err != nil {
		r.err = err
		slog.Error("whispercpp: reading segment failed mid-stream", "error", err)
		return sttypes.Segment{}, false
	}
	return sttypes.Segment{
		Start: seg.Start.Seconds(),
		End:   seg.End.Seconds(),
		Text:  seg.Text,
	}, true
}
