// Package inference defines the AcousticModel abstraction (spec §3, §4.F)
// and the synchronous driver that realises audio input, runs transcription,
// and joins the result. The facade calls the driver directly on the
// request's own goroutine, after acquiring the model's concurrency gate — the
// driver does not itself spawn goroutines or manage concurrency.
package inference

import (
	"strings"

	"github.com/sttgate/sttgate/pkg/audio"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

// Info is the metadata record returned alongside segments by one transcribe
// call.
type Info struct {
	Language            string
	LanguageProbability float64
	DurationSeconds     float64
}

// Params mirrors spec's TranscribeOptions fields that affect the acoustic
// model call itself (the audio-handling fields are consumed earlier, by the
// normaliser).
type Params struct {
	Language  string
	Task      sttypes.Task
	VADFilter bool
	BeamSize  int
}

// SegmentReader lazily yields transcription segments, mirroring the
// inference library's own lazy sequence (spec §4.F step 3). Next returns
// (Segment{}, false) once exhausted.
type SegmentReader interface {
	Next() (sttypes.Segment, bool)
}

// AcousticModel is the opaque handle produced by the inference library
// (spec §3). Implementations are owned by the model registry, shared across
// requests, and must tolerate concurrent Transcribe calls up to whatever
// limit the caller's semaphore enforces — the model itself performs no
// internal admission control.
type AcousticModel interface {
	// Transcribe runs one blocking inference over samples (float32 mono at
	// [audio.TargetSampleRate]) and returns a lazy segment sequence plus
	// metadata. Any failure from the underlying library should be returned
	// as-is; the driver wraps it as [sttypes.InferenceFailedError].
	Transcribe(samples []float32, params Params) (SegmentReader, Info, error)
}

// TranscribeWithModel implements spec §4.F: it prepares the audio input,
// invokes model.Transcribe, joins the segment texts, and returns either a
// bare-text or metadata-augmented [sttypes.TranscriptionResult] depending on
// opts.ReturnMeta. The temp-file scope opened by the normaliser is always
// closed before returning, on every exit path.
func TranscribeWithModel(model AcousticModel, key sttypes.ModelKey, input sttypes.AudioInput, opts sttypes.TranscribeOptions) (sttypes.TranscriptionResult, error) {
	prepared, err := audio.Prepare(input, opts.DecodeWAVBytes)
	if err != nil {
		return sttypes.TranscriptionResult{}, err
	}
	defer prepared.Close()

	samples, err := prepared.ReadSamples()
	if err != nil {
		return sttypes.TranscriptionResult{}, err
	}

	params := Params{
		Language:  opts.Language,
		Task:      opts.Task,
		VADFilter: opts.VADFilter,
		BeamSize:  opts.BeamSize,
	}

	segReader, info, err := model.Transcribe(samples, params)
	if err != nil {
		return sttypes.TranscriptionResult{}, &sttypes.InferenceFailedError{Key: key, Cause: err}
	}

	var parts []string
	var segments []sttypes.Segment
	for {
		seg, ok := segReader.Next()
		if !ok {
			break
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		if opts.ReturnMeta {
			segments = append(segments, sttypes.Segment{Start: seg.Start, End: seg.End, Text: text})
		}
	}
	fullText := strings.Join(parts, " ")

	if !opts.ReturnMeta {
		return sttypes.TranscriptionResult{Text: fullText}, nil
	}

	return sttypes.TranscriptionResult{
		Text:                fullText,
		Language:            info.Language,
		LanguageProbability: info.LanguageProbability,
		DurationSeconds:     info.DurationSeconds,
		Segments:            segments,
		ModelUsed:           key.String(),
	}, nil
}
