package audio

import (
	"fmt"
	"os"

	"github.com/sttgate/sttgate/pkg/sttypes"
)

// ReadSamples returns p's audio as float32 mono samples at
// [TargetSampleRate], decoding from disk when p carries a path rather than
// an in-memory buffer.
//
// Not every [inference.AcousticModel] needs this — an implementation backed
// by a CLI tool that accepts file paths natively has no use for it — but the
// whisper.cpp bindings used by this build only accept sample arrays, so the
// driver calls this right before invoking Transcribe.
func (p *Prepared) ReadSamples() ([]float32, error) {
	if p.Samples != nil {
		return p.Samples, nil
	}
	if p.Path == "" {
		return nil, fmt.Errorf("%w: prepared audio has neither samples nor a path", sttypes.ErrInvalidArgument)
	}

	b, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio file: %v", sttypes.ErrInputIO, err)
	}

	samples, err := decodeWAV(b, TargetSampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a WAV file the native whisper.cpp backend can decode: %v", sttypes.ErrInvalidArgument, p.Path, err)
	}
	return samples, nil
}
