// Package midi wraps the note-transcription model that turns a wav file
// into a standard MIDI file.
package midi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/metrics"
	"github.com/livepeer/audio-api/subprocess"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Transcriber interface {
	// Transcribe returns the bytes of the MIDI file generated from wavPath
	Transcribe(ctx context.Context, wavPath string) ([]byte, error)
}

// Command runs an external basic-pitch style model as
// `<Cmd...> <output dir> <input.wav>`. The model is expected to write
// <input base name>.midi into the output directory.
type Command struct {
	Cmd    []string
	Runner subprocess.Runner
}

// OutputPath is where the model writes the MIDI file for wavPath
func OutputPath(wavPath string) string {
	base := filepath.Base(wavPath)
	return filepath.Join(filepath.Dir(wavPath), strings.TrimSuffix(base, filepath.Ext(base))+".midi")
}

func (c Command) Transcribe(ctx context.Context, wavPath string) ([]byte, error) {
	if len(c.Cmd) == 0 {
		return nil, errors.NewTranscriptionError("Error generating MIDI: transcription model is not configured", "", nil)
	}
	if _, err := os.Stat(wavPath); err != nil {
		return nil, errors.NewTranscriptionError("Error generating MIDI", "", err)
	}

	runner := c.Runner
	if runner == nil {
		runner = subprocess.ExecRunner{}
	}
	outDir := filepath.Dir(wavPath)
	midiPath := OutputPath(wavPath)
	// the model refuses to overwrite existing output
	_ = os.Remove(midiPath)

	args := append(append([]string{}, c.Cmd[1:]...), outDir, wavPath)
	start := time.Now()
	res, err := runner.Run(ctx, c.Cmd[0], args...)
	metrics.Metrics.ModelDurationSec.WithLabelValues("transcription").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.NewTranscriptionError("Error generating MIDI", ASCII(res.Stderr), asciiError(err))
	}

	if _, err := os.Stat(midiPath); err != nil {
		return nil, errors.NewTranscriptionError("MIDI file generation failed - output file not found", "", nil)
	}
	data, err := os.ReadFile(midiPath)
	if err != nil {
		return nil, errors.NewTranscriptionError("Error generating MIDI", "", asciiError(err))
	}
	if len(data) == 0 {
		return nil, errors.NewTranscriptionError("MIDI file generation failed - output file is empty", "", nil)
	}
	log.LogCtx(ctx, "transcription model finished", "duration", time.Since(start), "midi_bytes", len(data))
	return data, nil
}

// ASCII folds accented characters to their base letter and drops anything
// else outside the ASCII range
func ASCII(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

func asciiError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", ASCII(err.Error()))
}
