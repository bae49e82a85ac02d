// Package pcm holds the uncompressed audio interchange format passed between
// the transcoder and the models, plus WAV file I/O for it.
package pcm

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// Buffer is interleaved signed PCM audio
type Buffer struct {
	Samples    []int
	SampleRate int
	Channels   int
	BitDepth   int
}

// Frames is the number of samples per channel
func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// DurationMS is the length of the buffer in milliseconds, rounded down
func (b *Buffer) DurationMS() int64 {
	if b.SampleRate == 0 {
		return 0
	}
	return int64(b.Frames()) * 1000 / int64(b.SampleRate)
}

func (b *Buffer) DurationSeconds() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Validate checks the preconditions the models rely on
func (b *Buffer) Validate() error {
	if b == nil || len(b.Samples) == 0 {
		return fmt.Errorf("audio buffer is empty")
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", b.SampleRate)
	}
	if b.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", b.Channels)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("%d samples do not divide into %d channels", len(b.Samples), b.Channels)
	}
	return nil
}

func ReadFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error decoding wav file %s: %w", path, err)
	}
	return &Buffer{
		Samples:    buf.Data,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, nil
}

func WriteFile(path string, b *Buffer) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("refusing to write %s: %w", path, err)
	}
	bitDepth := b.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating wav file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, b.SampleRate, bitDepth, b.Channels, wavFormatPCM)
	err = enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: b.Channels,
			SampleRate:  b.SampleRate,
		},
		Data:           b.Samples,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("error encoding wav file %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("error finalising wav file %s: %w", path, err)
	}
	return nil
}
