package pcm

import (
	"math"

	"github.com/livepeer/audio-api/errors"
)

// Range is a half-open [StartMS, EndMS) window in milliseconds
type Range struct {
	StartMS int64
	EndMS   int64
}

func (r Range) StartSeconds() float64 { return float64(r.StartMS) / 1000 }
func (r Range) EndSeconds() float64   { return float64(r.EndMS) / 1000 }

// Slice cuts the [start, end) window, given in seconds, out of b.
//
// With both bounds nil the input is returned unchanged. Otherwise a missing
// start means 0 and a missing end means the full duration; start is clamped
// to 0 and end to the duration before the range is checked, so a start past
// the duration produces an InvalidRangeError. NaN and infinite bounds are
// rejected the same way.
func Slice(b *Buffer, start, end *float64) (*Buffer, Range, error) {
	durationMS := b.DurationMS()
	if start == nil && end == nil {
		return b, Range{StartMS: 0, EndMS: durationMS}, nil
	}

	// Clamp before converting so that bounds far outside the clip can't overflow int64
	duration := float64(durationMS)
	lo := 0.0
	if start != nil {
		if !finite(*start) {
			return nil, Range{}, errors.NewInvalidRangeError()
		}
		lo = math.Max(0, math.Round(*start*1000))
	}
	hi := duration
	if end != nil {
		if !finite(*end) {
			return nil, Range{}, errors.NewInvalidRangeError()
		}
		hi = math.Min(duration, math.Round(*end*1000))
	}
	if lo >= hi {
		return nil, Range{}, errors.NewInvalidRangeError()
	}
	startMS, endMS := int64(lo), int64(hi)

	startFrame := frameAt(startMS, b.SampleRate)
	endFrame := frameAt(endMS, b.SampleRate)
	if endFrame > b.Frames() {
		endFrame = b.Frames()
	}
	if startFrame >= endFrame {
		return nil, Range{}, errors.NewInvalidRangeError()
	}

	samples := make([]int, (endFrame-startFrame)*b.Channels)
	copy(samples, b.Samples[startFrame*b.Channels:endFrame*b.Channels])
	return &Buffer{
		Samples:    samples,
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
		BitDepth:   b.BitDepth,
	}, Range{StartMS: startMS, EndMS: endMS}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func frameAt(ms int64, sampleRate int) int {
	return int(ms * int64(sampleRate) / 1000)
}
