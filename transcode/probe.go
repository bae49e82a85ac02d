package transcode

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/livepeer/audio-api/errors"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// AudioInfo is what we need to know about a downloaded segment before decoding it
type AudioInfo struct {
	Codec       string
	Format      string
	Channels    int
	SampleRate  int
	DurationSec float64
}

var probeTimeout = 60 * time.Second

// ProbeAudio inspects a local media file and fails with a TranscodeError if it has no audio stream
func (f FFmpeg) ProbeAudio(ctx context.Context, path string) (AudioInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	data, err := ffprobe.ProbeURL(probeCtx, path, "-loglevel", "error")
	if err != nil {
		return AudioInfo{}, errors.NewTranscodeError(-1, "", fmt.Errorf("error probing %s: %w", path, err))
	}
	return parseProbeOutput(data)
}

func parseProbeOutput(data *ffprobe.ProbeData) (AudioInfo, error) {
	if data == nil || data.Format == nil {
		return AudioInfo{}, errors.NewTranscodeError(-1, "", fmt.Errorf("error parsing probe output: format information missing"))
	}
	stream := data.FirstAudioStream()
	if stream == nil {
		return AudioInfo{}, errors.NewTranscodeError(-1, "", fmt.Errorf("error checking for audio: no audio stream found"))
	}

	info := AudioInfo{
		Codec:       stream.CodecName,
		Format:      data.Format.FormatName,
		Channels:    stream.Channels,
		DurationSec: data.Format.DurationSeconds,
	}
	if stream.SampleRate != "" {
		sampleRate, err := strconv.Atoi(stream.SampleRate)
		if err != nil {
			return AudioInfo{}, errors.NewTranscodeError(-1, "", fmt.Errorf("error parsing sample rate %q: %w", stream.SampleRate, err))
		}
		info.SampleRate = sampleRate
	}
	return info, nil
}
