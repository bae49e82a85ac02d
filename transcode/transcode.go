package transcode

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/metrics"
	"github.com/livepeer/audio-api/subprocess"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// PCMParams describes the linear PCM wav that segments are decoded to
type PCMParams struct {
	SampleRate int
	Channels   int
}

// SegmentParams describes the AAC-in-MPEG-TS segments that stems are encoded to
type SegmentParams struct {
	Bitrate    string
	Channels   int
	SampleRate int
}

type Transcoder interface {
	// ToPCM decodes the first audio stream of a media file into a 16-bit signed PCM wav
	ToPCM(ctx context.Context, in, out string, p PCMParams) error
	// ToSegment encodes a PCM wav into an AAC audio-only MPEG-TS segment
	ToSegment(ctx context.Context, in, out string, p SegmentParams) error
	ProbeAudio(ctx context.Context, path string) (AudioInfo, error)
}

var _ Transcoder = FFmpeg{}

// FFmpeg builds command lines with ffmpeg-go and executes them through a
// subprocess.Runner so that the exit code and stderr end up in the TranscodeError
type FFmpeg struct {
	Runner subprocess.Runner
	Binary string
}

func NewFFmpeg() FFmpeg {
	return FFmpeg{Runner: subprocess.ExecRunner{}, Binary: "ffmpeg"}
}

func (f FFmpeg) ToPCM(ctx context.Context, in, out string, p PCMParams) error {
	args := ffmpeg.Input(in).
		Output(out, ffmpeg.KwArgs{
			"map":    "0:a:0",
			"acodec": "pcm_s16le",
			"ar":     p.SampleRate,
			"ac":     p.Channels,
			"f":      "wav",
		}).
		OverWriteOutput().GetArgs()
	return f.run(ctx, "to_pcm", out, args)
}

func (f FFmpeg) ToSegment(ctx context.Context, in, out string, p SegmentParams) error {
	kwargs := ffmpeg.KwArgs{
		"c:a":      "aac",
		"b:a":      p.Bitrate,
		"ac":       p.Channels,
		"f":        "mpegts",
		"muxdelay": 0,
	}
	if p.SampleRate > 0 {
		kwargs["ar"] = p.SampleRate
	}
	args := ffmpeg.Input(in).Output(out, kwargs).OverWriteOutput().GetArgs()
	return f.run(ctx, "to_segment", out, args)
}

func (f FFmpeg) run(ctx context.Context, direction, out string, args []string) error {
	binary := f.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	runner := f.Runner
	if runner == nil {
		runner = subprocess.ExecRunner{}
	}

	start := time.Now()
	res, err := runner.Run(ctx, binary, args...)
	metrics.Metrics.TranscodeDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
	if err != nil {
		log.LogCtxError(ctx, "ffmpeg failed", err, "direction", direction, "exit_code", res.ExitCode)
		return errors.NewTranscodeError(res.ExitCode, lastLines(res.Stderr, 10), err)
	}

	info, err := os.Stat(out)
	if err != nil {
		return errors.NewTranscodeError(res.ExitCode, lastLines(res.Stderr, 10), fmt.Errorf("output file %s was not created: %w", out, err))
	}
	if info.Size() == 0 {
		return errors.NewTranscodeError(res.ExitCode, lastLines(res.Stderr, 10), fmt.Errorf("output file %s is empty", out))
	}
	return nil
}

// ffmpeg prints its banner and stream info before the actual error, keep the tail
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
