package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/subprocess"
	"github.com/stretchr/testify/require"
	"gopkg.in/vansante/go-ffprobe.v2"
)

type recordingRunner struct {
	name string
	args []string
	res  subprocess.Result
	err  error
	// when set, the file ffmpeg would have produced
	writeOut string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) (subprocess.Result, error) {
	r.name = name
	r.args = args
	if r.writeOut != "" {
		if err := os.WriteFile(r.writeOut, []byte("media"), 0o644); err != nil {
			return subprocess.Result{}, err
		}
	}
	return r.res, r.err
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestToPCMArguments(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "original.wav")
	runner := &recordingRunner{writeOut: out}
	f := FFmpeg{Runner: runner, Binary: "ffmpeg"}

	err := f.ToPCM(context.Background(), filepath.Join(dir, "segment_0.ts"), out, PCMParams{SampleRate: 44100, Channels: 2})
	require.NoError(t, err)

	require.Equal(t, "ffmpeg", runner.name)
	require.Equal(t, filepath.Join(dir, "segment_0.ts"), argValue(runner.args, "-i"))
	require.Equal(t, "pcm_s16le", argValue(runner.args, "-acodec"))
	require.Equal(t, "44100", argValue(runner.args, "-ar"))
	require.Equal(t, "2", argValue(runner.args, "-ac"))
	require.Equal(t, "0:a:0", argValue(runner.args, "-map"))
	require.Equal(t, "wav", argValue(runner.args, "-f"))
	require.Contains(t, runner.args, "-y")
	require.Contains(t, runner.args, out)
}

func TestToSegmentArguments(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "drums.ts")
	runner := &recordingRunner{writeOut: out}
	f := FFmpeg{Runner: runner}

	err := f.ToSegment(context.Background(), filepath.Join(dir, "drums.wav"), out, SegmentParams{Bitrate: "128k", Channels: 2})
	require.NoError(t, err)

	require.Equal(t, "ffmpeg", runner.name)
	require.Equal(t, "aac", argValue(runner.args, "-c:a"))
	require.Equal(t, "128k", argValue(runner.args, "-b:a"))
	require.Equal(t, "mpegts", argValue(runner.args, "-f"))
	require.NotContains(t, runner.args, "-ar")
}

func TestNonZeroExitIsTranscodeError(t *testing.T) {
	dir := t.TempDir()
	runner := &recordingRunner{
		res: subprocess.Result{ExitCode: 1, Stderr: "ffmpeg version 6.0\n" + strings.Repeat("noise\n", 20) + "segment_0.ts: Invalid data found when processing input\n"},
		err: fmt.Errorf("ffmpeg failed: exit status 1"),
	}
	f := FFmpeg{Runner: runner}

	err := f.ToPCM(context.Background(), filepath.Join(dir, "segment_0.ts"), filepath.Join(dir, "original.wav"), PCMParams{SampleRate: 44100, Channels: 2})
	require.Error(t, err)
	require.Equal(t, errors.KindTranscode, errors.KindOf(err))
	require.Contains(t, err.Error(), "FFmpeg processing error")
	require.Contains(t, err.Error(), "Invalid data found when processing input")
	require.NotContains(t, err.Error(), "ffmpeg version")

	var pe *errors.PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 1, pe.ExitCode)
}

func TestMissingOutputIsTranscodeError(t *testing.T) {
	dir := t.TempDir()
	f := FFmpeg{Runner: &recordingRunner{}}

	err := f.ToSegment(context.Background(), filepath.Join(dir, "vocals.wav"), filepath.Join(dir, "vocals.ts"), SegmentParams{Bitrate: "128k", Channels: 2})
	require.Error(t, err)
	require.Equal(t, errors.KindTranscode, errors.KindOf(err))
	require.Contains(t, err.Error(), "was not created")
}

func TestParseProbeOutput(t *testing.T) {
	info, err := parseProbeOutput(&ffprobe.ProbeData{
		Format: &ffprobe.Format{FormatName: "mpegts", DurationSeconds: 6.006},
		Streams: []*ffprobe.Stream{
			{CodecType: "video", CodecName: "h264"},
			{CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, AudioInfo{Codec: "aac", Format: "mpegts", Channels: 2, SampleRate: 48000, DurationSec: 6.006}, info)
}

func TestParseProbeOutputWithoutAudio(t *testing.T) {
	_, err := parseProbeOutput(&ffprobe.ProbeData{
		Format:  &ffprobe.Format{FormatName: "mpegts"},
		Streams: []*ffprobe.Stream{{CodecType: "video", CodecName: "h264"}},
	})
	require.Error(t, err)
	require.Equal(t, errors.KindTranscode, errors.KindOf(err))
	require.Contains(t, err.Error(), "no audio stream found")

	_, err = parseProbeOutput(&ffprobe.ProbeData{})
	require.ErrorContains(t, err, "format information missing")
}
