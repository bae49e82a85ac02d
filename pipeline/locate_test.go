package pipeline

import (
	"context"
	"testing"

	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/separate"
	"github.com/stretchr/testify/require"
)

func TestLocateGroupsSegmentsByStreamDirectory(t *testing.T) {
	blobs := newMemBlobs(
		"videos/u1/v1/hls/index.m3u8",
		"videos/u1/v1/hls/stream_0/playlist.m3u8",
		"videos/u1/v1/hls/stream_0/segment_10.ts",
		"videos/u1/v1/hls/stream_0/segment_2.ts",
		"videos/u1/v1/hls/stream_0/segment_1.ts",
		"videos/u1/v1/hls/stream_1/segment_0.aac",
		"videos/u1/v1/hls/thumbs/segment_0.ts",
		"videos/u1/v1/hls/stream_1/notes.txt",
	)

	dirs, err := Locate(context.Background(), blobs, "videos/u1/v1/hls/")
	require.NoError(t, err)
	require.Equal(t, []StreamDirectory{
		{
			Path: "videos/u1/v1/hls/stream_0",
			Segments: []string{
				"videos/u1/v1/hls/stream_0/segment_1.ts",
				"videos/u1/v1/hls/stream_0/segment_2.ts",
				"videos/u1/v1/hls/stream_0/segment_10.ts",
			},
		},
		{
			Path:     "videos/u1/v1/hls/stream_1",
			Segments: []string{"videos/u1/v1/hls/stream_1/segment_0.aac"},
		},
	}, dirs)
}

func TestLocateWithExplicitExtensions(t *testing.T) {
	blobs := newMemBlobs(
		"base/stream_0/a.ts",
		"base/stream_0/b.m4s",
	)
	dirs, err := Locate(context.Background(), blobs, "base/", ".M4S")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.Equal(t, []string{"base/stream_0/b.m4s"}, dirs[0].Segments)
}

func TestLocateNothingFound(t *testing.T) {
	blobs := newMemBlobs("base/index.m3u8", "base/segment_0.ts")
	_, err := Locate(context.Background(), blobs, "base/")
	require.Error(t, err)
	require.Equal(t, errors.KindInternal, errors.KindOf(err))
	require.Contains(t, err.Error(), "No audio segments found under base/")
}

func TestAlreadyExtracted(t *testing.T) {
	blobs := newMemBlobs("audio/v10/original/stream_0/segment_0.ts")

	done, err := AlreadyExtracted(context.Background(), blobs, "v1")
	require.NoError(t, err)
	require.False(t, done, "audio/v10 must not count as output of v1")

	done, err = AlreadyExtracted(context.Background(), blobs, "v10")
	require.NoError(t, err)
	require.True(t, done)
}

func TestDestinationKey(t *testing.T) {
	require.Equal(t, "audio/v1/drums/stream_0/segment_3.ts", DestinationKey("v1", separate.StemDrums, "stream_0/segment_3.ts"))
	require.Equal(t, "audio/v1/original/a/stream_1/s.ts", DestinationKey("v1", separate.StemOriginal, "/a/stream_1/s.ts"))
	require.Equal(t, "audio/v1/", AudioPrefix("v1"))
	require.Contains(t, DestinationKey("v1", separate.StemBass, "stream_0/segment_0.ts"), AudioPrefix("v1"))
}

func TestDefaultSegmentExtensions(t *testing.T) {
	require.Equal(t, []string{".ts", ".aac", ".m4s"}, DefaultSegmentExtensions)
}

func TestSegmentLess(t *testing.T) {
	require.True(t, segmentLess("d/segment_9.ts", "d/segment_10.ts"))
	require.False(t, segmentLess("d/segment_10.ts", "d/segment_9.ts"))
	require.True(t, segmentLess("a/segment_10.ts", "b/segment_9.ts"))
	require.True(t, segmentLess("d/intro.ts", "d/outro.ts"))
}
