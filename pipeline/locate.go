package pipeline

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/livepeer/audio-api/clients"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/separate"
)

// DefaultSegmentExtensions are the media segment types picked up when none are configured
var DefaultSegmentExtensions = []string{".ts", ".aac", ".m4s"}

const streamDirPrefix = "stream_"

// StreamDirectory is one HLS rendition directory and its segments in playback order.
// Segments are full object keys.
type StreamDirectory struct {
	Path     string
	Segments []string
}

// Locate finds every audio segment under basePath that lives in a stream_*
// directory, grouped by directory.
func Locate(ctx context.Context, store clients.BlobStore, basePath string, extensions ...string) ([]StreamDirectory, error) {
	if len(extensions) == 0 {
		extensions = DefaultSegmentExtensions
	}
	keys, err := store.ListByPrefix(ctx, basePath)
	if err != nil {
		return nil, errors.NewInternalError("Error listing video segments", err)
	}

	byDir := map[string][]string{}
	for _, key := range keys {
		rel := strings.TrimPrefix(key, basePath)
		if rel == key && basePath != "" {
			continue
		}
		if !hasExtension(rel, extensions) || !inStreamDir(rel) {
			continue
		}
		dir := path.Dir(key)
		byDir[dir] = append(byDir[dir], key)
	}
	if len(byDir) == 0 {
		return nil, errors.NewInternalError(fmt.Sprintf("No audio segments found under %s", basePath), nil)
	}

	dirs := make([]StreamDirectory, 0, len(byDir))
	for dir, segments := range byDir {
		sort.Slice(segments, func(i, j int) bool { return segmentLess(segments[i], segments[j]) })
		dirs = append(dirs, StreamDirectory{Path: dir, Segments: segments})
	}
	sort.Slice(dirs, func(i, j int) bool { return segmentLess(dirs[i].Path, dirs[j].Path) })
	return dirs, nil
}

// AlreadyExtracted reports whether anything exists under the video's audio
// output prefix. It always lists the store afresh.
func AlreadyExtracted(ctx context.Context, store clients.BlobStore, videoID string) (bool, error) {
	keys, err := store.ListByPrefix(ctx, AudioPrefix(videoID))
	if err != nil {
		return false, errors.NewInternalError("Error checking for existing audio tracks", err)
	}
	return len(keys) > 0, nil
}

// AudioPrefix is the key prefix every stem of videoID is uploaded under
func AudioPrefix(videoID string) string {
	return "audio/" + videoID + "/"
}

// DestinationKey mirrors a source segment's path below the rendition base into the stem's tree
func DestinationKey(videoID string, stem separate.Stem, relPath string) string {
	return path.Join("audio", videoID, string(stem), relPath)
}

func hasExtension(key string, extensions []string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func inStreamDir(rel string) bool {
	parts := strings.Split(path.Dir(rel), "/")
	for _, p := range parts {
		if strings.HasPrefix(p, streamDirPrefix) {
			return true
		}
	}
	return false
}

// segmentLess orders by the trailing number of the base name so that
// segment_2 comes before segment_10, then lexically
func segmentLess(a, b string) bool {
	na, okA := sequenceNumber(a)
	nb, okB := sequenceNumber(b)
	if okA && okB && na != nb && path.Dir(a) == path.Dir(b) {
		return na < nb
	}
	return a < b
}

func sequenceNumber(p string) (int, bool) {
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	end := len(base)
	start := end
	for start > 0 && unicode.IsDigit(rune(base[start-1])) {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
