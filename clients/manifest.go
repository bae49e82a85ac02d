package clients

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

// MediaSegment is one entry of a media playlist, resolved to an absolute URL
type MediaSegment struct {
	URL            *url.URL
	DurationMillis int64
}

func IsPlaylistURL(u *url.URL) bool {
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

func isPlaylistContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "mpegurl")
}

// decodePlaylist parses r as either kind of HLS playlist
func decodePlaylist(r io.Reader) (m3u8.Playlist, m3u8.ListType, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, 0, fmt.Errorf("error decoding manifest: %w", err)
	}
	return playlist, listType, nil
}

// SelectAudioRendition picks the playlist to read audio from: the default
// audio alternative of the highest bandwidth variant when one is declared,
// otherwise the variant itself.
func SelectAudioRendition(manifestURL *url.URL, master *m3u8.MasterPlaylist) (*url.URL, error) {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("master playlist has no variants")
	}

	uri := best.URI
	var fallback string
	for _, alt := range best.Alternatives {
		if alt == nil || alt.Type != "AUDIO" || alt.URI == "" {
			continue
		}
		if alt.Default {
			fallback = alt.URI
			break
		}
		if fallback == "" {
			fallback = alt.URI
		}
	}
	if fallback != "" {
		uri = fallback
	}
	return ManifestURLToSegmentURL(manifestURL, uri)
}

// GetSourceSegmentURLs resolves every segment of a media playlist against the
// playlist URL. An initialisation section (EXT-X-MAP) comes first.
func GetSourceSegmentURLs(manifestURL *url.URL, manifest *m3u8.MediaPlaylist) ([]MediaSegment, error) {
	var segments []MediaSegment
	if manifest.Map != nil && manifest.Map.URI != "" {
		u, err := ManifestURLToSegmentURL(manifestURL, manifest.Map.URI)
		if err != nil {
			return nil, err
		}
		segments = append(segments, MediaSegment{URL: u})
	}
	for _, segment := range manifest.Segments {
		// The segments list is a ring buffer - see https://github.com/grafov/m3u8/issues/140
		// and so we only know we've hit the end of the list when we find a nil element
		if segment == nil {
			break
		}
		u, err := ManifestURLToSegmentURL(manifestURL, segment.URI)
		if err != nil {
			return nil, err
		}
		segments = append(segments, MediaSegment{
			URL:            u,
			DurationMillis: int64(segment.Duration * 1000),
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("media playlist has no segments")
	}
	return segments, nil
}

func ManifestURLToSegmentURL(manifestURL *url.URL, segmentFilename string) (*url.URL, error) {
	relative, err := url.Parse(segmentFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to parse segment filename when converting to segment URL: %s", err)
	}
	return manifestURL.ResolveReference(relative), nil
}
