package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/grafov/m3u8"
	"github.com/hashicorp/go-retryablehttp"
	xerrors "github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/metrics"
	"github.com/livepeer/go-tools/drivers"
)

// MediaFetcher copies the media behind a URL into dest. HLS playlists are
// followed down to their segments, which are written back to back.
type MediaFetcher interface {
	Fetch(ctx context.Context, sourceURL string, dest io.Writer) (int64, error)
}

type HTTPMediaFetcher struct {
	client *http.Client
}

// NewMediaFetcher returns a fetcher that never retries: a failed download
// fails the job.
func NewMediaFetcher(timeout time.Duration) *HTTPMediaFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = metrics.HttpRetryHook
	client.Logger = log.NewRetryableHTTPLogger("media-fetch")
	client.HTTPClient = &http.Client{
		Timeout: timeout,
	}
	return &HTTPMediaFetcher{client: client.StandardClient()}
}

func (f *HTTPMediaFetcher) Fetch(ctx context.Context, sourceURL string, dest io.Writer) (int64, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return 0, fmt.Errorf("invalid media URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return f.fetchOS(ctx, sourceURL, dest)
	}

	body, contentType, err := f.get(ctx, u)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if !IsPlaylistURL(u) && !isPlaylistContentType(contentType) {
		return io.Copy(dest, body)
	}

	playlist, listType, err := decodePlaylist(body)
	if err != nil {
		return 0, err
	}
	if listType == m3u8.MASTER {
		master := playlist.(*m3u8.MasterPlaylist)
		if u, err = SelectAudioRendition(u, master); err != nil {
			return 0, err
		}
		log.LogCtx(ctx, "selected rendition from master playlist", "rendition", log.RedactURL(u.String()))
		if playlist, err = f.mediaPlaylist(ctx, u); err != nil {
			return 0, err
		}
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || media == nil {
		return 0, fmt.Errorf("failed to parse playlist as MediaPlaylist")
	}
	segments, err := GetSourceSegmentURLs(u, media)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, s := range segments {
		n, err := f.copySegment(ctx, s.URL, dest)
		if err != nil {
			return total, err
		}
		total += n
	}
	log.LogCtx(ctx, "fetched HLS media", "segments", len(segments), "bytes", total)
	return total, nil
}

func (f *HTTPMediaFetcher) mediaPlaylist(ctx context.Context, u *url.URL) (m3u8.Playlist, error) {
	body, _, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	playlist, listType, err := decodePlaylist(body)
	if err != nil {
		return nil, err
	}
	// Masters nested inside masters are not valid HLS
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("received non-Media manifest for rendition %s", log.RedactURL(u.String()))
	}
	return playlist, nil
}

func (f *HTTPMediaFetcher) copySegment(ctx context.Context, u *url.URL, dest io.Writer) (int64, error) {
	body, _, err := f.get(ctx, u)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	n, err := io.Copy(dest, body)
	if err != nil {
		return n, fmt.Errorf("error reading segment %s: %w", log.RedactURL(u.String()), err)
	}
	return n, nil
}

func (f *HTTPMediaFetcher) get(ctx context.Context, u *url.URL) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", xerrors.Unretriable(fmt.Errorf("error creating http request: %w", err))
	}
	resp, err := metrics.MonitorRequest(metrics.Metrics.MediaFetchClient, f.client, req)
	if err != nil {
		return nil, "", fmt.Errorf("error fetching %s: %w", log.RedactURL(u.String()), err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		err := fmt.Errorf("bad status code fetching %s: %d %s", log.RedactURL(u.String()), resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode == http.StatusNotFound {
			return nil, "", xerrors.NewObjectNotFoundError(err.Error(), nil)
		}
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// fetchOS reads a single object from any store go-tools understands
func (f *HTTPMediaFetcher) fetchOS(ctx context.Context, osURL string, dest io.Writer) (int64, error) {
	driver, err := drivers.ParseOSURL(osURL, true)
	if err != nil {
		return 0, fmt.Errorf("failed to parse OS URL %q: %s", log.RedactURL(osURL), err)
	}
	fi, err := driver.NewSession("").ReadData(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to read from OS URL %q: %s", log.RedactURL(osURL), err)
	}
	defer fi.Body.Close()
	return io.Copy(dest, fi.Body)
}
