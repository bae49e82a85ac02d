package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/hashicorp/go-retryablehttp"
	xerrors "github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/metrics"
)

type OpenShotProject struct {
	Name          string `json:"name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	FPSNum        int    `json:"fps_num"`
	FPSDen        int    `json:"fps_den"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	ChannelLayout int    `json:"channel_layout"`
	JSON          string `json:"json"`
}

// NewOpenShotProject returns the project settings every prepared video gets
func NewOpenShotProject(videoID string) OpenShotProject {
	return OpenShotProject{
		Name:          "video_" + videoID,
		Width:         1920,
		Height:        1080,
		FPSNum:        30,
		FPSDen:        1,
		SampleRate:    44100,
		Channels:      2,
		ChannelLayout: 3,
		JSON:          "{}",
	}
}

type openShotFileRequest struct {
	Media   *string `json:"media"`
	Project string  `json:"project"`
	JSON    string  `json:"json"`
}

type OpenShotFile struct {
	ID int `json:"id"`
	// Media details reported by OpenShot after importing the file
	Info OpenShotMediaInfo `json:"-"`
}

type OpenShotMediaInfo struct {
	Width        interface{} `json:"width"`
	Height       interface{} `json:"height"`
	Duration     interface{} `json:"duration"`
	VCodec       interface{} `json:"vcodec"`
	MediaType    interface{} `json:"media_type"`
	VideoBitRate interface{} `json:"video_bit_rate"`
}

// OpenShotAPIError is any failed exchange with the OpenShot API
type OpenShotAPIError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *OpenShotAPIError) Error() string {
	msg := "OpenShot API error: "
	if e.Err != nil {
		msg += e.Err.Error()
	} else {
		msg += fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += " - " + body
	}
	return msg
}

func (e *OpenShotAPIError) Unwrap() error {
	return e.Err
}

func IsOpenShotAPIError(err error) bool {
	var apiErr *OpenShotAPIError
	return errors.As(err, &apiErr)
}

type OpenShot interface {
	CreateProject(ctx context.Context, project OpenShotProject) (int, error)
	CreateFile(ctx context.Context, projectID int, mediaURL, name string) (OpenShotFile, error)
}

type openShotClient struct {
	baseURL string
	token   string
	client  *http.Client
	backOff func() backoff.BackOff
}

func NewOpenShotClient(baseURL, token string) OpenShot {
	if baseURL == "" {
		glog.Infof("Missing -openshot-url, video preparation is disabled")
		return &openShotClientStub{}
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = metrics.HttpRetryHook
	client.Logger = log.NewRetryableHTTPLogger("openshot")
	client.HTTPClient = &http.Client{
		Timeout: 30 * time.Second,
	}
	return &openShotClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  client.StandardClient(),
		backOff: openShotBackOff,
	}
}

func openShotBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, 2)
}

func (c *openShotClient) CreateProject(ctx context.Context, project OpenShotProject) (int, error) {
	var res struct {
		ID int `json:"id"`
	}
	if err := c.post(ctx, "/projects/", project, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

func (c *openShotClient) CreateFile(ctx context.Context, projectID int, mediaURL, name string) (OpenShotFile, error) {
	fileJSON, err := json.Marshal(map[string]string{"url": mediaURL, "name": name})
	if err != nil {
		return OpenShotFile{}, err
	}
	req := openShotFileRequest{
		Project: fmt.Sprintf("%s/projects/%d/", c.baseURL, projectID),
		JSON:    string(fileJSON),
	}

	var res struct {
		ID   int             `json:"id"`
		JSON json.RawMessage `json:"json"`
	}
	if err := c.post(ctx, "/files/", req, &res); err != nil {
		return OpenShotFile{}, err
	}
	info, err := parseMediaInfo(res.JSON)
	if err != nil {
		return OpenShotFile{}, &OpenShotAPIError{Err: fmt.Errorf("error decoding file details: %w", err)}
	}
	return OpenShotFile{ID: res.ID, Info: info}, nil
}

// OpenShot returns the file's json attribute either as an object or as an encoded string
func parseMediaInfo(raw json.RawMessage) (OpenShotMediaInfo, error) {
	var info OpenShotMediaInfo
	if len(raw) == 0 || string(raw) == "null" {
		return info, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return OpenShotMediaInfo{}, err
	}
	return info, nil
}

func (c *openShotClient) post(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling OpenShot payload: %w", err)
	}

	var respBody []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return xerrors.Unretriable(&OpenShotAPIError{Err: err})
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Token "+c.token)

		resp, err := metrics.MonitorRequest(metrics.Metrics.OpenShotClient, c.client, req)
		if err != nil {
			return &OpenShotAPIError{Err: err}
		}
		defer resp.Body.Close()
		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return &OpenShotAPIError{Err: fmt.Errorf("error reading response: %w", err)}
		}
		if resp.StatusCode >= 400 {
			apiErr := &OpenShotAPIError{StatusCode: resp.StatusCode, Body: string(respBody)}
			if resp.StatusCode < 500 {
				return xerrors.Unretriable(apiErr)
			}
			return apiErr
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(c.backOff(), ctx)); err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &OpenShotAPIError{Err: fmt.Errorf("error decoding response: %w", err)}
	}
	return nil
}

type openShotClientStub struct{}

var errOpenShotDisabled = errors.New("OpenShot is not configured")

func (s *openShotClientStub) CreateProject(context.Context, OpenShotProject) (int, error) {
	return 0, errOpenShotDisabled
}

func (s *openShotClientStub) CreateFile(context.Context, int, string, string) (OpenShotFile, error) {
	return OpenShotFile{}, errOpenShotDisabled
}
