package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestIsObjectNotFound(t *testing.T) {
	err := NewObjectNotFoundError("foo", fmt.Errorf("bar"))
	require.True(t, IsObjectNotFound(err))
	require.True(t, IsUnretriable(err))
	var permErr *backoff.PermanentError
	require.False(t, errors.As(err, &permErr))
}

func TestUnretriable(t *testing.T) {
	err := Unretriable(fmt.Errorf("bar"))
	require.True(t, IsUnretriable(err))
	var permErr *backoff.PermanentError
	require.True(t, errors.As(err, &permErr))
}

func TestTranscodeErrorMentionsFFmpeg(t *testing.T) {
	err := NewTranscodeError(1, "Invalid data found when processing input\n", fmt.Errorf("exit status 1"))
	require.Equal(t, KindTranscode, KindOf(err))
	require.Contains(t, err.Error(), "FFmpeg")
	require.Equal(t, "FFmpeg processing error: exit status 1 - Invalid data found when processing input", err.Error())
	require.False(t, IsClientFault(err))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	require.Equal(t, ClassInvalidFormat, Classification(err))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("segment stream_0/segment_1.ts: %w", NewSeparationError("model failed", "", nil))
	require.Equal(t, KindSeparation, KindOf(err))
	require.Equal(t, ClassProcessingFailed, Classification(err))
}

func TestUnclassifiedErrorsAreInternal(t *testing.T) {
	err := fmt.Errorf("boom")
	require.Equal(t, KindInternal, KindOf(err))
	require.Equal(t, ClassInternal, Classification(err))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestClientFaultStatuses(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatus(NewValidationError("Missing required field: videoId")))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(NewInvalidRangeError()))
	require.Equal(t, http.StatusNotFound, HTTPStatus(NewNotFoundError("nope")))
	require.Equal(t, http.StatusConflict, HTTPStatus(NewAlreadyProcessedError("done")))
	require.True(t, IsClientFault(NewInvalidRangeError()))
	require.Contains(t, NewInvalidRangeError().Error(), "start_time must be less than end_time")
}

func TestWritePipelineError(t *testing.T) {
	rr := httptest.NewRecorder()
	WritePipelineError(rr, NewNotFoundError("Audio track t1 not found in video v1"))

	require.Equal(t, http.StatusNotFound, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
	require.Equal(t, "Audio track t1 not found in video v1", body["error"])
	require.NotContains(t, body, "code")
}

func TestUpstreamError(t *testing.T) {
	err := NewUpstreamError(fmt.Errorf("OpenShot API error: 400 Bad Request"))
	require.Equal(t, "OpenShot API error: 400 Bad Request", err.Error())
	require.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(err))
	require.Equal(t, ClassInvalidFormat, Classification(err))
	require.False(t, IsClientFault(err))
}
