package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func TestCORSHeaders(t *testing.T) {
	require := require.New(t)

	var nextCalled bool
	h := AllowCORS()(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		nextCalled = true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/audio/separate", nil)
	rr := httptest.NewRecorder()
	h(rr, req, nil)

	require.True(nextCalled)
	require.Equal("*", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal("POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSPreflightStopsHere(t *testing.T) {
	require := require.New(t)

	var nextCalled bool
	h := AllowCORS()(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		nextCalled = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/audio/transcribe", nil)
	rr := httptest.NewRecorder()
	h(rr, req, nil)

	require.False(nextCalled)
	require.Equal(http.StatusNoContent, rr.Code)
	require.Equal("*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogRequest(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	h := LogRequest(log.NewLogfmtLogger(&buf))(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/audio/separate", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr := httptest.NewRecorder()
	h(rr, req, nil)

	require.Equal(http.StatusNotFound, rr.Code)
	require.Contains(buf.String(), "request_id=abc")
	require.Contains(buf.String(), "status=404")
	require.Contains(buf.String(), "uri=/api/audio/separate")
}

func TestLogRequestRecoversPanics(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	h := LogRequest(log.NewLogfmtLogger(&buf))(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		panic("handler blew up")
	})

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/api/video/prepare", nil), nil)

	require.Equal(http.StatusInternalServerError, rr.Code)
	require.Contains(rr.Body.String(), "Internal Server Error")
	require.Contains(buf.String(), "handler blew up")
}
