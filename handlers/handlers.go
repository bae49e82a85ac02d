package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/pipeline"
	"github.com/livepeer/audio-api/requests"
	"github.com/xeipuuv/gojsonschema"
)

// Pipeline is the part of the pipeline.Coordinator the API drives
type Pipeline interface {
	Separate(ctx context.Context, req pipeline.SeparationRequest) (pipeline.SeparationResult, error)
	Transcribe(ctx context.Context, req pipeline.TranscriptionRequest) (pipeline.TranscriptionResult, error)
	PrepareVideo(ctx context.Context, req pipeline.PrepareRequest) (pipeline.PrepareResult, error)
}

type AudioAPIHandlersCollection struct {
	Pipeline Pipeline
}

func NewAudioAPIHandlersCollection(p Pipeline) *AudioAPIHandlersCollection {
	return &AudioAPIHandlersCollection{Pipeline: p}
}

// decodeBody validates the payload against the named schema and unmarshals it
// into out. On failure the error response has already been written.
func decodeBody(w http.ResponseWriter, req *http.Request, schemaName string, out interface{}) bool {
	if req.Header.Get("Content-Type") != "" && !HasContentType(req, "application/json") {
		errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil)
		return false
	}
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		errors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
		return false
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		payload = []byte("{}")
	}
	result, err := inputSchemasCompiled[schemaName].Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
		return false
	}
	if !result.Valid() {
		errors.WriteHTTPBadBodySchema(schemaName, w, result.Errors())
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
		return false
	}
	return true
}

func requestContext(req *http.Request) context.Context {
	return log.WithRequestID(req.Context(), requests.GetRequestId(req))
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogCtxError(ctx, "Failed to write HTTP response", err)
	}
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}
	return false
}
