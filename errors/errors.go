package errors

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/livepeer/audio-api/log"
	"github.com/xeipuuv/gojsonschema"
)

type apiError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

// Every failure response carries an explicit success flag alongside the message
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"error_detail,omitempty"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) apiError {
	return writeClassifiedError(w, msg, "", status, err)
}

func writeClassifiedError(w http.ResponseWriter, msg, code string, status int, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg, Code: code, Detail: errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return apiError{msg, status, err}
}

// HTTP Errors
func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnsupportedMediaType, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

func WriteHTTPTooManyRequests(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusTooManyRequests, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) apiError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return writeHttpError(w, strings.TrimSpace(sb.String()), http.StatusBadRequest, nil)
}

// WritePipelineError maps a classified pipeline failure onto its HTTP status.
// The diagnostic detail is already folded into the message, so it is not repeated.
func WritePipelineError(w http.ResponseWriter, err error) apiError {
	return writeClassifiedError(w, err.Error(), Classification(err), HTTPStatus(err), nil)
}
