package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// Kind classifies a pipeline failure. Client-fault kinds are reported back to
// the caller only; server-fault kinds are also persisted on the video document.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindAlreadyProcessed Kind = "already_processed"
	KindTranscode        Kind = "transcode"
	KindSeparation       Kind = "separation"
	KindTranscription    Kind = "transcription"
	KindInvalidRange     Kind = "invalid_range"
	KindUpstream         Kind = "upstream"
	KindInternal         Kind = "internal"
)

// Classifications returned alongside failed job responses
const (
	ClassInvalidFormat    = "invalid_format"
	ClassProcessingFailed = "processing_failed"
	ClassInternal         = "internal"
)

type PipelineError struct {
	Kind Kind
	Msg  string
	Err  error

	// Only set for KindTranscode / KindSeparation / KindTranscription when the
	// failure came from a subprocess
	ExitCode int
	Stderr   string
}

func (e *PipelineError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %s", msg, e.Err)
		}
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s - %s", msg, stderr)
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) error {
	return &PipelineError{Kind: KindValidation, Msg: msg}
}

func NewNotFoundError(msg string) error {
	return &PipelineError{Kind: KindNotFound, Msg: msg}
}

func NewAlreadyProcessedError(msg string) error {
	return &PipelineError{Kind: KindAlreadyProcessed, Msg: msg}
}

func NewTranscodeError(exitCode int, stderr string, err error) error {
	return &PipelineError{Kind: KindTranscode, Msg: "FFmpeg processing error", Err: err, ExitCode: exitCode, Stderr: stderr}
}

func NewSeparationError(msg string, stderr string, err error) error {
	return &PipelineError{Kind: KindSeparation, Msg: msg, Err: err, Stderr: stderr}
}

func NewTranscriptionError(msg string, stderr string, err error) error {
	return &PipelineError{Kind: KindTranscription, Msg: msg, Err: err, Stderr: stderr}
}

func NewInvalidRangeError() error {
	return &PipelineError{Kind: KindInvalidRange, Msg: "Invalid time range: start_time must be less than end_time"}
}

// NewUpstreamError is a rejection by a third party service the job depends on
func NewUpstreamError(err error) error {
	return &PipelineError{Kind: KindUpstream, Err: err}
}

func NewInternalError(msg string, err error) error {
	return &PipelineError{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of the first PipelineError in err's chain, or
// KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func IsClientFault(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindAlreadyProcessed, KindInvalidRange:
		return true
	}
	return false
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidRange:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyProcessed:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func Classification(err error) string {
	switch KindOf(err) {
	case KindValidation, KindInvalidRange, KindTranscode, KindUpstream:
		return ClassInvalidFormat
	case KindSeparation, KindTranscription:
		return ClassProcessingFailed
	case KindNotFound, KindAlreadyProcessed:
		return ""
	}
	return ClassInternal
}

// UnretriableError wraps backoff.PermanentError so that a retry loop stops
// immediately while callers can still check IsUnretriable.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{backoff.Permanent(err)}
}

func IsUnretriable(err error) bool {
	return stderrors.As(err, &UnretriableError{})
}

func (e UnretriableError) Unwrap() error {
	return e.error
}

type ObjectNotFoundError struct {
	msg   string
	cause error
}

func NewObjectNotFoundError(msg string, cause error) error {
	return UnretriableError{ObjectNotFoundError{msg: msg, cause: cause}}
}

func (e ObjectNotFoundError) Error() string {
	return e.msg
}

func (e ObjectNotFoundError) Unwrap() error {
	return e.cause
}

func IsObjectNotFound(err error) bool {
	return stderrors.As(err, &ObjectNotFoundError{})
}
