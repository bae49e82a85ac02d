package requests

import (
	"net/http"

	"github.com/google/uuid"
)

const requestIDParam = "X-Request-ID"

// GetRequestId returns the caller-supplied request ID, or generates and
// records a new one so that later middleware sees the same value
func GetRequestId(req *http.Request) string {
	requestID := req.Header.Get(requestIDParam)
	if requestID != "" {
		return requestID
	}
	requestID = uuid.NewString()
	req.Header.Set(requestIDParam, requestID)
	return requestID
}
