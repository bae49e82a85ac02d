package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/audio-api/config"
	"github.com/livepeer/audio-api/log"
)

type HealthcheckResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Returns an HTTP 200 while the API process is up
func (d *AudioAPIHandlersCollection) Healthcheck() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		responseObject := HealthcheckResponse{
			Status:    "success",
			Message:   "Cloud function successfully called",
			Timestamp: config.ISOTimestamp(),
		}

		b, err := json.Marshal(responseObject)
		if err != nil {
			log.LogNoRequestID("Failed to marshal healthcheck status: " + err.Error())
			b = []byte(`{"status": "marshalling status failed"}`)
		}

		w.Header().Set("Content-Type", "application/json")
		if _, err := io.Writer.Write(w, b); err != nil {
			log.LogNoRequestID("Failed to write HTTP response for healthcheck")
		}
	}
}
