package middleware

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/metrics"
)

// JobCounter reports how many pipeline jobs are running
type JobCounter interface {
	InFlight() int
}

// HasCapacity rejects requests with a 429 once maxInFlight jobs are running.
// A limit of zero or less disables the check.
func HasCapacity(jobs JobCounter, maxInFlight int, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Keep a gauge of HTTP requests in flight
		metrics.Metrics.HTTPRequestsInFlight.Inc()
		defer metrics.Metrics.HTTPRequestsInFlight.Dec()

		if maxInFlight > 0 && jobs.InFlight() >= maxInFlight {
			errors.WriteHTTPTooManyRequests(w, "Too many jobs in progress, try again later", nil)
			return
		}

		next(w, r, ps)
	}
}
