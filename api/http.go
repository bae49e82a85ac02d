package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/audio-api/config"
	"github.com/livepeer/audio-api/handlers"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/middleware"
	"github.com/livepeer/audio-api/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Jobs can legitimately run for minutes, so in-flight requests get a long grace period
const shutdownTimeout = 2 * time.Minute

func ListenAndServe(ctx context.Context, cli config.Cli, coordinator *pipeline.Coordinator) error {
	router := NewAudioAPIRouter(coordinator, cli.MaxInFlightJobs)
	server := http.Server{Addr: cli.HTTPAddress, Handler: router}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.LogNoRequestID(
		"Starting Audio API!",
		"version", config.Version,
		"host", cli.HTTPAddress,
	)

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	select {
	case err := <-errs:
		if err != http.ErrServerClosed {
			return err
		}
	default:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// Pipeline is what the router needs from the coordinator
type Pipeline interface {
	handlers.Pipeline
	middleware.JobCounter
}

func NewAudioAPIRouter(p Pipeline, maxInFlightJobs int) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest(log.AccessLogger())
	withCORS := middleware.AllowCORS()
	withCapacityChecking := func(next httprouter.Handle) httprouter.Handle {
		return middleware.HasCapacity(p, maxInFlightJobs, next)
	}

	audioAPIHandlers := handlers.NewAudioAPIHandlersCollection(p)

	// Simple endpoints for healthchecks
	router.GET("/ok", withLogging(audioAPIHandlers.Ok()))
	router.GET("/healthcheck", withLogging(audioAPIHandlers.Healthcheck()))

	jobRoutes := map[string]httprouter.Handle{
		"/api/audio/separate":   audioAPIHandlers.Separate(),
		"/api/audio/transcribe": audioAPIHandlers.Transcribe(),
		"/api/video/prepare":    audioAPIHandlers.PrepareVideo(),
	}
	for path, handle := range jobRoutes {
		router.POST(path, withLogging(withCORS(withCapacityChecking(handle))))
		// Preflight is answered by the CORS middleware
		router.OPTIONS(path, withLogging(withCORS(audioAPIHandlers.Ok())))
	}

	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}
