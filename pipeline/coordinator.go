package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/livepeer/audio-api/cache"
	"github.com/livepeer/audio-api/clients"
	"github.com/livepeer/audio-api/config"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/metrics"
	"github.com/livepeer/audio-api/midi"
	"github.com/livepeer/audio-api/separate"
	"github.com/livepeer/audio-api/transcode"
)

const (
	jobSeparate   = "separate"
	jobTranscribe = "transcribe"
	jobPrepare    = "prepare"
)

// Deps are the external systems a Coordinator drives. Every field is required
// apart from OpenShot, which only the video preparation job uses.
type Deps struct {
	Blobs       clients.BlobStore
	Documents   clients.DocumentStore
	Fetcher     clients.MediaFetcher
	OpenShot    clients.OpenShot
	Transcoder  transcode.Transcoder
	Separator   separate.Separator
	Transcriber midi.Transcriber
}

type Options struct {
	WorkspaceRoot string
	// Public base URL of the object store, stripped from video URLs to find their storage path
	PublicStorageURL *url.URL

	// PCM format segments are decoded to before separation
	SeparationPCM transcode.PCMParams
	// Encoding of the re-encoded original track and of the separated stems
	OriginalSegment transcode.SegmentParams
	StemSegment     transcode.SegmentParams

	StreamParallelism int
	SegmentExtensions []string
}

func DefaultOptions() Options {
	return Options{
		SeparationPCM:     transcode.PCMParams{SampleRate: 44100, Channels: 2},
		OriginalSegment:   transcode.SegmentParams{Bitrate: "192k", Channels: 2},
		StemSegment:       transcode.SegmentParams{Bitrate: "128k", Channels: 2},
		StreamParallelism: 1,
		SegmentExtensions: DefaultSegmentExtensions,
	}
}

// JobInfo represents a single running job
type JobInfo struct {
	Type      string
	Subject   string
	RequestID string
	StartedAt time.Time
}

// Coordinator provides the main interface to the audio pipelines. It is
// called directly from the API handlers and runs each job to completion on
// the caller's goroutine.
type Coordinator struct {
	deps Deps
	opts Options

	Jobs *cache.Cache[*JobInfo]
}

func NewCoordinator(deps Deps, opts Options) (*Coordinator, error) {
	switch {
	case deps.Blobs == nil:
		return nil, fmt.Errorf("a blob store is required")
	case deps.Documents == nil:
		return nil, fmt.Errorf("a document store is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("a media fetcher is required")
	case deps.Transcoder == nil:
		return nil, fmt.Errorf("a transcoder is required")
	case deps.Separator == nil:
		return nil, fmt.Errorf("a separator is required")
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("a transcriber is required")
	}
	if deps.OpenShot == nil {
		deps.OpenShot = clients.NewOpenShotClient("", "")
	}
	if opts.StreamParallelism < 1 {
		opts.StreamParallelism = 1
	}
	if len(opts.SegmentExtensions) == 0 {
		opts.SegmentExtensions = DefaultSegmentExtensions
	}
	return &Coordinator{
		deps: deps,
		opts: opts,
		Jobs: cache.New[*JobInfo](),
	}, nil
}

// InFlight is the number of jobs of any type currently running
func (c *Coordinator) InFlight() int {
	return c.Jobs.Len()
}

var errJobRunning = fmt.Errorf("job already running")

// runJob registers the job under key for its whole duration, refusing to
// start a second job with the same key, and records its metrics. Panics in
// the job are turned into errors.
func (c *Coordinator) runJob(ctx context.Context, jobType, subject, key string, job func() error) error {
	info := &JobInfo{
		Type:      jobType,
		Subject:   subject,
		RequestID: log.RequestID(ctx),
		StartedAt: config.Clock.Now(),
	}
	if !c.Jobs.StoreIfAbsent(key, info) {
		return errJobRunning
	}
	defer c.Jobs.Remove(key)

	metrics.Metrics.JobsInFlight.WithLabelValues(jobType).Inc()
	defer metrics.Metrics.JobsInFlight.WithLabelValues(jobType).Dec()

	start := time.Now()
	log.LogCtx(ctx, "Starting job", "job", jobType, "subject", subject)
	_, err := recovered(func() (bool, error) {
		return true, job()
	})

	success := err == nil
	result := "success"
	if !success {
		result = string(errors.KindOf(err))
		log.LogCtxError(ctx, "Job failed", err, "job", jobType, "subject", subject, "kind", result)
	} else {
		log.LogCtx(ctx, "Job finished", "job", jobType, "subject", subject, "duration", time.Since(start))
	}
	metrics.Metrics.JobCount.WithLabelValues(jobType, result).Inc()
	metrics.Metrics.JobDurationSec.WithLabelValues(jobType, strconv.FormatBool(success)).Observe(time.Since(start).Seconds())
	return err
}

func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in pipeline job, recovering", "err", rec)
			err = errors.NewInternalError("Unexpected error", fmt.Errorf("panic in pipeline job: %v", rec))
		}
	}()
	return f()
}
