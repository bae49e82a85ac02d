package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestCount    *prometheus.CounterVec
}

type AudioAPIMetrics struct {
	HTTPRequestsInFlight prometheus.Gauge
	JobsInFlight         *prometheus.GaugeVec

	JobCount          *prometheus.CounterVec
	JobDurationSec    *prometheus.SummaryVec
	SegmentDuration   prometheus.Histogram
	ModelDurationSec  *prometheus.HistogramVec
	TranscodeDuration *prometheus.HistogramVec
	UploadedObjects   prometheus.Counter

	ObjectStoreClient   ClientMetrics
	DocumentStoreClient ClientMetrics
	MediaFetchClient    ClientMetrics
	OpenShotClient      ClientMetrics
}

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
var processingBuckets = []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

func newClientMetrics(prefix, description string, labels ...string) ClientMetrics {
	return ClientMetrics{
		RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_retry_count",
			Help: "The number of retries of a successful request to the " + description,
		}, labels),
		FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_failure_count",
			Help: "The total number of failed requests to the " + description,
		}, append(append([]string{}, labels...), "status_code")),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_request_duration",
			Help:    "Time taken by requests to the " + description,
			Buckets: defaultBuckets,
		}, labels),
		RequestCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_request_count",
			Help: "The total number of successful requests to the " + description,
		}, labels),
	}
}

func NewMetrics() *AudioAPIMetrics {
	m := &AudioAPIMetrics{
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "A count of the http requests in flight",
		}),
		JobsInFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "A count of the audio jobs currently running, by job type",
		}, []string{"job"}),

		// Job level metrics, job is one of separate|transcribe|prepare
		JobCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "job_count",
			Help: "The total number of audio jobs, broken up by job type and result",
		}, []string{"job", "result"}),
		JobDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "job_duration_seconds",
			Help: "The time that audio jobs take to run, broken up by job type and success",
		}, []string{"job", "success"}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "separation_segment_duration_seconds",
			Help:    "Time taken to fully process one segment: download, separate, re-encode and upload every stem",
			Buckets: processingBuckets,
		}),
		ModelDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "model_duration_seconds",
			Help:    "Time taken by the external model invocations",
			Buckets: processingBuckets,
		}, []string{"model"}),
		TranscodeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcode_duration_seconds",
			Help:    "Time taken by ffmpeg conversions, by direction",
			Buckets: defaultBuckets,
		}, []string{"direction"}),
		UploadedObjects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stem_objects_uploaded",
			Help: "The total number of stem objects written to the object store",
		}),

		// Clients metrics
		ObjectStoreClient:   newClientMetrics("object_store", "object store", "host", "operation"),
		DocumentStoreClient: newClientMetrics("document_store", "document store", "operation"),
		MediaFetchClient:    newClientMetrics("media_fetch", "remote media hosts", "host"),
		OpenShotClient:      newClientMetrics("openshot_client", "OpenShot API", "host"),
	}

	return m
}

var Metrics = NewMetrics()
