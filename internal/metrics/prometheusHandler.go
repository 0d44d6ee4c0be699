package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var documentsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "documents_ingested_total",
	Help: "Number of documents written into the hybrid indexes",
})

var stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pipeline_stage_duration_seconds",
	Help:    "Total time spent per pipeline stage.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
}, []string{"stage", "status"})

var upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "upstream_latency_seconds",
	Help:    "Latency of external provider calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"provider"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) CaptureWriteHeaderMetrics(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func CaptureStageMetrics(stage string, timeElapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	stageDuration.WithLabelValues(stage, status).Observe(timeElapsed.Seconds())
}

func CaptureUpstreamMetrics(provider string, timeElapsed time.Duration) {
	upstreamLatency.WithLabelValues(provider).Observe(timeElapsed.Seconds())
}

func IncrementDocumentsIngested() {
	documentsIngestedTotal.Inc()
}
