// Package metrics exports Prometheus instrumentation for the crawler core.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igcrawler_requests_total",
			Help: "Total number of provider requests by query type and HTTP status",
		},
		[]string{"query_type", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "igcrawler_request_duration_seconds",
			Help:    "Provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igcrawler_retries_total",
			Help: "Total number of request retries by error kind",
		},
		[]string{"reason"},
	)

	rateWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "igcrawler_rate_wait_seconds",
			Help:    "Mandatory waits imposed by the rate controller",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 660},
		},
		[]string{"query_type"},
	)

	pageLengthShrinks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "igcrawler_page_length_shrinks_total",
			Help: "Total number of page length halvings after bad requests",
		},
	)

	snapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igcrawler_snapshots_total",
			Help: "Resume snapshot operations by action",
		},
		[]string{"action"},
	)

	downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igcrawler_downloads_total",
			Help: "Media downloads by result",
		},
		[]string{"result"},
	)

	targetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igcrawler_targets_total",
			Help: "Batch targets by outcome",
		},
		[]string{"outcome"},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestsTotal,
			requestDuration,
			retriesTotal,
			rateWaitSeconds,
			pageLengthShrinks,
			snapshotsTotal,
			downloadsTotal,
			targetsTotal,
		)
	})
}

// Handler returns an HTTP handler for Prometheus metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	InitMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordRequest records one provider request. status 0 means transport failure.
func RecordRequest(queryType string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	requestsTotal.WithLabelValues(queryType, label).Inc()
	requestDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// RecordRetry records one retry of a failed request
func RecordRetry(reason string) {
	retriesTotal.WithLabelValues(reason).Inc()
}

// RecordRateWait records a mandatory rate controller wait
func RecordRateWait(queryType string, wait time.Duration) {
	rateWaitSeconds.WithLabelValues(queryType).Observe(wait.Seconds())
}

// RecordPageLengthShrink records a page length halving
func RecordPageLengthShrink() {
	pageLengthShrinks.Inc()
}

// RecordSnapshot records a resume snapshot operation (loaded, saved, deleted, rejected)
func RecordSnapshot(action string) {
	snapshotsTotal.WithLabelValues(action).Inc()
}

// RecordDownload records a media download result (ok, skipped, failed)
func RecordDownload(result string) {
	downloadsTotal.WithLabelValues(result).Inc()
}

// RecordTarget records a batch target outcome (ok, failed)
func RecordTarget(outcome string) {
	targetsTotal.WithLabelValues(outcome).Inc()
}
