package smtpclient

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// Metrics holds the Prometheus metrics for the delivery-outcome engine.
type Metrics struct {
	// Disposition metrics
	Defers           prometheus.Counter
	Bounces          prometheus.Counter
	Delivered        prometheus.Counter
	HostSkips        prometheus.Counter
	RecipientSkips   prometheus.Counter
	RecorderFailures prometheus.Counter

	// Attempt metrics
	AttemptsTotal   prometheus.Counter
	AttemptDuration prometheus.Histogram

	// Deadline metrics
	DeadlineExhaustions prometheus.Counter

	// Circuit breaker metrics
	BreakerRejections prometheus.Counter
}

// GetMetrics returns the singleton metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		Defers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_recipients_deferred_total",
			Help: "Total number of recipients deferred for a later attempt",
		}),
		Bounces: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_recipients_bounced_total",
			Help: "Total number of recipients bounced as undeliverable",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_recipients_delivered_total",
			Help: "Total number of recipients accepted by a remote host",
		}),
		HostSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_host_skips_total",
			Help: "Total number of candidate hosts skipped on soft failure",
		}),
		RecipientSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_recipient_skips_total",
			Help: "Total number of recipients skipped on soft failure",
		}),
		RecorderFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_recorder_failures_total",
			Help: "Total number of outcome records that failed to persist",
		}),
		AttemptsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_delivery_attempts_total",
			Help: "Total number of delivery attempts",
		}),
		AttemptDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "corvus_delivery_attempt_duration_seconds",
			Help:    "Duration of delivery attempts across all candidate hosts",
			Buckets: prometheus.DefBuckets,
		}),
		DeadlineExhaustions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_deadline_exhaustions_total",
			Help: "Total number of requests cut off by the per-request deadline",
		}),
		BreakerRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corvus_breaker_rejections_total",
			Help: "Total number of host attempts suppressed by an open circuit breaker",
		}),
	}
}

// StartMetricsServer exposes the metrics on /metrics at the given address.
// The caller owns the returned server's lifecycle.
func StartMetricsServer(listen string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Default().Error("Metrics server failed", "listen", listen, "error", err)
		}
	}()
	return srv
}
