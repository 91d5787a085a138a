// Package metrics holds the Prometheus collectors for the safety service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mimind"

var (
	// detections counts detector outcomes.
	// Labels: level, source
	detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "safety",
		Name:      "detections_total",
		Help:      "Safety detections by risk level and source",
	}, []string{"level", "source"})

	failClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "safety",
		Name:      "fail_closed_total",
		Help:      "Detections that failed closed on an internal error",
	})

	// detectionLatency measures the full detector call, both passes included.
	detectionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "safety",
		Name:      "detection_latency_seconds",
		Help:      "Safety detector latency in seconds",
		Buckets:   []float64{0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005},
	}, []string{"source"})

	// triageDecisions counts triage outcomes.
	// Labels: channel, stored (true, false)
	triageDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "triage",
		Name:      "decisions_total",
		Help:      "Triage decisions by channel and whether they were stored",
	}, []string{"channel", "stored"})

	// opsAlerts counts ops alerts by outcome.
	// Labels: level, status (sent, error)
	opsAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ops",
		Name:      "alerts_total",
		Help:      "Ops alerts raised by risk level and status",
	}, []string{"level", "status"})

	// analyticsDropped counts analytics events dropped on a full buffer.
	analyticsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "dropped_events_total",
		Help:      "Analytics events dropped because the write buffer was full",
	})
)

// RecordDetection records one detector outcome.
func RecordDetection(level, source string, durationSec float64, failedClosed bool) {
	detections.WithLabelValues(level, source).Inc()
	detectionLatency.WithLabelValues(source).Observe(durationSec)
	if failedClosed {
		failClosed.Inc()
	}
}

// RecordTriage records one triage decision.
func RecordTriage(channel string, stored bool) {
	s := "true"
	if !stored {
		s = "false"
	}
	triageDecisions.WithLabelValues(channel, s).Inc()
}

// RecordOpsAlert records an ops alert attempt.
func RecordOpsAlert(level string, sent bool) {
	status := "sent"
	if !sent {
		status = "error"
	}
	opsAlerts.WithLabelValues(level, status).Inc()
}

// RecordAnalyticsDropped records one dropped analytics event.
func RecordAnalyticsDropped() {
	analyticsDropped.Inc()
}
