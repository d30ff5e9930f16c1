// Package prometheus provides Prometheus metrics for chat hub turns.
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sydney"

// Turn outcome label values.
const (
	OutcomeSuccess    = "success"
	OutcomeEmpty      = "empty"
	OutcomeThrottled  = "throttled"
	OutcomeCaptcha    = "captcha"
	OutcomeLimit      = "limit"
	OutcomeMalformed  = "malformed"
	OutcomeNoResponse = "no_response"
	OutcomeCanceled   = "canceled"
	OutcomeError      = "error"
)

// Status constants for metric labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// turnDuration is a histogram of turn duration from dial to terminal frame.
	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of chat hub turns in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"kind", "outcome"},
	)

	// turnsTotal is a counter of finished turns.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of chat hub turns by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// turnsActive is a gauge of turns holding an open transport.
	turnsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of turns currently streaming",
		},
	)

	// framesTotal is a counter of inbound frames by type.
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of inbound chat hub frames by type",
		},
		[]string{"type"},
	)

	// streamedChars counts characters delivered to streaming callers.
	streamedChars = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streamed_characters_total",
			Help:      "Total characters delivered as streaming deltas",
		},
		[]string{"kind"},
	)

	// handshakeDuration is a histogram of conversation create calls.
	handshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Duration of conversation create calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"generation"},
	)

	// handshakesTotal is a counter of conversation create calls.
	handshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Total number of conversation create calls",
		},
		[]string{"generation", "status"},
	)

	// uploadDuration is a histogram of attachment uploads.
	uploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Duration of attachment uploads in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// uploadsTotal is a counter of attachment uploads.
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of attachment uploads",
		},
		[]string{"status"},
	)

	// transcriptErrors counts transcript writes that failed.
	transcriptErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_errors_total",
			Help:      "Total number of failed transcript writes",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		turnDuration,
		turnsTotal,
		turnsActive,
		framesTotal,
		streamedChars,
		handshakeDuration,
		handshakesTotal,
		uploadDuration,
		uploadsTotal,
		transcriptErrors,
	}
)

// RecordTurnStart records a turn opening its transport.
func RecordTurnStart() {
	turnsActive.Inc()
}

// RecordTurnEnd records a finished turn.
func RecordTurnEnd(kind, outcome string, durationSeconds float64) {
	turnsActive.Dec()
	turnDuration.WithLabelValues(kind, outcome).Observe(durationSeconds)
	turnsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordFrame records one inbound frame.
func RecordFrame(frameType int) {
	framesTotal.WithLabelValues(strconv.Itoa(frameType)).Inc()
}

// RecordStreamedChars records characters delivered as streaming deltas.
func RecordStreamedChars(kind string, n int) {
	if n > 0 {
		streamedChars.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordHandshake records a conversation create call.
func RecordHandshake(generation, status string, durationSeconds float64) {
	handshakeDuration.WithLabelValues(generation).Observe(durationSeconds)
	handshakesTotal.WithLabelValues(generation, status).Inc()
}

// RecordUpload records an attachment upload.
func RecordUpload(status string, durationSeconds float64) {
	uploadDuration.Observe(durationSeconds)
	uploadsTotal.WithLabelValues(status).Inc()
}

// RecordTranscriptError records a failed transcript write.
func RecordTranscriptError() {
	transcriptErrors.Inc()
}
