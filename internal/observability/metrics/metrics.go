// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_scene_narrator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted  *prometheus.CounterVec
	SessionsEnded    *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	SessionDuration  *prometheus.HistogramVec
	RejectedRequests *prometheus.CounterVec

	// Speech metrics
	UtterancesSpoken prometheus.Counter
	UtteranceErrors  prometheus.Counter
	SentencesQueued  prometheus.Counter
	PipelinesDone    prometheus.Counter

	// Vision metrics
	VisionLatency *prometheus.HistogramVec
	VisionErrors  *prometheus.CounterVec

	// Loop metrics
	LoopTicks           *prometheus.CounterVec
	ContinuousSilent    prometheus.Counter
	ConnectivityChanges *prometheus.CounterVec

	// Collaborator failures
	CaptureFailures prometheus.Counter
	ListenErrors    *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Transport metrics
	GRPCRequests *prometheus.CounterVec
	GRPCLatency  *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of feature sessions started",
		}, []string{"feature"}),
		SessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of feature sessions ended, by outcome",
		}, []string{"feature", "outcome"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently live sessions",
		}),
		SessionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of feature sessions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 900},
		}, []string{"feature"}),
		RejectedRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_requests_total",
			Help:      "Feature activation requests rejected at the activation boundary",
		}, []string{"reason"}),

		UtterancesSpoken: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_spoken_total",
			Help:      "Total number of utterances sent to the speech output channel",
		}),
		UtteranceErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterance_errors_total",
			Help:      "Total number of failed utterances",
		}),
		SentencesQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_queued_total",
			Help:      "Total number of sentences queued by speech pipelines",
		}),
		PipelinesDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipelines_completed_total",
			Help:      "Total number of speech pipelines that drained after flush",
		}),

		VisionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vision_latency_seconds",
			Help:      "Vision query latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"provider", "operation"}),
		VisionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_errors_total",
			Help:      "Total number of vision query failures",
		}, []string{"provider", "operation"}),

		LoopTicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_ticks_total",
			Help:      "Total number of recurring loop iterations",
		}, []string{"loop"}),
		ContinuousSilent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "continuous_silent_total",
			Help:      "Continuous descriptions suppressed as no significant change",
		}),
		ConnectivityChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connectivity_changes_total",
			Help:      "Connectivity transitions observed",
		}, []string{"state"}),

		CaptureFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_failures_total",
			Help:      "Frame captures that returned no frame",
		}),
		ListenErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listen_errors_total",
			Help:      "Speech input failures",
		}, []string{"reason"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Person/preference store failures",
		}, []string{"operation"}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		GRPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls handled",
		}, []string{"method", "code"}),
		GRPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of control API requests",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Control API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart(feature string) {
	m.SessionsStarted.WithLabelValues(feature).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session reaching a terminal state.
func (m *Metrics) RecordSessionEnd(feature, outcome string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsEnded.WithLabelValues(feature, outcome).Inc()
	m.SessionDuration.WithLabelValues(feature).Observe(durationSeconds)
}

// RecordRejected records a rejected activation request.
func (m *Metrics) RecordRejected(reason string) {
	m.RejectedRequests.WithLabelValues(reason).Inc()
}

// RecordUtterance records an utterance result.
func (m *Metrics) RecordUtterance(err error) {
	m.UtterancesSpoken.Inc()
	if err != nil {
		m.UtteranceErrors.Inc()
	}
}

// RecordSentencesQueued records sentences appended to a pipeline queue.
func (m *Metrics) RecordSentencesQueued(n int) {
	m.SentencesQueued.Add(float64(n))
}

// RecordPipelineDone records a pipeline completion.
func (m *Metrics) RecordPipelineDone() {
	m.PipelinesDone.Inc()
}

// RecordVisionQuery records a vision query attempt.
func (m *Metrics) RecordVisionQuery(provider, operation string, err error, latencySeconds float64) {
	m.VisionLatency.WithLabelValues(provider, operation).Observe(latencySeconds)
	if err != nil {
		m.VisionErrors.WithLabelValues(provider, operation).Inc()
	}
}

// RecordLoopTick records one iteration of a recurring loop.
func (m *Metrics) RecordLoopTick(loop string) {
	m.LoopTicks.WithLabelValues(loop).Inc()
}

// RecordContinuousSilent records a suppressed continuous description.
func (m *Metrics) RecordContinuousSilent() {
	m.ContinuousSilent.Inc()
}

// RecordConnectivity records a connectivity transition.
func (m *Metrics) RecordConnectivity(online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	m.ConnectivityChanges.WithLabelValues(state).Inc()
}

// RecordCaptureFailure records a missing frame.
func (m *Metrics) RecordCaptureFailure() {
	m.CaptureFailures.Inc()
}

// RecordListenError records a speech input failure.
func (m *Metrics) RecordListenError(reason string) {
	m.ListenErrors.WithLabelValues(reason).Inc()
}

// RecordStoreError records a store failure.
func (m *Metrics) RecordStoreError(operation string) {
	m.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records a completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string, latencySeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(latencySeconds)
}

// RecordHTTPRequest records a completed control API request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(latencySeconds)
}
