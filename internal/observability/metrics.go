package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lexiqai/voice-interpreter/internal/resilience"
)

// Stage labels.
const (
	StageRecognition = "asr"
	StageTranslation = "mt"
	StageSynthesis   = "tts"
	StagePlayback    = "playback"
)

var (
	segmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interpreter_vad_segments_total",
		Help: "Speech segments emitted by the voice activity detector",
	})

	segmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interpreter_vad_segment_duration_seconds",
		Help:    "Duration of emitted speech segments including trailing silence",
		Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30},
	})

	fragmentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_fragments_created_total",
		Help: "Fragments created by the capture stage",
	}, []string{"direction"})

	fragmentsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interpreter_fragments_dropped_total",
		Help: "Fragments dropped because the queue was full",
	})

	fragmentsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_fragments_skipped_total",
		Help: "Fragments rejected by a text filter or a failed stage",
	}, []string{"reason"})

	fragmentsSpoken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interpreter_fragments_spoken_total",
		Help: "Fragments synthesized and played back",
	})

	stageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_stage_requests_total",
		Help: "Engine calls per stage",
	}, []string{"stage", "status"})

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interpreter_stage_latency_seconds",
		Help:    "Engine call latency per stage",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interpreter_queue_depth",
		Help: "Fragments waiting for the consumer stage",
	})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interpreter_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RecordSegment records one VAD segment.
func RecordSegment(d time.Duration) {
	segmentsTotal.Inc()
	segmentDuration.Observe(d.Seconds())
}

// RecordFragmentCreated records a fragment entering the pipeline.
func RecordFragmentCreated(direction string) {
	fragmentsCreated.WithLabelValues(direction).Inc()
}

// RecordFragmentDropped records a backpressure drop.
func RecordFragmentDropped() {
	fragmentsDropped.Inc()
}

// RecordFragmentSkipped records a filter rejection or failed stage.
func RecordFragmentSkipped(reason string) {
	fragmentsSkipped.WithLabelValues(reason).Inc()
}

// RecordFragmentSpoken records a completed playback.
func RecordFragmentSpoken() {
	fragmentsSpoken.Inc()
}

// RecordStage records one engine call.
func RecordStage(stage string, started time.Time, err error) {
	stageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	stageRequests.WithLabelValues(stage, status).Inc()
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// TrackCircuitBreaker exports the state of cb and its future transitions.
func TrackCircuitBreaker(cb *resilience.CircuitBreaker) *resilience.CircuitBreaker {
	UpdateCircuitBreakerState(cb.Name(), int(cb.GetState()))
	cb.OnStateChange(func(name string, state resilience.CircuitState) {
		UpdateCircuitBreakerState(name, int(state))
	})
	return cb
}
