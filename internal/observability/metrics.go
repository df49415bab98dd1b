package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream metrics
	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vad_gateway_active_streams",
		Help: "Number of active audio streams",
	})

	totalStreams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vad_gateway_streams_total",
		Help: "Total number of audio streams accepted",
	})

	streamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vad_gateway_stream_duration_seconds",
		Help:    "Duration of audio streams in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Detector metrics
	framesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vad_gateway_frames_total",
		Help: "Total frames classified, by stable decision",
	}, []string{"decision"}) // decision: "voice" or "silence"

	frameMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vad_gateway_frame_length_mismatches_total",
		Help: "Frames rejected for not matching the configured frame length",
	})

	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vad_gateway_state_transitions_total",
		Help: "Stable detector state changes",
	}, []string{"to"})

	frameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vad_gateway_frame_latency_seconds",
		Help:    "Time to classify one frame",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
	})

	// Segment metrics
	segmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vad_gateway_segments_total",
		Help: "Speech segments closed",
	}, []string{"reason"}) // reason: "silence" or "forced"

	segmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vad_gateway_segment_duration_seconds",
		Help:    "Duration of speech segments in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// Recognizer metrics
	recognizerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vad_gateway_recognizer_requests_total",
		Help: "Total number of recognizer requests",
	}, []string{"backend", "status"})

	recognizerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vad_gateway_recognizer_latency_seconds",
		Help:    "Time from segment end to transcript",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vad_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vad_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vad_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vad_gateway_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// StreamMetrics tracks metrics for a single audio stream
type StreamMetrics struct {
	streamID        string
	startTime       time.Time
	recognizerStart time.Time
	mu              sync.Mutex
}

// NewStreamMetrics creates a new metrics tracker for a stream
func NewStreamMetrics(streamID string) *StreamMetrics {
	return &StreamMetrics{
		streamID:  streamID,
		startTime: time.Now(),
	}
}

// RecordStreamStart records the start of a stream
func (m *StreamMetrics) RecordStreamStart() {
	activeStreams.Inc()
	totalStreams.Inc()
}

// RecordStreamEnd records the end of a stream
func (m *StreamMetrics) RecordStreamEnd() {
	activeStreams.Dec()
	streamDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordFrame records one classified frame and how long it took
func (m *StreamMetrics) RecordFrame(voice bool, elapsed time.Duration) {
	decision := "silence"
	if voice {
		decision = "voice"
	}
	framesProcessed.WithLabelValues(decision).Inc()
	frameLatency.Observe(elapsed.Seconds())
}

// RecordFrameMismatch records a frame rejected for its length
func (m *StreamMetrics) RecordFrameMismatch() {
	frameMismatches.Inc()
}

// RecordTransition records a stable state change to the named state
func (m *StreamMetrics) RecordTransition(to string) {
	stateTransitions.WithLabelValues(to).Inc()
}

// RecordSegment records a closed speech segment
func (m *StreamMetrics) RecordSegment(samples, sampleRate int, forced bool) {
	reason := "silence"
	if forced {
		reason = "forced"
	}
	segmentsTotal.WithLabelValues(reason).Inc()
	if sampleRate > 0 {
		segmentDuration.Observe(float64(samples) / float64(sampleRate))
	}
}

// RecordRecognizerStart records when a segment was handed to the recognizer
func (m *StreamMetrics) RecordRecognizerStart() {
	m.mu.Lock()
	m.recognizerStart = time.Now()
	m.mu.Unlock()
}

// RecordRecognizerEnd records a recognizer result for the last started segment
func (m *StreamMetrics) RecordRecognizerEnd(backend string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.recognizerStart.IsZero() {
		recognizerLatency.Observe(time.Since(m.recognizerStart).Seconds())
		m.recognizerStart = time.Time{}
	}

	status := "success"
	if !success {
		status = "error"
	}
	recognizerRequests.WithLabelValues(backend, status).Inc()
}

// RecordError records an error
func (m *StreamMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *StreamMetrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
