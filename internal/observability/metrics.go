package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job metrics
	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doc_audio_active_jobs",
		Help: "Number of conversion jobs in flight",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doc_audio_jobs_total",
		Help: "Total number of conversion jobs by outcome",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doc_audio_job_duration_seconds",
		Help:    "Wall-clock duration of conversion jobs in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// Segmentation metrics
	segmentsPerJob = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doc_audio_segments_per_job",
		Help:    "Number of text segments produced per job",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doc_audio_synthesis_requests_total",
		Help: "Total number of per-segment synthesis calls",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doc_audio_synthesis_latency_seconds",
		Help:    "Per-segment synthesis latency in seconds, retries included",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Merge metrics
	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doc_audio_merges_total",
		Help: "Total number of audio merges by strategy",
	}, []string{"strategy"})

	mergeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doc_audio_merge_fallbacks_total",
		Help: "Format-aware merges that fell back to raw concatenation",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doc_audio_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "doc_audio_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doc_audio_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doc_audio_audio_bytes_total",
		Help: "Total audio bytes handled",
	}, []string{"stage"}) // stage: "synthesized" or "merged"
)

// JobMetrics tracks metrics for a single conversion job
type JobMetrics struct {
	jobID          string
	startTime      time.Time
	synthStartTime time.Time
	mu             sync.Mutex
}

// NewJobMetrics creates a new metrics tracker for a job
func NewJobMetrics(jobID string) *JobMetrics {
	return &JobMetrics{
		jobID:     jobID,
		startTime: time.Now(),
	}
}

// RecordJobStart records the start of a job
func (m *JobMetrics) RecordJobStart() {
	activeJobs.Inc()
}

// RecordJobEnd records the end of a job
func (m *JobMetrics) RecordJobEnd(success bool) {
	activeJobs.Dec()
	jobDuration.Observe(time.Since(m.startTime).Seconds())

	status := "completed"
	if !success {
		status = "failed"
	}
	jobsTotal.WithLabelValues(status).Inc()
}

// RecordSegments records how many segments the job was split into
func (m *JobMetrics) RecordSegments(count int) {
	segmentsPerJob.Observe(float64(count))
}

// RecordSynthesisStart records the start of one segment synthesis
func (m *JobMetrics) RecordSynthesisStart() {
	m.mu.Lock()
	m.synthStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSynthesisEnd records the end of one segment synthesis
func (m *JobMetrics) RecordSynthesisEnd(success bool, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synthStartTime.IsZero() {
		synthesisLatency.Observe(time.Since(m.synthStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(status).Inc()
	if bytes > 0 {
		audioBytesProduced.WithLabelValues("synthesized").Add(float64(bytes))
	}
}

// RecordMerge records the strategy used for the final merge
func (m *JobMetrics) RecordMerge(strategy string, bytes int, fellBack bool) {
	mergesTotal.WithLabelValues(strategy).Inc()
	audioBytesProduced.WithLabelValues("merged").Add(float64(bytes))
	if fellBack {
		mergeFallbacks.Inc()
	}
}

// RecordError records an error
func (m *JobMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordError records an error outside of a job context
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
