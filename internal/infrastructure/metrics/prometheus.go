// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clipstream"

var (
	// HTTPRequestsTotal tracks API requests.
	// Labels:
	//   - method: HTTP method
	//   - route: chi route pattern
	//   - status: response status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds observes API request latency per route.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AcquisitionAttemptsTotal tracks acquisition attempts per strategy.
	// Labels:
	//   - strategy: strategy name
	//   - kind: metadata, audio, video
	//   - outcome: success, failure, timeout
	//   - reason: none, blocked, rate_limited, unavailable, transport
	AcquisitionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisition_attempts_total",
			Help:      "Total number of media acquisition attempts",
		},
		[]string{"strategy", "kind", "outcome", "reason"},
	)

	// AcquisitionWaitSeconds observes how long the chain waited before an attempt.
	AcquisitionWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquisition_wait_seconds",
			Help:      "Delay applied before acquisition attempts",
			Buckets:   []float64{0, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// CooldownBlocksTotal counts block events recorded by the cooldown tracker.
	CooldownBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldown_blocks_total",
			Help:      "Total number of blocking events recorded",
		},
	)

	// CooldownState is 1 for the tracker's current state and 0 for the others.
	// Labels:
	//   - state: normal, degraded, cooling_down
	CooldownState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cooldown_state",
			Help:      "Current cooldown tracker state",
		},
		[]string{"state"},
	)

	// CacheOperationsTotal tracks session cache operations.
	// Labels:
	//   - operation: get, set
	//   - status: hit, miss, success, error
	//   - cache_type: redis, memory
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// DBQueriesTotal tracks database queries.
	// Labels:
	//   - query_type: select, insert, update
	//   - table: clip_jobs
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)

	// FilterValidationFailuresTotal counts filter chains that failed static
	// validation and were replaced with the canonical chain.
	// Labels:
	//   - tier: standard, premium
	FilterValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_validation_failures_total",
			Help:      "Total number of rejected and self-corrected filter chains",
		},
		[]string{"tier"},
	)

	// ClipsTotal tracks per-window transcoding results.
	// Labels:
	//   - tier: standard, premium
	//   - result: produced, skipped, failed, undersized
	ClipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clips_total",
			Help:      "Total number of clip windows processed",
		},
		[]string{"tier", "result"},
	)

	// PipelineRunsTotal tracks finished pipeline runs.
	// Labels:
	//   - status: COMPLETED, FAILED
	//   - reason: failure reason or none
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"status", "reason"},
	)

	// PipelineDurationSeconds observes the wall time of pipeline runs.
	PipelineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Pipeline run duration",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"status"},
	)
)

var cooldownStates = []string{"normal", "degraded", "cooling_down"}

// SetCooldownState marks state as the only active cooldown state.
func SetCooldownState(state string) {
	for _, s := range cooldownStates {
		v := 0.0
		if s == state {
			v = 1
		}
		CooldownState.WithLabelValues(s).Set(v)
	}
}

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet = "get"
	CacheOpSet = "set"
)

// Cache type constants.
const (
	CacheTypeRedis  = "redis"
	CacheTypeMemory = "memory"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
	DBQueryUpdate = "update"
)

// Table name constants.
const (
	TableClipJobs = "clip_jobs"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

// Clip result constants.
const (
	ClipResultProduced   = "produced"
	ClipResultSkipped    = "skipped"
	ClipResultFailed     = "failed"
	ClipResultUndersized = "undersized"
)

// PoolStats is a point-in-time view of a database connection pool.
type PoolStats struct {
	Acquired int32
	Idle     int32
	Total    int32
	Max      int32
}

// PoolStatsFunc reads the current pool statistics.
type PoolStatsFunc func() PoolStats

// RegisterPoolGauges registers gauges that read the pool on every scrape.
func RegisterPoolGauges(stats PoolStatsFunc) {
	gauge := func(name, help string, read func(PoolStats) int32) {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}
	gauge("acquired_conns", "Connections currently in use", func(s PoolStats) int32 { return s.Acquired })
	gauge("idle_conns", "Idle connections", func(s PoolStats) int32 { return s.Idle })
	gauge("total_conns", "Open connections", func(s PoolStats) int32 { return s.Total })
	gauge("max_conns", "Maximum pool size", func(s PoolStats) int32 { return s.Max })
}
