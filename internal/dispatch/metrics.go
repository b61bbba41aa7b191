package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"inferd/pkg/types"
)

var (
	inferRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total inference requests by outcome (hit, miss, error, timeout)",
		},
		[]string{"model", "outcome"},
	)

	inferLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "dispatch",
			Name:      "latency_seconds",
			Help:      "Model invocation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	workerInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "dispatch",
			Name:      "worker_inflight",
			Help:      "Invocations currently holding a worker-pool slot",
		},
	)
)

func init() {
	prometheus.MustRegister(inferRequestsTotal, inferLatency, workerInflight)
}

// Stats tracks per-model dispatch observations with an EWMA latency, for
// the /status and health snapshots.
type Stats struct {
	mu     sync.RWMutex
	alpha  float64
	models map[string]*types.ModelStats
}

// NewStats creates a tracker with EWMA smoothing factor alpha.
// Typical alpha: 0.1..0.3 (higher reacts faster).
func NewStats(alpha float64) *Stats {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.2
	}
	return &Stats{
		alpha:  alpha,
		models: map[string]*types.ModelStats{},
	}
}

func (s *Stats) ObserveOK(model string, ms float64) {
	s.observe(model, ms, true)
}

func (s *Stats) ObserveError(model string) {
	s.observe(model, 0, false)
}

func (s *Stats) ObserveHit(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(model).CacheHits++
}

func (s *Stats) observe(model string, ms float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.get(model)
	m.Requests++
	if !ok {
		m.Failures++
		return
	}
	if ms < 0 {
		ms = 0
	}
	if m.EWMAMs == 0 {
		m.EWMAMs = ms
	} else {
		m.EWMAMs = (s.alpha * ms) + ((1.0 - s.alpha) * m.EWMAMs)
	}
	if m.MinMs == 0 || ms < m.MinMs {
		m.MinMs = ms
	}
	if ms > m.MaxMs {
		m.MaxMs = ms
	}
	m.LastMs = ms
}

func (s *Stats) get(model string) *types.ModelStats {
	m := s.models[model]
	if m == nil {
		m = &types.ModelStats{}
		s.models[model] = m
	}
	return m
}

// Snapshot returns a copy of all per-model stats.
func (s *Stats) Snapshot() map[string]types.ModelStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.ModelStats, len(s.models))
	for k, v := range s.models {
		out[k] = *v
	}
	return out
}
