package ai

import (
	"math"
	"sync"
)

// MetricsRecorder accumulates token usage of one generator across oracle
// calls. The zero value is ready to use. Both generator backends embed one
// and expose it through GetMetrics and ResetMetrics.
type MetricsRecorder struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

// Record adds one completed request. Requests is incremented regardless of
// the value passed in.
func (r *MetricsRecorder) Record(m ModelMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.Requests++
	r.metrics.InputTokens += m.InputTokens
	r.metrics.OutputTokens += m.OutputTokens
	r.metrics.TotalTokens += m.TotalTokens
	r.metrics.DurationMs += m.DurationMs
	if r.metrics.DurationMs > 0 {
		tps := float64(r.metrics.TotalTokens) * 1000 / float64(r.metrics.DurationMs)
		r.metrics.TokenPerSecond = float32(math.Round(tps*100) / 100)
	}
}

func (r *MetricsRecorder) Snapshot() ModelMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

func (r *MetricsRecorder) Reset() {
	r.mu.Lock()
	r.metrics = ModelMetrics{}
	r.mu.Unlock()
}
