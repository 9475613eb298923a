package strategy

import (
	"sync"
	"time"

	"github.com/jonathan/apply-agent/internal/types"
)

// WindowCapacity is the maximum number of outcomes kept per strategy.
// Appending beyond the capacity evicts the oldest entry first.
const WindowCapacity = 100

// MetricsWindow is a fixed-capacity, FIFO-evicted history of recent execution
// outcomes. Safe for concurrent use; attempts for the same strategy append
// one at a time.
type MetricsWindow struct {
	mu      sync.Mutex
	cap     int
	entries []types.PerformanceMetric
}

// NewMetricsWindow returns an empty window with the default capacity.
func NewMetricsWindow() *MetricsWindow {
	return &MetricsWindow{cap: WindowCapacity}
}

// Append records one outcome, evicting the oldest entry when full.
func (w *MetricsWindow) Append(m types.PerformanceMetric) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) >= w.cap {
		w.entries = w.entries[1:]
	}
	w.entries = append(w.entries, m)
}

// Len returns the number of recorded outcomes.
func (w *MetricsWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Snapshot returns a copy of the recorded outcomes, oldest first.
func (w *MetricsWindow) Snapshot() []types.PerformanceMetric {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]types.PerformanceMetric(nil), w.entries...)
}

// SuccessRate returns the fraction of successful outcomes in the window,
// or 0 when the window is empty.
func (w *MetricsWindow) SuccessRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) == 0 {
		return 0
	}
	successes := 0
	for _, entry := range w.entries {
		if entry.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(w.entries))
}

// AverageDuration returns the mean execution time across the window,
// or 0 when the window is empty.
func (w *MetricsWindow) AverageDuration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) == 0 {
		return 0
	}
	var total time.Duration
	for _, entry := range w.entries {
		total += entry.Duration
	}
	return total / time.Duration(len(w.entries))
}
