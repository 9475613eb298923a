package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/types"
)

func TestMetricsWindow_AppendAndSnapshot(t *testing.T) {
	w := NewMetricsWindow()

	w.Append(types.PerformanceMetric{Success: true, Duration: time.Second})
	w.Append(types.PerformanceMetric{Success: false, Duration: 3 * time.Second})

	assert.Equal(t, 2, w.Len())

	snapshot := w.Snapshot()
	require.Len(t, snapshot, 2)
	assert.True(t, snapshot[0].Success)
	assert.False(t, snapshot[1].Success)
}

func TestMetricsWindow_EvictsOldestAtCapacity(t *testing.T) {
	w := NewMetricsWindow()

	for i := 0; i < WindowCapacity+10; i++ {
		w.Append(types.PerformanceMetric{ErrorKind: fmt.Sprintf("entry-%d", i)})
	}

	assert.Equal(t, WindowCapacity, w.Len())

	snapshot := w.Snapshot()
	// The first ten entries were evicted, oldest first.
	assert.Equal(t, "entry-10", snapshot[0].ErrorKind)
	assert.Equal(t, fmt.Sprintf("entry-%d", WindowCapacity+9), snapshot[len(snapshot)-1].ErrorKind)
}

func TestMetricsWindow_SuccessRate(t *testing.T) {
	w := NewMetricsWindow()
	assert.Zero(t, w.SuccessRate())

	w.Append(types.PerformanceMetric{Success: true})
	w.Append(types.PerformanceMetric{Success: true})
	w.Append(types.PerformanceMetric{Success: false})
	w.Append(types.PerformanceMetric{Success: false})

	assert.InDelta(t, 0.5, w.SuccessRate(), 0.001)
}

func TestMetricsWindow_AverageDuration(t *testing.T) {
	w := NewMetricsWindow()
	assert.Zero(t, w.AverageDuration())

	w.Append(types.PerformanceMetric{Duration: 2 * time.Second})
	w.Append(types.PerformanceMetric{Duration: 4 * time.Second})

	assert.Equal(t, 3*time.Second, w.AverageDuration())
}

func TestMetricsWindow_SnapshotIsACopy(t *testing.T) {
	w := NewMetricsWindow()
	w.Append(types.PerformanceMetric{ErrorKind: "original"})

	snapshot := w.Snapshot()
	snapshot[0].ErrorKind = "mutated"

	assert.Equal(t, "original", w.Snapshot()[0].ErrorKind)
}
