package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountSaturates(t *testing.T) {
	const window = 5
	tr := NewTracker(window)

	for k := 1; k <= window; k++ {
		tr.Update(1.0)
		assert.Equal(t, k, tr.Count(), "count should track updates during warm-up")
	}
	for k := 0; k < 10; k++ {
		tr.Update(1.0)
		assert.Equal(t, window, tr.Count(), "count should never exceed window size")
	}
}

func TestTrackerWarmupIsIncrementalMean(t *testing.T) {
	tr := NewTracker(10)

	tr.Update(2.0)
	assert.InDelta(t, 2.0, tr.Average(), 1e-12)
	tr.Update(4.0)
	assert.InDelta(t, 3.0, tr.Average(), 1e-12)
	tr.Update(6.0)
	assert.InDelta(t, 4.0, tr.Average(), 1e-12)
}

func TestTrackerSmoothsAfterWarmup(t *testing.T) {
	tr := NewTracker(4)
	for i := 0; i < 4; i++ {
		tr.Update(1.0)
	}
	require.InDelta(t, 1.0, tr.Average(), 1e-12)

	// window full: each new value weighs 1/4
	tr.Update(5.0)
	assert.InDelta(t, 2.0, tr.Average(), 1e-12)
}

func TestTrackerResetIdempotent(t *testing.T) {
	tr := NewTracker(3)
	for i := 0; i < 7; i++ {
		tr.Update(float64(i))
	}
	require.NotZero(t, tr.Average())

	tr.Reset()
	once := *tr
	tr.Reset()

	assert.Equal(t, once, *tr, "second reset should be a no-op")
	assert.Zero(t, tr.Count())
	assert.Zero(t, tr.Average())
}

func TestTrackerPanicsOnBadWindow(t *testing.T) {
	assert.Panics(t, func() { NewTracker(0) })
	assert.Panics(t, func() { NewTracker(-1) })
}
