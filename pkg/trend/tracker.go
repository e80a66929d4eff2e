// Package trend holds the running-average primitive and the crossover logic
// used to turn learned prices into buy/sell triggers.
package trend

// Tracker is a bounded-window running average. While fewer than WindowSize
// values have been seen it behaves like an incremental mean; once the window
// fills, each update weighs the new value by 1/WindowSize, approximating an
// exponential moving average.
type Tracker struct {
	windowSize int
	count      int
	average    float64
}

// NewTracker returns a Tracker over the given window size. Panics if
// windowSize is not positive.
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		panic("trend: tracker window size must be > 0")
	}
	return &Tracker{windowSize: windowSize}
}

// Update folds a new value into the running average.
func (t *Tracker) Update(value float64) {
	if t.count < t.windowSize {
		t.count++
	}
	t.average += (value - t.average) / float64(t.count)
}

// Reset discards all learned trend state. Used at episode boundaries.
func (t *Tracker) Reset() {
	t.count = 0
	t.average = 0
}

// Average returns the current running average. It is 0 until the first
// update.
func (t *Tracker) Average() float64 {
	return t.average
}

// Count returns how many updates have been absorbed, capped at the window
// size.
func (t *Tracker) Count() int {
	return t.count
}

// WindowSize returns the configured window size.
func (t *Tracker) WindowSize() int {
	return t.windowSize
}
