// Package metrics buffers named telemetry samples and flushes them to
// storage in batches. Flushes are fire-and-forget: the trader never waits on
// a telemetry write and a failed write is logged, not surfaced.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridtrader/gridtrader/pkg/log"
	"github.com/gridtrader/gridtrader/pkg/storage"
	"github.com/gridtrader/gridtrader/pkg/types"
)

// DefaultBatchSize is how many buffered samples trigger a flush.
const DefaultBatchSize = 10000

// Recorder accumulates samples for one agent. A disabled Recorder (track
// false or nil database) accepts every call as a no-op, so callers never
// branch on whether telemetry is configured.
type Recorder struct {
	agentID string
	db      storage.Database
	track   bool

	mu      sync.Mutex
	series  map[string]bool
	samples []types.MetricSample

	// wg lets tests wait for in-flight flushes.
	wg sync.WaitGroup
}

// NewRecorder creates a Recorder for the given agent. Tracking is disabled
// when track is false or db is nil.
func NewRecorder(agentID string, db storage.Database, track bool) *Recorder {
	return &Recorder{
		agentID: agentID,
		db:      db,
		track:   track && db != nil,
		series:  make(map[string]bool),
	}
}

// Enabled reports whether the recorder actually records.
func (r *Recorder) Enabled() bool {
	return r.track
}

// Add registers a named series. Tracking an unregistered name is an error,
// which catches typos in call sites early.
func (r *Recorder) Add(name string) {
	if !r.track {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[name] = true
}

// Track buffers one sample for a registered series.
func (r *Recorder) Track(name string, value any) error {
	if !r.track {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.series[name] {
		return fmt.Errorf("metrics: series %q not registered", name)
	}
	r.samples = append(r.samples, types.MetricSample{
		Name:      name,
		Timestamp: time.Now().UTC(),
		Value:     value,
	})
	return nil
}

// Save flushes the buffer to storage once it has reached batchSize samples.
// A batchSize <= 0 uses DefaultBatchSize. The write happens on its own
// goroutine and is never awaited; failures are logged and the samples
// dropped.
func (r *Recorder) Save(ctx context.Context, batchSize int) {
	if !r.track {
		return
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	r.mu.Lock()
	if len(r.samples) < batchSize {
		r.mu.Unlock()
		return
	}
	batch := r.samples
	r.samples = nil
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// detach from the caller's cancellation, the round moves on without us
		if err := r.db.InsertMetricSamples(context.WithoutCancel(ctx), r.agentID, batch); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to flush metric samples",
				slog.String("agentID", r.agentID),
				slog.Int("samples", len(batch)),
				slog.Any("err", err),
			)
		}
	}()
}

// Wait blocks until all in-flight flushes finish. Used in tests and on
// shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Buffered returns the number of samples currently waiting to flush.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}
