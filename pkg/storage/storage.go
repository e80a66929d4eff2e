package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/levenlabs/go-lflag"
)

var (
	ErrWeightsNotFound = errors.New("weights not found")
)

// Database defines the interface for persisting learned price tables and
// telemetry samples.
type Database interface {
	// Weights
	SaveWeights(ctx context.Context, agentID string, snap types.WeightsSnapshot) error
	GetWeights(ctx context.Context, agentID string, generation int) (types.WeightsSnapshot, error)
	GetLatestWeights(ctx context.Context, agentID string) (types.WeightsSnapshot, error)

	// Telemetry
	InsertMetricSamples(ctx context.Context, agentID string, samples []types.MetricSample) error
	GetMetricSamples(ctx context.Context, agentID string, start, end time.Time) ([]types.MetricSample, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
