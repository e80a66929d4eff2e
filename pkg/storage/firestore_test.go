package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set; skipping firestore tests")
	}

	// Use a test project ID
	projectID := "test-project-id"

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: projectID,
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("Weights", func(t *testing.T) {
		snap := types.WeightsSnapshot{
			Generation: 3,
			RunID:      "run-1",
			SavedAt:    time.Now().UTC().Truncate(time.Second),
			BidPrices:  []types.SlotWeight{{Minute: 0, Price: 0.07}},
			AskPrices:  []types.SlotWeight{{Minute: 0, Price: 0.14, LastSignal: 0.01}},
		}
		require.NoError(t, f.SaveWeights(ctx, "test-agent", snap))

		got, err := f.GetWeights(ctx, "test-agent", 3)
		require.NoError(t, err)
		assert.Equal(t, snap, got)

		// a later generation becomes the latest
		snap.Generation = 4
		require.NoError(t, f.SaveWeights(ctx, "test-agent", snap))
		latest, err := f.GetLatestWeights(ctx, "test-agent")
		require.NoError(t, err)
		assert.Equal(t, 4, latest.Generation)
	})

	t.Run("WeightsNotFound", func(t *testing.T) {
		_, err := f.GetWeights(ctx, "test-agent", 999)
		assert.ErrorIs(t, err, ErrWeightsNotFound)

		_, err = f.GetLatestWeights(ctx, "missing-agent")
		assert.ErrorIs(t, err, ErrWeightsNotFound)
	})

	t.Run("Metrics", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Second)
		samples := []types.MetricSample{
			{Name: "timestamp", Timestamp: base, Value: float64(base.Unix())},
			{Name: "next_settle_load", Timestamp: base, Value: 10.5},
		}
		require.NoError(t, f.InsertMetricSamples(ctx, "test-agent", samples))

		got, err := f.GetMetricSamples(ctx, "test-agent", base.Add(-time.Minute), base.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "timestamp", got[0].Name)
	})

	t.Run("EmptyAgentID", func(t *testing.T) {
		err := f.SaveWeights(ctx, "", types.WeightsSnapshot{})
		assert.ErrorContains(t, err, "agentID cannot be empty")
	})
}
