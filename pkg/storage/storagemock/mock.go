package storagemock

import (
	"context"
	"time"

	"github.com/gridtrader/gridtrader/pkg/storage"
	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) SaveWeights(ctx context.Context, agentID string, snap types.WeightsSnapshot) error {
	args := m.Called(ctx, agentID, snap)
	return args.Error(0)
}

func (m *MockDatabase) GetWeights(ctx context.Context, agentID string, generation int) (types.WeightsSnapshot, error) {
	args := m.Called(ctx, agentID, generation)
	if len(args) > 0 {
		return args.Get(0).(types.WeightsSnapshot), args.Error(1)
	}
	return types.WeightsSnapshot{}, nil
}

func (m *MockDatabase) GetLatestWeights(ctx context.Context, agentID string) (types.WeightsSnapshot, error) {
	args := m.Called(ctx, agentID)
	if len(args) > 0 {
		return args.Get(0).(types.WeightsSnapshot), args.Error(1)
	}
	return types.WeightsSnapshot{}, nil
}

func (m *MockDatabase) InsertMetricSamples(ctx context.Context, agentID string, samples []types.MetricSample) error {
	args := m.Called(ctx, agentID, samples)
	return args.Error(0)
}

func (m *MockDatabase) GetMetricSamples(ctx context.Context, agentID string, start, end time.Time) ([]types.MetricSample, error) {
	args := m.Called(ctx, agentID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.MetricSample), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
