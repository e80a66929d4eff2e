// Package marketmock provides testify mocks for every market collaborator
// interface.
package marketmock

import (
	"context"

	"github.com/gridtrader/gridtrader/pkg/market"
	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockRewardReader struct {
	mock.Mock
}

var _ market.RewardReader = (*MockRewardReader)(nil)

func (m *MockRewardReader) CalculateReward(ctx context.Context) (*types.Reward, error) {
	args := m.Called(ctx)
	val := args.Get(0)
	if val == nil {
		return nil, args.Error(1)
	}
	return val.(*types.Reward), args.Error(1)
}

type MockTimingProvider struct {
	mock.Mock
}

var _ market.TimingProvider = (*MockTimingProvider)(nil)

func (m *MockTimingProvider) Timing(ctx context.Context) (types.Timing, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.Timing), args.Error(1)
	}
	return types.Timing{}, nil
}

type MockProfileReader struct {
	mock.Mock
}

var _ market.ProfileReader = (*MockProfileReader)(nil)

func (m *MockProfileReader) ReadProfile(ctx context.Context, round types.Interval) (float64, float64, error) {
	args := m.Called(ctx, round)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

type MockLedger struct {
	mock.Mock
}

var _ market.Ledger = (*MockLedger)(nil)

func (m *MockLedger) SettledInfo(ctx context.Context, round types.Interval) (types.SettledInfo, error) {
	args := m.Called(ctx, round)
	if len(args) > 0 {
		return args.Get(0).(types.SettledInfo), args.Error(1)
	}
	return types.SettledInfo{}, nil
}

type MockScheduler struct {
	mock.Mock
}

var _ market.Scheduler = (*MockScheduler)(nil)

func (m *MockScheduler) CheckSchedule(ctx context.Context, round types.Interval) (types.StorageSchedule, error) {
	args := m.Called(ctx, round)
	if len(args) > 0 {
		return args.Get(0).(types.StorageSchedule), args.Error(1)
	}
	return types.StorageSchedule{}, nil
}
