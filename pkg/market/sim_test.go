package market

import (
	"context"
	"testing"
	"time"

	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimTiming(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimConfig{})

	timing, err := sim.Timing(ctx)
	require.NoError(t, err)
	assert.Equal(t, timing.LastDeliver.End, timing.CurrentRound.Start)
	assert.Equal(t, timing.CurrentRound.End, timing.NextSettle.Start)
	assert.Equal(t, time.Minute, timing.CurrentRound.End.Sub(timing.CurrentRound.Start))

	require.NoError(t, sim.Advance(ctx))
	next, err := sim.Timing(ctx)
	require.NoError(t, err)
	assert.Equal(t, timing.NextSettle, next.CurrentRound)
}

func TestSimReadProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("overnight", func(t *testing.T) {
		sim := NewSim(SimConfig{})
		timing, err := sim.Timing(ctx)
		require.NoError(t, err)

		generation, load, err := sim.ReadProfile(ctx, timing.CurrentRound)
		require.NoError(t, err)
		assert.Zero(t, generation)
		// 1.5 kW base load over a one-minute round
		assert.InDelta(t, 1.5/60, load, 1e-9)
	})

	t.Run("midday", func(t *testing.T) {
		sim := NewSim(SimConfig{
			Start: time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC),
		})
		timing, err := sim.Timing(ctx)
		require.NoError(t, err)

		generation, load, err := sim.ReadProfile(ctx, timing.CurrentRound)
		require.NoError(t, err)
		assert.Greater(t, generation, load, "solar should exceed load at the peak of the curve")
	})
}

func TestSimSettlement(t *testing.T) {
	ctx := context.Background()
	// overnight start, clearing price 0.08
	sim := NewSim(SimConfig{})

	timing, err := sim.Timing(ctx)
	require.NoError(t, err)
	key := timing.CurrentRound.Key()

	action := types.Action{
		Bids: map[string]types.Order{
			key: {Quantity: 4, Source: "solar", Price: 0.10},
		},
	}
	require.NoError(t, sim.Submit(ctx, action))
	require.NoError(t, sim.Advance(ctx))

	info, err := sim.SettledInfo(ctx, timing.CurrentRound)
	require.NoError(t, err)
	assert.Equal(t, 4.0, info.BidQuantity, "bid above clearing should settle in full")

	reward, err := sim.CalculateReward(ctx)
	require.NoError(t, err)
	require.NotNil(t, reward)
	assert.Equal(t, 0.10, reward.UnitCost)
	assert.Zero(t, reward.UnitCostDiff, "first settled round has no prior reward to diff against")

	// a round with no orders yields no reward
	require.NoError(t, sim.Advance(ctx))
	reward, err = sim.CalculateReward(ctx)
	require.NoError(t, err)
	assert.Nil(t, reward)
}

func TestSimSettlementFailedOrders(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimConfig{})

	timing, err := sim.Timing(ctx)
	require.NoError(t, err)
	key := timing.CurrentRound.Key()

	// bid below clearing and ask above clearing both fail
	action := types.Action{
		Bids: map[string]types.Order{key: {Quantity: 4, Price: 0.02}},
		Asks: map[string]types.Order{key: {Quantity: 2, Price: 0.50}},
	}
	require.NoError(t, sim.Submit(ctx, action))
	require.NoError(t, sim.Advance(ctx))

	info, err := sim.SettledInfo(ctx, timing.CurrentRound)
	require.NoError(t, err)
	assert.Zero(t, info.BidQuantity)
	assert.Zero(t, info.AskQuantity)

	reward, err := sim.CalculateReward(ctx)
	require.NoError(t, err)
	require.NotNil(t, reward)
	assert.Equal(t, 0.25, reward.UnitCost, "uncleared demand falls back to the grid buy rate")
	assert.Equal(t, 0.03, reward.UnitProfit, "uncleared surplus falls back to the grid sell rate")
}

func TestSimStorage(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimConfig{
		CapacityKWH:     10,
		InitialSoC:      0.5,
		MaxChargeKWH:    3,
		MaxDischargeKWH: -3,
	})
	require.True(t, sim.HasStorage())

	timing, err := sim.Timing(ctx)
	require.NoError(t, err)

	sched, err := sim.CheckSchedule(ctx, timing.CurrentRound)
	require.NoError(t, err)
	assert.Equal(t, -3.0, sched.MaxDischarge)
	assert.Equal(t, 3.0, sched.MaxCharge)
	assert.Equal(t, 0.5, sched.ProjectedSoCEnd)

	var action types.Action
	action.ScheduleBESS(timing.CurrentRound, 2)
	require.NoError(t, sim.Submit(ctx, action))

	sched, err = sim.CheckSchedule(ctx, timing.CurrentRound)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sched.EnergyScheduled)
	assert.InDelta(t, 0.7, sched.ProjectedSoCEnd, 1e-9)

	require.NoError(t, sim.Advance(ctx))
	assert.InDelta(t, 0.7, sim.SoC(), 1e-9)
}

func TestSimStorageLimitsFollowCharge(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimConfig{
		CapacityKWH:     10,
		InitialSoC:      0.95,
		MaxChargeKWH:    3,
		MaxDischargeKWH: -3,
	})

	timing, err := sim.Timing(ctx)
	require.NoError(t, err)

	sched, err := sim.CheckSchedule(ctx, timing.CurrentRound)
	require.NoError(t, err)
	// only half a kWh of headroom left
	assert.InDelta(t, 0.5, sched.MaxCharge, 1e-9)
	assert.Equal(t, -3.0, sched.MaxDischarge)
}
