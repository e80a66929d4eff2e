// Package market defines the narrow collaborator interfaces the trader
// depends on, so the learner and action composer never touch a concrete
// market engine.
package market

import (
	"context"

	"github.com/gridtrader/gridtrader/pkg/types"
)

// RewardReader computes the realized profit/cost signal for the round that
// just delivered. A nil reward with a nil error means no trade occurred and
// there is nothing to learn from this round.
type RewardReader interface {
	CalculateReward(ctx context.Context) (*types.Reward, error)
}

// TimingProvider exposes where the market currently is in its settlement
// cycle.
type TimingProvider interface {
	Timing(ctx context.Context) (types.Timing, error)
}

// ProfileReader returns the participant's generation and load for a round.
type ProfileReader interface {
	ReadProfile(ctx context.Context, round types.Interval) (generation, load float64, err error)
}

// Ledger exposes the realized quantities of settled rounds.
type Ledger interface {
	SettledInfo(ctx context.Context, round types.Interval) (types.SettledInfo, error)
}

// Scheduler is the storage collaborator. It reports the scheduled energy,
// the charge/discharge potential, and the projected state of charge for a
// round.
type Scheduler interface {
	CheckSchedule(ctx context.Context, round types.Interval) (types.StorageSchedule, error)
}

// Participant bundles the collaborators handed to a trader at construction.
// Storage is optional; when nil, all storage-aware behavior is disabled.
type Participant struct {
	ID      string
	Rewards RewardReader
	Timing  TimingProvider
	Profile ProfileReader
	Ledger  Ledger
	Storage Scheduler
}
