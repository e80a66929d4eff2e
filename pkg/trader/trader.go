// Package trader implements a price-learning market participant. It keeps
// one learned price per minute of the day for each side of the book, nudges
// those prices from realized profit/cost signals after every settlement, and
// derives charge/discharge and buy/sell decisions from the crossover of
// short- and long-window averages of the learned prices.
package trader

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gridtrader/gridtrader/pkg/log"
	"github.com/gridtrader/gridtrader/pkg/market"
	"github.com/gridtrader/gridtrader/pkg/metrics"
	"github.com/gridtrader/gridtrader/pkg/pricetable"
	"github.com/gridtrader/gridtrader/pkg/storage"
	"github.com/gridtrader/gridtrader/pkg/trend"
	"github.com/gridtrader/gridtrader/pkg/types"
)

const (
	// SourceSolar tags every order this trader submits: all quantities go
	// into the solar pool, with storage compensation used for discharging.
	SourceSolar = "solar"

	defaultSMAWindow = 23
	defaultLMAWindow = 50
)

// Options configures a Trader at construction.
type Options struct {
	// BidPrice and AskPrice are the reference prices bounding the random
	// seeding of both price tables.
	BidPrice float64
	AskPrice float64

	// Step is the per-round price adjustment. 0 uses pricetable.DefaultStep.
	Step float64
	// SeedWindow is the chunk size in minutes for table seeding. 0 uses
	// pricetable.DefaultSeedWindow.
	SeedWindow int
	// SMAWindow and LMAWindow are the short and long tracker windows. 0 uses
	// 23 and 50 respectively.
	SMAWindow int
	LMAWindow int

	// Learning enables the price learner. When false, Learn is a no-op.
	Learning bool
	// TrackMetrics enables telemetry recording.
	TrackMetrics bool

	// Rand seeds the price tables. nil uses a time-seeded source.
	Rand *rand.Rand

	// DB receives weight snapshots and telemetry. nil disables both.
	DB storage.Database
}

// Trader is a single market participant. The external scheduler invokes
// Learn and Act strictly sequentially, but the debug server reads trader
// state from its own goroutine, so mu guards the tables, trackers and
// trigger state. Learn and Act only hold it across their in-memory updates,
// never across a collaborator call.
type Trader struct {
	participant market.Participant
	db          storage.Database
	learning    bool
	step        float64
	runID       string

	mu        sync.RWMutex
	bidPrices *pricetable.Table
	askPrices *pricetable.Table

	smaBid *trend.Tracker
	lmaBid *trend.Tracker
	smaAsk *trend.Tracker
	lmaAsk *trend.Tracker

	triggers trend.Triggers

	recorder *metrics.Recorder
	saveWG   sync.WaitGroup
}

// New constructs a Trader around the given collaborator bundle.
func New(p market.Participant, opts Options) *Trader {
	step := opts.Step
	if step == 0 {
		step = pricetable.DefaultStep
	}
	seedWindow := opts.SeedWindow
	if seedWindow == 0 {
		seedWindow = pricetable.DefaultSeedWindow
	}
	smaWindow := opts.SMAWindow
	if smaWindow == 0 {
		smaWindow = defaultSMAWindow
	}
	lmaWindow := opts.LMAWindow
	if lmaWindow == 0 {
		lmaWindow = defaultLMAWindow
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	t := &Trader{
		participant: p,
		db:          opts.DB,
		learning:    opts.Learning,
		step:        step,
		runID:       uuid.NewString(),
		bidPrices:   pricetable.Generate(opts.BidPrice, opts.AskPrice, seedWindow, rng),
		askPrices:   pricetable.Generate(opts.BidPrice, opts.AskPrice, seedWindow, rng),
		smaBid:      trend.NewTracker(smaWindow),
		lmaBid:      trend.NewTracker(lmaWindow),
		smaAsk:      trend.NewTracker(smaWindow),
		lmaAsk:      trend.NewTracker(lmaWindow),
		recorder:    metrics.NewRecorder(p.ID, opts.DB, opts.TrackMetrics),
	}

	if t.recorder.Enabled() {
		t.recorder.Add("timestamp")
		t.recorder.Add("actions")
		t.recorder.Add("next_settle_load")
		t.recorder.Add("next_settle_generation")
		if p.Storage != nil {
			t.recorder.Add("storage_soc")
		}
	}
	return t
}

// ID returns the participant ID the trader acts as.
func (t *Trader) ID() string {
	return t.participant.ID
}

// Triggers returns the trigger state computed by the last Act.
func (t *Trader) Triggers() trend.Triggers {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.triggers
}

// BidPrice returns the learned bid price for a minute of day.
func (t *Trader) BidPrice(minute int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bidPrices.Price(minute)
}

// AskPrice returns the learned ask price for a minute of day.
func (t *Trader) AskPrice(minute int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.askPrices.Price(minute)
}

// Snapshot returns a persisted-form copy of both price tables, tagged with
// the given generation.
func (t *Trader) Snapshot(generation int) types.WeightsSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return types.WeightsSnapshot{
		Generation: generation,
		RunID:      t.runID,
		SavedAt:    time.Now().UTC(),
		BidPrices:  t.bidPrices.Snapshot(),
		AskPrices:  t.askPrices.Snapshot(),
	}
}

// RestoreWeights loads a previously saved snapshot into both price tables.
func (t *Trader) RestoreWeights(snap types.WeightsSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.bidPrices.Restore(snap.BidPrices); err != nil {
		return fmt.Errorf("restoring bid prices: %w", err)
	}
	if err := t.askPrices.Restore(snap.AskPrices); err != nil {
		return fmt.Errorf("restoring ask prices: %w", err)
	}
	return nil
}

// Learn updates one slot of each price table from the reward of the round
// that just delivered, then folds the new slot prices into the trend
// trackers. It is a no-op when learning is disabled or when the reward
// calculator has nothing to report.
func (t *Trader) Learn(ctx context.Context) error {
	if !t.learning {
		return nil
	}

	reward, err := t.participant.Rewards.CalculateReward(ctx)
	if err != nil {
		return fmt.Errorf("calculating reward: %w", err)
	}
	if reward == nil {
		// no trade happened in the delivered round, nothing to learn
		mtxLearnSkipped.Inc()
		return nil
	}

	timing, err := t.participant.Timing.Timing(ctx)
	if err != nil {
		return fmt.Errorf("fetching timing: %w", err)
	}
	minute := timing.LastDeliver.MinuteOfDay(timing.Location)

	t.mu.Lock()
	t.askPrices.ApplyProfit(minute, reward.UnitProfit, reward.UnitProfitDiff, t.step)
	t.bidPrices.ApplyCost(minute, reward.UnitCost, reward.UnitCostDiff, t.step)

	bidPrice := t.bidPrices.Price(minute)
	askPrice := t.askPrices.Price(minute)
	t.smaBid.Update(bidPrice)
	t.lmaBid.Update(bidPrice)
	t.smaAsk.Update(askPrice)
	t.lmaAsk.Update(askPrice)
	t.mu.Unlock()

	mtxRoundsLearned.Inc()
	log.Ctx(ctx).DebugContext(ctx, "price slot updated",
		slog.Int("minute", minute),
		slog.Float64("bidPrice", bidPrice),
		slog.Float64("askPrice", askPrice),
		slog.Float64("unitProfit", reward.UnitProfit),
		slog.Float64("unitCost", reward.UnitCost),
	)
	return nil
}

// Act composes the action set for the next settlement round: storage
// schedule corrections for the round currently settling, a storage override
// for the next round, and bids/asks priced from the learned tables.
func (t *Trader) Act(ctx context.Context) (types.Action, error) {
	var action types.Action

	timing, err := t.participant.Timing.Timing(ctx)
	if err != nil {
		return action, fmt.Errorf("fetching timing: %w", err)
	}
	nextSettle := timing.NextSettle
	minute := nextSettle.MinuteOfDay(timing.Location)

	nextGeneration, nextLoad, err := t.participant.Profile.ReadProfile(ctx, nextSettle)
	if err != nil {
		return action, fmt.Errorf("reading next settle profile: %w", err)
	}
	residualLoad := nextLoad - nextGeneration
	residualGeneration := -residualLoad

	hasStorage := t.participant.Storage != nil
	var nextSchedule types.StorageSchedule
	var projectedSoC float64
	if hasStorage {
		if err := t.reconcileSchedule(ctx, timing.CurrentRound, &action); err != nil {
			return action, err
		}

		nextSchedule, err = t.participant.Storage.CheckSchedule(ctx, nextSettle)
		if err != nil {
			return action, fmt.Errorf("checking next settle schedule: %w", err)
		}
		projectedSoC = nextSchedule.ProjectedSoCEnd
		gaugeProjectedSoC.Set(projectedSoC)
	}

	t.mu.Lock()
	if residualLoad > 0 {
		var maxCharge, effectiveDischarge, residualDischarge float64
		triggers := t.triggers
		if hasStorage {
			maxCharge = nextSchedule.MaxCharge
			maxDischarge := nextSchedule.MaxDischarge
			// discharge covers the residual load, up to the discharge limit
			effectiveDischarge = math.Max(-math.Max(0, residualLoad), maxDischarge)
			residualDischarge = maxDischarge - effectiveDischarge

			triggers = trend.Crossover(t.smaBid, t.lmaBid, t.smaAsk, t.lmaAsk, projectedSoC)
			t.triggers = triggers

			action.ScheduleBESS(nextSettle, effectiveDischarge)
		} else {
			// no storage: triggers stay off and only the plain bid below is
			// reachable
			triggers = trend.Triggers{}
		}

		if triggers.Buy {
			// buy enough to cover the load and fill the battery
			t.placeBid(&action, nextSettle, residualLoad+maxCharge, minute)
			action.ScheduleBESS(nextSettle, maxCharge)
		} else {
			finalResidualLoad := residualLoad + effectiveDischarge
			if finalResidualLoad > 0 {
				t.placeBid(&action, nextSettle, finalResidualLoad, minute)
			} else if residualDischarge < 0 && triggers.Sell {
				// discharge capacity to spare: sell stored energy back
				t.placeAsk(&action, nextSettle, math.Abs(residualDischarge), minute)
			}
		}
	} else if residualGeneration > 0 {
		// net producer: storage is deliberately ignored on this branch even
		// when present; all surplus generation goes to market
		t.placeAsk(&action, nextSettle, residualGeneration, minute)
	}
	t.mu.Unlock()

	t.trackRound(ctx, timing, action, nextLoad, nextGeneration, projectedSoC, hasStorage)
	return action, nil
}

// reconcileSchedule corrects the storage schedule of the round currently
// settling against what actually cleared: scheduled charge cannot exceed
// what was bought beyond the round's own load, and scheduled discharge grows
// to cover what was sold.
func (t *Trader) reconcileSchedule(ctx context.Context, current types.Interval, action *types.Action) error {
	generation, load, err := t.participant.Profile.ReadProfile(ctx, current)
	if err != nil {
		return fmt.Errorf("reading current round profile: %w", err)
	}
	residualLoad := load - generation

	schedule, err := t.participant.Storage.CheckSchedule(ctx, current)
	if err != nil {
		return fmt.Errorf("checking current round schedule: %w", err)
	}

	settled, err := t.participant.Ledger.SettledInfo(ctx, current)
	if err != nil {
		return fmt.Errorf("fetching settled info: %w", err)
	}

	if schedule.EnergyScheduled > 0 {
		quantity := math.Min(schedule.EnergyScheduled,
			math.Max(0, settled.BidQuantity-math.Max(0, residualLoad)))
		action.ScheduleBESS(current, quantity)
	} else if schedule.EnergyScheduled < 0 {
		quantity := schedule.EnergyScheduled - settled.AskQuantity
		action.ScheduleBESS(current, quantity)
	}
	return nil
}

func (t *Trader) placeBid(action *types.Action, round types.Interval, quantity float64, minute int) {
	if action.Bids == nil {
		action.Bids = make(map[string]types.Order, 1)
	}
	action.Bids[round.Key()] = types.Order{
		Quantity: quantity,
		Source:   SourceSolar,
		Price:    t.bidPrices.Price(minute),
	}
	mtxOrders.WithLabelValues("bid").Inc()
}

func (t *Trader) placeAsk(action *types.Action, round types.Interval, quantity float64, minute int) {
	if action.Asks == nil {
		action.Asks = make(map[string]types.Order, 1)
	}
	action.Asks[round.Key()] = types.Order{
		Quantity: quantity,
		Source:   SourceSolar,
		Price:    t.askPrices.Price(minute),
	}
	mtxOrders.WithLabelValues("ask").Inc()
}

// trackRound records the round's telemetry. Failures here never block
// action delivery.
func (t *Trader) trackRound(ctx context.Context, timing types.Timing, action types.Action, load, generation, projectedSoC float64, hasStorage bool) {
	if !t.recorder.Enabled() {
		return
	}

	track := func(name string, value any) {
		if err := t.recorder.Track(name, value); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to track metric", slog.String("name", name), slog.Any("err", err))
		}
	}
	track("timestamp", timing.CurrentRound.End.Unix())
	track("actions", action)
	track("next_settle_load", load)
	track("next_settle_generation", generation)
	if hasStorage {
		track("storage_soc", projectedSoC)
	}
	t.recorder.Save(ctx, metrics.DefaultBatchSize)
}

// SaveOptions identifies the episode a weights save belongs to.
type SaveOptions struct {
	// MarketID is the episode's market identifier. Validation episodes skip
	// persistence entirely.
	MarketID string
	// Generation is the episode/generation counter tagging the snapshot.
	Generation int
}

// SaveWeights serializes both price tables and dispatches the write without
// waiting for it to complete. It reports success immediately; an eventual
// write failure is logged only. During validation episodes no I/O happens at
// all.
func (t *Trader) SaveWeights(ctx context.Context, opts SaveOptions) (bool, error) {
	if strings.Contains(opts.MarketID, "validation") {
		return true, nil
	}
	if t.db == nil {
		return false, fmt.Errorf("no database configured")
	}

	snap := t.Snapshot(opts.Generation)
	t.saveWG.Add(1)
	go func() {
		defer t.saveWG.Done()
		// detached from the caller's cancellation, the episode moves on
		if err := t.db.SaveWeights(context.WithoutCancel(ctx), t.participant.ID, snap); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to save weights",
				slog.String("agentID", t.participant.ID),
				slog.Int("generation", opts.Generation),
				slog.Any("err", err),
			)
			return
		}
		mtxWeightsSaves.Inc()
	}()
	return true, nil
}

// Wait blocks until all in-flight weight saves and telemetry flushes finish.
// Used on shutdown and in tests.
func (t *Trader) Wait() {
	t.saveWG.Wait()
	t.recorder.Wait()
}

// Reset clears all four trackers' running state between episodes. The
// learned price tables survive resets.
func (t *Trader) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.smaBid.Reset()
	t.lmaBid.Reset()
	t.smaAsk.Reset()
	t.lmaAsk.Reset()
	t.triggers = trend.Triggers{}
	return nil
}
