package market

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gridtrader/gridtrader/pkg/types"
)

// SimConfig holds the knobs for the simulated market.
type SimConfig struct {
	// Start is the wall time of the first round.
	Start time.Time
	// RoundLength is the duration of one settlement round.
	RoundLength time.Duration
	// Location is the market's local timezone.
	Location *time.Location

	// Physical profile of the simulated participant.
	SolarPeakKW float64
	LoadAvgKW   float64

	// Storage. CapacityKWH of 0 disables the simulated storage entirely.
	CapacityKWH     float64
	InitialSoC      float64
	MaxChargeKWH    float64 // per round, >= 0
	MaxDischargeKWH float64 // per round, <= 0

	// Grid reference prices used when orders fail to clear: energy bought
	// from the grid costs NetBuyPrice, surplus dumped to the grid earns
	// NetSellPrice.
	NetBuyPrice  float64
	NetSellPrice float64
}

func (c *SimConfig) withDefaults() {
	if c.RoundLength == 0 {
		c.RoundLength = time.Minute
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Start.IsZero() {
		c.Start = time.Date(2026, 6, 1, 0, 0, 0, 0, c.Location)
	}
	if c.SolarPeakKW == 0 {
		c.SolarPeakKW = 8.0
	}
	if c.LoadAvgKW == 0 {
		c.LoadAvgKW = 1.5
	}
	if c.NetBuyPrice == 0 {
		c.NetBuyPrice = 0.25
	}
	if c.NetSellPrice == 0 {
		c.NetSellPrice = 0.03
	}
}

// Sim is a deterministic simulated market used for development and
// integration tests. It implements every collaborator interface the trader
// needs: rounds advance one at a time, submitted orders clear against a
// time-of-use clearing price, and rewards derive from what settled.
type Sim struct {
	mu  sync.Mutex
	cfg SimConfig

	round int

	soc       float64
	scheduled map[string]float64

	pending map[string]types.Action
	settled map[string]types.SettledInfo

	lastReward *types.Reward
	prevReward *types.Reward
}

var (
	_ RewardReader   = (*Sim)(nil)
	_ TimingProvider = (*Sim)(nil)
	_ ProfileReader  = (*Sim)(nil)
	_ Ledger         = (*Sim)(nil)
	_ Scheduler      = (*Sim)(nil)
)

// NewSim creates a simulated market.
func NewSim(cfg SimConfig) *Sim {
	cfg.withDefaults()
	return &Sim{
		cfg:       cfg,
		soc:       cfg.InitialSoC,
		scheduled: make(map[string]float64),
		pending:   make(map[string]types.Action),
		settled:   make(map[string]types.SettledInfo),
	}
}

// HasStorage reports whether the simulated participant has storage.
func (s *Sim) HasStorage() bool {
	return s.cfg.CapacityKWH > 0
}

func (s *Sim) interval(round int) types.Interval {
	start := s.cfg.Start.Add(time.Duration(round) * s.cfg.RoundLength)
	return types.Interval{Start: start, End: start.Add(s.cfg.RoundLength)}
}

// Timing implements TimingProvider.
func (s *Sim) Timing(ctx context.Context) (types.Timing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Timing{
		LastDeliver:  s.interval(s.round - 1),
		CurrentRound: s.interval(s.round),
		NextSettle:   s.interval(s.round + 1),
		Location:     s.cfg.Location,
	}, nil
}

// clearingPrice is the market price for a round, a time-of-use shaped curve:
// cheap overnight and mid-day, expensive at the morning and evening peaks.
func (s *Sim) clearingPrice(round types.Interval) float64 {
	hour := round.End.In(s.cfg.Location).Hour()
	switch {
	case hour >= 6 && hour < 9:
		return 0.22
	case hour >= 10 && hour < 15:
		return 0.05
	case hour >= 17 && hour < 21:
		return 0.35
	case hour >= 21:
		return 0.10
	default:
		return 0.08
	}
}

// ReadProfile implements ProfileReader. Solar follows a bell curve centered
// on 13:00 local; load is a base level with a morning and evening bump.
func (s *Sim) ReadProfile(ctx context.Context, round types.Interval) (float64, float64, error) {
	t := round.End.In(s.cfg.Location)
	h := float64(t.Hour()) + float64(t.Minute())/60

	var generation float64
	if h > 6 && h < 19 {
		dist := math.Abs(h - 13.0)
		generation = s.cfg.SolarPeakKW * math.Exp(-(dist*dist)/12.0)
	}

	load := s.cfg.LoadAvgKW
	if h >= 7 && h < 9 {
		load *= 1.8
	} else if h >= 17 && h < 22 {
		load *= 2.2
	}

	scale := s.cfg.RoundLength.Hours()
	return generation * scale, load * scale, nil
}

// CheckSchedule implements Scheduler.
func (s *Sim) CheckSchedule(ctx context.Context, round types.Interval) (types.StorageSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	availableKWH := s.soc * s.cfg.CapacityKWH
	headroomKWH := (1 - s.soc) * s.cfg.CapacityKWH

	scheduled := s.scheduled[round.Key()]
	projected := s.soc
	if s.cfg.CapacityKWH > 0 {
		projected = clampSoC(s.soc + scheduled/s.cfg.CapacityKWH)
	}

	return types.StorageSchedule{
		EnergyScheduled: scheduled,
		MaxDischarge:    math.Max(s.cfg.MaxDischargeKWH, -availableKWH),
		MaxCharge:       math.Min(s.cfg.MaxChargeKWH, headroomKWH),
		ProjectedSoCEnd: projected,
	}, nil
}

// SettledInfo implements Ledger.
func (s *Sim) SettledInfo(ctx context.Context, round types.Interval) (types.SettledInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled[round.Key()], nil
}

// CalculateReward implements RewardReader. Returns nil when nothing settled
// in the last delivered round.
func (s *Sim) CalculateReward(ctx context.Context) (*types.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReward == nil {
		return nil, nil
	}
	r := *s.lastReward
	return &r, nil
}

// SoC returns the current simulated state of charge.
func (s *Sim) SoC() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.soc
}

// Submit records the trader's action set for upcoming rounds.
func (s *Sim) Submit(ctx context.Context, action types.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, qty := range action.BESS {
		s.scheduled[key] = qty
	}
	for key, order := range action.Bids {
		a := s.pending[key]
		if a.Bids == nil {
			a.Bids = make(map[string]types.Order, 1)
		}
		a.Bids[key] = order
		s.pending[key] = a
	}
	for key, order := range action.Asks {
		a := s.pending[key]
		if a.Asks == nil {
			a.Asks = make(map[string]types.Order, 1)
		}
		a.Asks[key] = order
		s.pending[key] = a
	}
	return nil
}

// Advance settles the current round and moves the market to the next one.
// Orders clear in full when their price crosses the round's clearing price:
// bids at or above it, asks at or below it. Uncleared energy falls back to
// the grid reference prices, which is what the reward signal reflects.
func (s *Sim) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	round := s.interval(s.round)
	key := round.Key()
	clearing := s.clearingPrice(round)

	var info types.SettledInfo
	var unitProfit, unitCost float64
	var traded bool

	if a, ok := s.pending[key]; ok {
		if bid, ok := a.Bids[key]; ok {
			traded = true
			if bid.Price >= clearing {
				info.BidQuantity = bid.Quantity
				unitCost = bid.Price
			} else {
				// failed to buy: the shortfall comes from the grid at the
				// high reference rate
				unitCost = s.cfg.NetBuyPrice
			}
		}
		if ask, ok := a.Asks[key]; ok {
			traded = true
			if ask.Price <= clearing {
				info.AskQuantity = ask.Quantity
				unitProfit = ask.Price
			} else {
				// failed to sell: surplus dumps to the grid at the low rate
				unitProfit = s.cfg.NetSellPrice
			}
		}
		delete(s.pending, key)
	}

	s.settled[key] = info

	if traded {
		var profitDiff, costDiff float64
		if s.prevReward != nil {
			profitDiff = unitProfit - s.prevReward.UnitProfit
			costDiff = unitCost - s.prevReward.UnitCost
		}
		r := &types.Reward{
			UnitProfit:     unitProfit,
			UnitProfitDiff: profitDiff,
			UnitCost:       unitCost,
			UnitCostDiff:   costDiff,
		}
		s.prevReward = r
		s.lastReward = r
	} else {
		s.lastReward = nil
	}

	// apply the delivered round's storage schedule to the battery
	if s.cfg.CapacityKWH > 0 {
		if scheduled, ok := s.scheduled[key]; ok {
			s.soc = clampSoC(s.soc + scheduled/s.cfg.CapacityKWH)
			delete(s.scheduled, key)
		}
	}

	s.round++
	return nil
}

func clampSoC(soc float64) float64 {
	if soc < 0 {
		return 0
	}
	if soc > 1 {
		return 1
	}
	return soc
}
