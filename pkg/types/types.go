package types

import "time"

const (
	CurrentWeightsVersion = 1
	CurrentMetricsVersion = 1

	// MinutesPerDay is the number of price slots in a learned price table.
	MinutesPerDay = 1440
)

// Interval identifies one settlement round as a half-open [Start, End) window.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Key returns a stable string key for the interval, usable as a map key and
// as a document ID for lexicographic range queries.
func (i Interval) Key() string {
	return i.Start.UTC().Format(time.RFC3339) + "_" + i.End.UTC().Format(time.RFC3339)
}

// MinuteOfDay returns the minute-of-day index in [0, 1439] for the end of the
// interval in the given location. A nil location is treated as UTC.
func (i Interval) MinuteOfDay(loc *time.Location) int {
	t := i.End
	if loc != nil {
		t = t.In(loc)
	}
	return t.Hour()*60 + t.Minute()
}

// Timing describes where the market currently is in its settlement cycle.
type Timing struct {
	// LastDeliver is the round that just finished delivering, i.e. the round
	// whose rewards are available to learn from.
	LastDeliver Interval `json:"lastDeliver"`
	// CurrentRound is the round currently settling.
	CurrentRound Interval `json:"currentRound"`
	// NextSettle is the round actions submitted now will apply to.
	NextSettle Interval `json:"nextSettle"`
	// Location is the market's local timezone, used to derive minute-of-day
	// indexes into the price tables.
	Location *time.Location `json:"-"`
}

// Reward is the realized profit/cost signal for the round that just
// delivered, computed by the market's reward calculator.
type Reward struct {
	UnitProfit     float64 `json:"unitProfit"`
	UnitProfitDiff float64 `json:"unitProfitDiff"`
	UnitCost       float64 `json:"unitCost"`
	UnitCostDiff   float64 `json:"unitCostDiff"`
}

// Order is a single bid or ask submitted for a settlement round.
type Order struct {
	Quantity float64 `json:"quantity"`
	Source   string  `json:"source"`
	Price    float64 `json:"price"`
}

// Action is the full intent set produced for a round: optional storage
// schedule overrides plus optional bids and asks, each keyed by the
// settlement interval they apply to.
type Action struct {
	// BESS maps interval keys to scheduled storage quantities.
	// Positive charges, negative discharges.
	BESS map[string]float64 `json:"bess,omitempty"`
	Bids map[string]Order   `json:"bids,omitempty"`
	Asks map[string]Order   `json:"asks,omitempty"`
}

// ScheduleBESS records a storage quantity for the given interval, allocating
// the map on first use.
func (a *Action) ScheduleBESS(i Interval, quantity float64) {
	if a.BESS == nil {
		a.BESS = make(map[string]float64, 2)
	}
	a.BESS[i.Key()] = quantity
}

// StorageSchedule is the storage collaborator's view of one settlement round.
type StorageSchedule struct {
	// EnergyScheduled is the currently scheduled quantity for the round.
	// Positive charges, negative discharges.
	EnergyScheduled float64 `json:"energyScheduled"`
	// MaxDischarge is the maximum dischargeable energy for the round, <= 0.
	MaxDischarge float64 `json:"maxDischarge"`
	// MaxCharge is the maximum chargeable energy for the round, >= 0.
	MaxCharge float64 `json:"maxCharge"`
	// ProjectedSoCEnd is the projected state of charge at the end of the
	// round, in [0, 1].
	ProjectedSoCEnd float64 `json:"projectedSoCEnd"`
}

// SettledInfo holds the realized quantities for a round after clearing.
type SettledInfo struct {
	BidQuantity float64 `json:"bidQuantity"`
	AskQuantity float64 `json:"askQuantity"`
}

// SlotWeight is one learned price-table slot in a persisted snapshot.
type SlotWeight struct {
	Minute     int     `json:"minute"`
	Price      float64 `json:"price"`
	LastSignal float64 `json:"lastSignal"`
}

// WeightsSnapshot is a persisted copy of both learned price tables, tagged
// with the episode generation that produced it.
type WeightsSnapshot struct {
	Generation int          `json:"generation"`
	RunID      string       `json:"runID"`
	SavedAt    time.Time    `json:"savedAt"`
	BidPrices  []SlotWeight `json:"bidPrices"`
	AskPrices  []SlotWeight `json:"askPrices"`
}

// MetricSample is a single named telemetry sample.
type MetricSample struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
}
