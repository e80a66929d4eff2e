// Package pricetable implements the time-of-day-indexed adaptive price store
// and the hill-climbing rules that tune it from realized profit and cost
// signals.
package pricetable

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gridtrader/gridtrader/pkg/types"
)

const (
	// DefaultStep is the per-round price adjustment, a tenth of a cent per kWh.
	DefaultStep = 0.001
	// DefaultSeedWindow is the chunk size in minutes used when seeding a
	// fresh table, so only 96 initial prices are drawn instead of 1440.
	// This keeps initial noise down.
	DefaultSeedWindow = 15
)

// Entry is one learned price slot plus the signal stored from the last
// learning round for that slot.
type Entry struct {
	Price      float64 `json:"price"`
	LastSignal float64 `json:"lastSignal"`
}

// Table holds one learned price per minute of the day. A Table always has
// exactly 1440 contiguous slots.
type Table struct {
	entries [types.MinutesPerDay]Entry
}

// Generate seeds a new table with random prices drawn uniformly between the
// two reference prices, which need not be ordered. Prices are drawn at cent
// resolution and only from whole cents inside the reference range, so a
// non-cent-aligned bound is never overshot; a range narrower than a cent
// seeds flat at its midpoint. One price is drawn per window-sized chunk of
// minutes; any remainder minutes past the last full chunk reuse the last
// chunk's price.
func Generate(minPrice, maxPrice float64, window int, rng *rand.Rand) *Table {
	if window <= 0 {
		window = DefaultSeedWindow
	}
	if minPrice > maxPrice {
		minPrice, maxPrice = maxPrice, minPrice
	}
	lo := int(math.Ceil(minPrice*100 - 1e-9))
	hi := int(math.Floor(maxPrice*100 + 1e-9))

	chunks := types.MinutesPerDay / window
	if chunks == 0 {
		chunks = 1
	}
	chunkPrices := make([]float64, chunks)
	for i := range chunkPrices {
		if hi < lo {
			chunkPrices[i] = (minPrice + maxPrice) / 2
		} else {
			chunkPrices[i] = float64(lo+rng.Intn(hi-lo+1)) / 100
		}
	}

	t := &Table{}
	for m := 0; m < types.MinutesPerDay; m++ {
		c := m / window
		if c >= chunks {
			c = chunks - 1
		}
		t.entries[m].Price = chunkPrices[c]
	}
	return t
}

func checkMinute(minute int) {
	if minute < 0 || minute >= types.MinutesPerDay {
		panic(fmt.Sprintf("pricetable: minute %d out of range", minute))
	}
}

// Price returns the learned price for the given minute of day.
func (t *Table) Price(minute int) float64 {
	checkMinute(minute)
	return t.entries[minute].Price
}

// Entry returns the full slot for the given minute of day.
func (t *Table) Entry(minute int) Entry {
	checkMinute(minute)
	return t.entries[minute]
}

// ApplyProfit updates the slot for an ask (selling) price from the realized
// unit profit of the round that just delivered.
//
// If profit is not improving, the price is pulled down toward the realized
// unit profit but never more than one step below its current value, so a
// single bad round cannot overshoot. If profit is improving, the price keeps
// moving in the direction of the trend: up by one step while the profit
// trend itself is still strengthening versus the slot's stored signal, down
// by one step once it weakens. The new profit diff is stored as the slot's
// signal for the next round.
func (t *Table) ApplyProfit(minute int, unitProfit, unitProfitDiff, step float64) {
	checkMinute(minute)
	e := &t.entries[minute]

	if unitProfitDiff <= 0 {
		e.Price = max(unitProfit, e.Price-step)
	} else if unitProfitDiff-e.LastSignal > 0 {
		e.Price += step
	} else {
		e.Price -= step
	}
	e.LastSignal = unitProfitDiff
}

// ApplyCost updates the slot for a bid (buying) price from the realized unit
// cost of the round that just delivered. It is the mirror image of
// ApplyProfit: costs are minimized instead of profits maximized, so every
// inequality and step direction is inverted.
func (t *Table) ApplyCost(minute int, unitCost, unitCostDiff, step float64) {
	checkMinute(minute)
	e := &t.entries[minute]

	if unitCostDiff >= 0 {
		e.Price = min(unitCost, e.Price+step)
	} else if unitCostDiff-e.LastSignal > 0 {
		e.Price -= step
	} else {
		e.Price += step
	}
	e.LastSignal = unitCostDiff
}

// Snapshot copies the table into its persisted form.
func (t *Table) Snapshot() []types.SlotWeight {
	weights := make([]types.SlotWeight, types.MinutesPerDay)
	for m, e := range t.entries {
		weights[m] = types.SlotWeight{Minute: m, Price: e.Price, LastSignal: e.LastSignal}
	}
	return weights
}

// Restore loads a persisted snapshot back into the table. Every one of the
// 1440 minutes must be present exactly once.
func (t *Table) Restore(weights []types.SlotWeight) error {
	if len(weights) != types.MinutesPerDay {
		return fmt.Errorf("pricetable: expected %d slots, got %d", types.MinutesPerDay, len(weights))
	}
	var entries [types.MinutesPerDay]Entry
	seen := make(map[int]bool, types.MinutesPerDay)
	for _, w := range weights {
		if w.Minute < 0 || w.Minute >= types.MinutesPerDay {
			return fmt.Errorf("pricetable: slot minute %d out of range", w.Minute)
		}
		if seen[w.Minute] {
			return fmt.Errorf("pricetable: duplicate slot for minute %d", w.Minute)
		}
		seen[w.Minute] = true
		entries[w.Minute] = Entry{Price: w.Price, LastSignal: w.LastSignal}
	}
	t.entries = entries
	return nil
}
