package pricetable

import (
	"math/rand"
	"testing"

	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tbl := Generate(0.05, 0.20, 15, rng)

	for m := 0; m < types.MinutesPerDay; m++ {
		e := tbl.Entry(m)
		assert.GreaterOrEqual(t, e.Price, 0.05)
		assert.LessOrEqual(t, e.Price, 0.20)
		assert.Zero(t, e.LastSignal)
	}

	// every minute within a chunk shares the chunk's initial price
	for chunk := 0; chunk < types.MinutesPerDay/15; chunk++ {
		first := tbl.Price(chunk * 15)
		for m := chunk * 15; m < (chunk+1)*15; m++ {
			assert.Equal(t, first, tbl.Price(m), "minute %d should match chunk %d", m, chunk)
		}
	}
}

func TestGenerateUnorderedReferencePrices(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tbl := Generate(0.20, 0.05, 15, rng)
	for m := 0; m < types.MinutesPerDay; m++ {
		p := tbl.Price(m)
		assert.GreaterOrEqual(t, p, 0.05)
		assert.LessOrEqual(t, p, 0.20)
	}
}

func TestGenerateSubCentBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	// bounds not aligned to whole cents must still contain every price
	tbl := Generate(0.071, 0.139, 15, rng)
	for m := 0; m < types.MinutesPerDay; m++ {
		p := tbl.Price(m)
		assert.GreaterOrEqual(t, p, 0.071)
		assert.LessOrEqual(t, p, 0.139)
	}

	// a range narrower than a cent seeds flat at its midpoint
	tbl = Generate(0.071, 0.074, 15, rng)
	for m := 0; m < types.MinutesPerDay; m++ {
		assert.InDelta(t, 0.0725, tbl.Price(m), 1e-12)
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	a := Generate(0.05, 0.20, 15, rand.New(rand.NewSource(7)))
	b := Generate(0.05, 0.20, 15, rand.New(rand.NewSource(7)))
	assert.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestGenerateUnevenWindow(t *testing.T) {
	// 1440 % 100 = 40: the trailing 40 minutes reuse the last chunk's price
	rng := rand.New(rand.NewSource(3))
	tbl := Generate(0.05, 0.20, 100, rng)
	last := tbl.Price(1399)
	for m := 1400; m < types.MinutesPerDay; m++ {
		assert.Equal(t, last, tbl.Price(m))
	}
}

func TestApplyProfit(t *testing.T) {
	const step = DefaultStep

	t.Run("profit not improving pulls toward realized profit", func(t *testing.T) {
		tbl := &Table{}
		tbl.entries[100] = Entry{Price: 0.15}

		// realized profit far below the price: clamp at one step down
		tbl.ApplyProfit(100, 0.05, -0.01, step)
		e := tbl.Entry(100)
		assert.InDelta(t, 0.15-step, e.Price, 1e-12)
		assert.Equal(t, -0.01, e.LastSignal)

		// realized profit within one step: snap to it exactly
		tbl.entries[100] = Entry{Price: 0.15}
		tbl.ApplyProfit(100, 0.1495, 0, step)
		assert.InDelta(t, 0.1495, tbl.Price(100), 1e-12)
	})

	t.Run("improving trend steps up", func(t *testing.T) {
		tbl := &Table{}
		tbl.entries[100] = Entry{Price: 0.15, LastSignal: 0.01}
		tbl.ApplyProfit(100, 0.2, 0.02, step)
		assert.InDelta(t, 0.15+step, tbl.Price(100), 1e-12)
	})

	t.Run("weakening trend steps down", func(t *testing.T) {
		tbl := &Table{}
		tbl.entries[100] = Entry{Price: 0.15, LastSignal: 0.03}
		tbl.ApplyProfit(100, 0.2, 0.02, step)
		assert.InDelta(t, 0.15-step, tbl.Price(100), 1e-12)
	})

	t.Run("clamp lower bound", func(t *testing.T) {
		// new price is never below both unitProfit and price-step
		tbl := &Table{}
		tbl.entries[5] = Entry{Price: 0.10}
		tbl.ApplyProfit(5, 0.02, -0.5, step)
		p := tbl.Price(5)
		assert.GreaterOrEqual(t, p, 0.02)
		assert.GreaterOrEqual(t, p, 0.10-step-1e-12)
	})
}

func TestApplyCost(t *testing.T) {
	const step = DefaultStep

	t.Run("cost not improving pushes toward realized cost", func(t *testing.T) {
		tbl := &Table{}
		tbl.entries[200] = Entry{Price: 0.08}

		// realized cost far above the price: capped at one step up
		tbl.ApplyCost(200, 0.20, 0.01, step)
		e := tbl.Entry(200)
		assert.InDelta(t, 0.08+step, e.Price, 1e-12)
		assert.Equal(t, 0.01, e.LastSignal)

		// realized cost within one step: snap to it exactly
		tbl.entries[200] = Entry{Price: 0.08}
		tbl.ApplyCost(200, 0.0805, 0, step)
		assert.InDelta(t, 0.0805, tbl.Price(200), 1e-12)
	})

	t.Run("improving trend steps down", func(t *testing.T) {
		tbl := &Table{}
		tbl.entries[200] = Entry{Price: 0.08, LastSignal: -0.03}
		tbl.ApplyCost(200, 0.05, -0.02, step)
		assert.InDelta(t, 0.08-step, tbl.Price(200), 1e-12)
	})

	t.Run("weakening trend steps up", func(t *testing.T) {
		tbl := &Table{}
		tbl.entries[200] = Entry{Price: 0.08, LastSignal: -0.01}
		tbl.ApplyCost(200, 0.05, -0.02, step)
		assert.InDelta(t, 0.08+step, tbl.Price(200), 1e-12)
	})
}

func TestSnapshotRestore(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	tbl := Generate(0.05, 0.20, 15, rng)
	tbl.ApplyProfit(30, 0.1, 0.02, DefaultStep)

	snap := tbl.Snapshot()
	require.Len(t, snap, types.MinutesPerDay)

	restored := &Table{}
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, tbl.Snapshot(), restored.Snapshot())
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	tbl := &Table{}

	assert.Error(t, tbl.Restore(nil))

	snap := (&Table{}).Snapshot()
	snap[10].Minute = 11 // duplicate
	assert.Error(t, tbl.Restore(snap))

	snap = (&Table{}).Snapshot()
	snap[0].Minute = types.MinutesPerDay
	assert.Error(t, tbl.Restore(snap))
}
