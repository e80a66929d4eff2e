package trend

const (
	// maxChargeSoC is the projected state of charge above which buying to
	// charge is pointless.
	maxChargeSoC = 0.9
	// minDischargeSoC is the projected state of charge below which selling
	// from storage is not allowed.
	minDischargeSoC = 0.3
)

// Triggers is the per-round buy/sell decision derived from the crossover of
// the short- and long-window price averages, gated by projected state of
// charge.
type Triggers struct {
	Buy  bool
	Sell bool
}

// Crossover evaluates the trigger state from the four trackers and the
// projected state of charge at the end of the next settlement round.
//
// Buy triggers when the short bid average drops below the long bid average
// (bid prices falling, supply abundant) and there is room to charge. Sell
// triggers when the short ask average meets or exceeds the long ask average
// (ask prices rising, demand growing) and there is charge to spare. If both
// trigger at once, sell wins and buy is dropped.
func Crossover(smaBid, lmaBid, smaAsk, lmaAsk *Tracker, projectedSoC float64) Triggers {
	var t Triggers
	if smaBid.Average() < lmaBid.Average() && projectedSoC < maxChargeSoC {
		t.Buy = true
	}
	if smaAsk.Average() >= lmaAsk.Average() && projectedSoC > minDischargeSoC {
		t.Sell = true
	}
	if t.Buy && t.Sell {
		t.Buy = false
	}
	return t
}
