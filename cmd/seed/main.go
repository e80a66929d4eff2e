package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gridtrader/gridtrader/pkg/log"
	"github.com/gridtrader/gridtrader/pkg/pricetable"
	"github.com/gridtrader/gridtrader/pkg/storage"
	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/levenlabs/go-lflag"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()

	agentID := lflag.String("agent-id", "sma-crossover", "Agent to seed weights for")
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding initial price tables", "agentID", *agentID)

	// Reference prices in dollars per kWh
	const (
		BidPrice = 0.07
		AskPrice = 0.14
	)

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Bids start below the reference bid price, asks above the reference ask
	// price, so the first rounds of learning pull them toward observed
	// clearing prices rather than away.
	bids := pricetable.Generate(BidPrice/2, BidPrice, pricetable.DefaultSeedWindow, rng)
	asks := pricetable.Generate(AskPrice, AskPrice*2, pricetable.DefaultSeedWindow, rng)

	snap := types.WeightsSnapshot{
		Generation: 0,
		RunID:      uuid.NewString(),
		SavedAt:    time.Now().UTC(),
		BidPrices:  bids.Snapshot(),
		AskPrices:  asks.Snapshot(),
	}

	if err := s.SaveWeights(ctx, *agentID, snap); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed weights", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded generation 0 for %s (bid[0]=$%.3f, ask[0]=$%.3f)\n",
		*agentID, bids.Price(0), asks.Price(0))

	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded weights successfully")
}
