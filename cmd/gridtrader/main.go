package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridtrader/gridtrader/pkg/config"
	"github.com/gridtrader/gridtrader/pkg/log"
	"github.com/gridtrader/gridtrader/pkg/market"
	"github.com/gridtrader/gridtrader/pkg/server"
	"github.com/gridtrader/gridtrader/pkg/storage"
	"github.com/gridtrader/gridtrader/pkg/trader"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	s := storage.Configured()

	configPath := lflag.String("config", "", "Path to the YAML agent/sim config")
	httpListen := lflag.String("http-listen", defaultListenAddr(), "HTTP listen address for the debug server")
	marketID := lflag.String("market-id", "training", "Market identifier tagged onto weight saves; validation markets skip persistence")
	episodes := 1
	lflag.JSON(&episodes, "episodes", episodes, "Number of episodes to run (0 runs forever)")
	roundsPerEpisode := 1440
	lflag.JSON(&roundsPerEpisode, "rounds-per-episode", roundsPerEpisode, "Settlement rounds per episode")
	roundDelay := lflag.Duration("round-delay", 0, "Optional delay between rounds")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load config", "error", err)
			os.Exit(1)
		}
	}

	loc, err := time.LoadLocation(cfg.Sim.Timezone)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load timezone", "error", err)
		os.Exit(1)
	}

	sim := market.NewSim(market.SimConfig{
		RoundLength:     time.Duration(cfg.Sim.RoundLength),
		Location:        loc,
		SolarPeakKW:     cfg.Sim.SolarPeakKW,
		LoadAvgKW:       cfg.Sim.LoadAvgKW,
		CapacityKWH:     cfg.Sim.CapacityKWH,
		InitialSoC:      cfg.Sim.InitialSoC,
		MaxChargeKWH:    cfg.Sim.MaxChargeKWH,
		MaxDischargeKWH: cfg.Sim.MaxDischargeKWH,
	})

	participant := market.Participant{
		ID:      cfg.Agent.ID,
		Rewards: sim,
		Timing:  sim,
		Profile: sim,
		Ledger:  sim,
	}
	if sim.HasStorage() {
		participant.Storage = sim
	}

	t := trader.New(participant, trader.Options{
		BidPrice:     cfg.Agent.BidPrice,
		AskPrice:     cfg.Agent.AskPrice,
		Step:         cfg.Agent.Step,
		SeedWindow:   cfg.Agent.SeedWindow,
		SMAWindow:    cfg.Agent.SMAWindow,
		LMAWindow:    cfg.Agent.LMAWindow,
		Learning:     cfg.Agent.Learning,
		TrackMetrics: cfg.Agent.TrackMetrics,
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		DB:           s,
	})

	// resume from the latest saved snapshot when one exists
	if snap, err := s.GetLatestWeights(ctx, cfg.Agent.ID); err == nil {
		if err := t.RestoreWeights(snap); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to restore weights", "error", err)
			os.Exit(1)
		}
		log.Ctx(ctx).InfoContext(ctx, "restored weights",
			slog.Int("generation", snap.Generation),
			slog.String("runID", snap.RunID),
		)
	} else if !errors.Is(err, storage.ErrWeightsNotFound) {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch latest weights", "error", err)
		os.Exit(1)
	}

	srv := server.New(t, *httpListen)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Run(ctx)
	}()

	if err := runEpisodes(ctx, t, sim, *marketID, episodes, roundsPerEpisode, *roundDelay); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "trader failed", "error", err)
		os.Exit(1)
	}

	// wait for any in-flight saves before shutting down
	t.Wait()
	cancel()
	if err := <-srvErr; err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "trader exited cleanly")
}

// defaultListenAddr mirrors the cloud-run convention of honoring PORT.
func defaultListenAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

// runEpisodes drives the strictly sequential round loop: Learn for the
// delivered round, Act for the next settlement, then advance the market.
func runEpisodes(ctx context.Context, t *trader.Trader, sim *market.Sim, marketID string, episodes, roundsPerEpisode int, roundDelay time.Duration) error {
	for episode := 0; episodes == 0 || episode < episodes; episode++ {
		epCtx := log.WithAttrs(ctx, slog.Int("episode", episode))
		for round := 0; round < roundsPerEpisode; round++ {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if err := t.Learn(epCtx); err != nil {
				return fmt.Errorf("learn failed (episode %d round %d): %w", episode, round, err)
			}
			action, err := t.Act(epCtx)
			if err != nil {
				return fmt.Errorf("act failed (episode %d round %d): %w", episode, round, err)
			}
			if err := sim.Submit(epCtx, action); err != nil {
				return fmt.Errorf("submit failed (episode %d round %d): %w", episode, round, err)
			}
			if err := sim.Advance(epCtx); err != nil {
				return fmt.Errorf("advance failed (episode %d round %d): %w", episode, round, err)
			}

			if roundDelay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(roundDelay):
				}
			}
		}

		if _, err := t.SaveWeights(epCtx, trader.SaveOptions{MarketID: marketID, Generation: episode}); err != nil {
			return fmt.Errorf("saving weights (episode %d): %w", episode, err)
		}
		if err := t.Reset(epCtx); err != nil {
			return fmt.Errorf("reset failed (episode %d): %w", episode, err)
		}
		log.Ctx(epCtx).InfoContext(epCtx, "episode finished",
			slog.Int("rounds", roundsPerEpisode),
			slog.Float64("soc", sim.SoC()),
		)
	}
	return nil
}
