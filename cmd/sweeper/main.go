package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finexbank/ledger/internal/categorizer"
	"github.com/finexbank/ledger/internal/config"
	"github.com/finexbank/ledger/internal/ledger"
	"github.com/finexbank/ledger/internal/logger"
	"github.com/finexbank/ledger/internal/notify"
	"github.com/finexbank/ledger/internal/postgres"
)

// Standalone auto-pay worker. Runs the sweep on an interval against the
// same database as the API; bill row locks keep the two from paying a
// bill twice when both are deployed.
func main() {
	var (
		once = flag.Bool("once", false, "run a single sweep and exit")
	)
	flag.Parse()

	cfg := config.MustLoad()
	log := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel on interrupt so an in-flight sweep can finish cleanly
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("Shutting down sweeper...")
		cancel()
	}()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	var notifier ledger.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		notifier = &notify.LogNotifier{Log: log}
	}

	engine := ledger.NewEngine(store, categorizer.NewDefault(), log,
		ledger.WithNotifier(notifier),
	)

	runSweep := func(now time.Time) {
		paid, err := engine.AutoPaySweep(ctx, now)
		if err != nil {
			log.Error().Err(err).Msg("Auto-pay sweep failed")
			return
		}
		log.Info().Int("bills_paid", len(paid)).Msg("Auto-pay sweep completed")
	}

	if *once {
		runSweep(time.Now())
		return
	}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	log.Info().Dur("interval", interval).Msg("Starting auto-pay sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runSweep(time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper exited")
			return
		case now := <-ticker.C:
			runSweep(now)
		}
	}
}
