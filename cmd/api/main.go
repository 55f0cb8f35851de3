package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finexbank/ledger/internal/api/handlers"
	"github.com/finexbank/ledger/internal/api/middleware"
	"github.com/finexbank/ledger/internal/categorizer"
	"github.com/finexbank/ledger/internal/config"
	"github.com/finexbank/ledger/internal/kvstore"
	"github.com/finexbank/ledger/internal/ledger"
	"github.com/finexbank/ledger/internal/logger"
	"github.com/finexbank/ledger/internal/notify"
	"github.com/finexbank/ledger/internal/postgres"
)

func main() {
	cfg := config.MustLoad()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()

	// Connect to Postgres and bring the schema up to date
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := postgres.ApplyMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	store := postgres.NewStore(pool)

	// Notifications fall back to the log when no relay is configured
	var sender notify.Sender
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		log.Warn().Msg("No SMTP relay configured - notifications will be logged only")
		sender = &notify.LogNotifier{Log: log}
	}

	// Deliver notifications off the request path
	notifyQueue := notify.NewQueue(100, sender, log)
	if err := notifyQueue.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notification queue")
	}

	engine := ledger.NewEngine(store, categorizer.NewDefault(), log,
		ledger.WithNotifier(notifyQueue),
	)

	// Start in-process auto-pay sweeper in background
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()

	if cfg.SweepInterval > 0 {
		go func() {
			log.Info().Dur("interval", cfg.SweepInterval).Msg("Starting auto-pay sweeper")
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case now := <-ticker.C:
					paid, err := engine.AutoPaySweep(sweepCtx, now)
					if err != nil {
						log.Error().Err(err).Msg("Auto-pay sweep failed")
						continue
					}
					if len(paid) > 0 {
						log.Info().Int("bills_paid", len(paid)).Msg("Auto-pay sweep completed")
					}
				}
			}
		}()
	}

	// Short-lived display state lives behind the expiring KV store
	cache := kvstore.NewMemory()
	go cache.Janitor(sweepCtx, time.Minute)

	// Create router
	mux := http.NewServeMux()

	ledgerHandler := handlers.NewLedgerHandler(engine, cache, log)
	ledgerHandler.Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(mux),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the sweeper before draining requests
	cancelSweep()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Drain pending notifications
	if err := notifyQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping notification queue")
	}

	log.Info().Msg("Server exited")
}
