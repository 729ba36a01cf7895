package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-sync/internal/classify"
	"github.com/dvloznov/ledger-sync/internal/config"
	"github.com/dvloznov/ledger-sync/internal/engine"
	"github.com/dvloznov/ledger-sync/internal/jobs"
	jobsinmemory "github.com/dvloznov/ledger-sync/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-sync/internal/logger"
	"github.com/dvloznov/ledger-sync/internal/provider"
	"github.com/dvloznov/ledger-sync/internal/secure"
	"github.com/dvloznov/ledger-sync/internal/store/sqlite"
	"github.com/dvloznov/ledger-sync/internal/suggest"
)

func main() {
	var (
		envPath = flag.String("env", "", "Path to .env file (defaults to ./.env if present)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	conn, err := sqlite.Open(cfg.Store.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer conn.Close()

	cipher, err := secure.NewCipher(cfg.Store.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cipher")
	}

	classifier := classify.NewEngine()
	if cfg.Classify.KeywordsPath != "" {
		overrides, err := classify.LoadKeywordOverrides(cfg.Classify.KeywordsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load keyword overrides")
		}
		classifier = classify.NewEngineWithOverrides(overrides)
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	var suggester suggest.Suggester = suggest.Noop{}
	if cfg.Suggest.Enabled {
		gemini, err := suggest.NewGemini(ctx, cfg.Suggest.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Category suggester unavailable, continuing without suggestions")
		} else {
			suggester = gemini
		}
	}

	orchestrator := engine.NewOrchestrator(engine.Deps{
		Provider: provider.NewClient(provider.ClientConfig{
			BaseURL: cfg.Provider.BaseURL,
			Timeout: cfg.Provider.Timeout,
		}),
		Classifier:   classifier,
		Transactions: sqlite.NewTransactionStore(conn),
		Records:      sqlite.NewSyncRecordStore(conn),
		Cursors:      sqlite.NewCursorStore(conn),
		Accounts:     sqlite.NewAccountStore(conn),
		Connections:  sqlite.NewConnectionStore(conn),
		Cipher:       cipher,
		Suggester:    suggester,
	}, engine.Config{})

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := jobsinmemory.NewStore()
	jobQueue := jobsinmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	handler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncAccountJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("account_id", syncJob.AccountID).
			Msg("Processing sync job")

		progress := engine.NewProgressTracker(jobStore, syncJob.JobID)
		summary, err := orchestrator.Sync(ctx, syncJob.ConnectionID, syncJob.AccountID, syncJob.ExternalAccountID, progress)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", syncJob.JobID).
				Str("account_id", syncJob.AccountID).
				Msg("Sync failed")
			return err
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("account_id", syncJob.AccountID).
			Int("synced", summary.Synced).
			Int("skipped", summary.Skipped).
			Int("errors", summary.Errors).
			Msg("Sync completed")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
