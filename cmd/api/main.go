package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-sync/internal/api/handlers"
	"github.com/dvloznov/ledger-sync/internal/api/middleware"
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

	ctx := context.Background()

	// Open the ledger database
	conn, err := sqlite.Open(cfg.Store.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer conn.Close()

	cipher, err := secure.NewCipher(cfg.Store.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cipher")
	}

	classifier, err := buildClassifier(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build classification engine")
	}

	var suggester suggest.Suggester = suggest.Noop{}
	if cfg.Suggest.Enabled {
		gemini, err := suggest.NewGemini(ctx, cfg.Suggest.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Category suggester unavailable, continuing without suggestions")
		} else {
			suggester = gemini
		}
	}

	transactionStore := sqlite.NewTransactionStore(conn)
	recordStore := sqlite.NewSyncRecordStore(conn)
	cursorStore := sqlite.NewCursorStore(conn)
	accountStore := sqlite.NewAccountStore(conn)
	connectionStore := sqlite.NewConnectionStore(conn)

	orchestrator := engine.NewOrchestrator(engine.Deps{
		Provider: provider.NewClient(provider.ClientConfig{
			BaseURL: cfg.Provider.BaseURL,
			Timeout: cfg.Provider.Timeout,
		}),
		Classifier:   classifier,
		Transactions: transactionStore,
		Records:      recordStore,
		Cursors:      cursorStore,
		Accounts:     accountStore,
		Connections:  connectionStore,
		Cipher:       cipher,
		Suggester:    suggester,
	}, engine.Config{})

	// Initialize job infrastructure
	jobStore := jobsinmemory.NewStore()
	jobQueue := jobsinmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
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

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting sync worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Sync worker stopped with error")
		}
	}()

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(accountStore, jobQueue, log)
	transactionsHandler := handlers.NewTransactionsHandler(transactionStore, cipher, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Sync endpoints
	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.EnqueueSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

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
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.API.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func buildClassifier(cfg *config.Config) (*classify.Engine, error) {
	if cfg.Classify.KeywordsPath == "" {
		return classify.NewEngine(), nil
	}
	overrides, err := classify.LoadKeywordOverrides(cfg.Classify.KeywordsPath)
	if err != nil {
		return nil, err
	}
	return classify.NewEngineWithOverrides(overrides), nil
}
