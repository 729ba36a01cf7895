// Command sync runs one synchronization pass for a single account and prints
// the summary. Useful for cron jobs and local debugging.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/dvloznov/ledger-sync/internal/classify"
	"github.com/dvloznov/ledger-sync/internal/config"
	"github.com/dvloznov/ledger-sync/internal/engine"
	"github.com/dvloznov/ledger-sync/internal/logger"
	"github.com/dvloznov/ledger-sync/internal/provider"
	"github.com/dvloznov/ledger-sync/internal/secure"
	"github.com/dvloznov/ledger-sync/internal/store/sqlite"
	"github.com/dvloznov/ledger-sync/internal/suggest"
)

func main() {
	var (
		envPath   = flag.String("env", "", "Path to .env file (defaults to ./.env if present)")
		accountID = flag.String("account", "", "Local account id to sync (required)")
	)
	flag.Parse()

	log := logger.New()

	if *accountID == "" {
		log.Fatal().Msg("-account is required")
	}

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

	ctx := logger.WithContext(context.Background(), log)

	var suggester suggest.Suggester = suggest.Noop{}
	if cfg.Suggest.Enabled {
		gemini, err := suggest.NewGemini(ctx, cfg.Suggest.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Category suggester unavailable, continuing without suggestions")
		} else {
			suggester = gemini
		}
	}

	accountStore := sqlite.NewAccountStore(conn)

	acct, err := accountStore.GetAccount(ctx, *accountID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load account")
	}
	if acct == nil {
		log.Fatal().Str("account_id", *accountID).Msg("Account not found")
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
		Accounts:     accountStore,
		Connections:  sqlite.NewConnectionStore(conn),
		Cipher:       cipher,
		Suggester:    suggester,
	}, engine.Config{})

	summary, err := orchestrator.Sync(ctx, acct.ConnectionID, acct.ID, acct.ExternalAccountID, nil)
	if err != nil {
		log.Fatal().Err(err).Str("account_id", acct.ID).Msg("Sync failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(summary)
}
