package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/api/middleware"
	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/jobs"
	"github.com/dvloznov/ledger-sync/internal/secure"
	"github.com/dvloznov/ledger-sync/internal/store"
)

// SyncHandler handles sync-related endpoints.
type SyncHandler struct {
	accounts  store.AccountStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(accounts store.AccountStore, publisher jobs.Publisher, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		accounts:  accounts,
		publisher: publisher,
		log:       log,
	}
}

// EnqueueSync handles POST /api/sync
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AccountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	ctx := r.Context()

	acct, err := h.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("Failed to load account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if acct == nil {
		middleware.WriteError(w, http.StatusNotFound, "Account not found")
		return
	}

	job := &jobs.SyncAccountJob{
		ConnectionID:      acct.ConnectionID,
		AccountID:         acct.ID,
		ExternalAccountID: acct.ExternalAccountID,
	}

	if err := h.publisher.PublishSyncAccount(ctx, job); err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("account_id", acct.ID).Msg("Sync job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"account_id": acct.ID,
		"status":     string(job.Status),
	})
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	transactions store.TransactionStore
	cipher       *secure.Cipher
	log          zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(transactions store.TransactionStore, cipher *secure.Cipher, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		transactions: transactions,
		cipher:       cipher,
		log:          log,
	}
}

// transactionView is the wire shape of a transaction with the description
// decrypted for display.
type transactionView struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	CategoryID  string  `json:"category_id,omitempty"`
	Description string  `json:"description"`
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	var startDate, endDate time.Time
	var err error

	if s := r.URL.Query().Get("start_date"); s != "" {
		startDate, err = time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		endDate, err = time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	}

	transactions, err := h.transactions.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	views := make([]transactionView, 0, len(transactions))
	for _, tx := range transactions {
		if !startDate.IsZero() && tx.Date.Before(startDate) {
			continue
		}
		if !endDate.IsZero() && tx.Date.After(endDate) {
			continue
		}
		views = append(views, h.toView(tx))
	}

	middleware.WriteJSON(w, http.StatusOK, views)
}

func (h *TransactionsHandler) toView(tx *domain.Transaction) transactionView {
	description := ""
	if tx.Description != "" {
		plain, err := h.cipher.Decrypt(tx.Description)
		if err != nil {
			h.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to decrypt description")
		} else {
			description = plain
		}
	}

	return transactionView{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		Date:        tx.Date.Format("2006-01-02"),
		Amount:      tx.Amount,
		Type:        string(tx.Type),
		CategoryID:  tx.CategoryID,
		Description: description,
	}
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		AccountID: query.Get("account_id"),
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
