package provider

import (
	"errors"
	"fmt"
)

// ErrorCodeMutationDuringPagination is the distinguished conflict the
// provider reports when the underlying feed changed while a multi-page pull
// was in progress. It is protocol-retryable: the orchestrator restarts the
// pull and never surfaces it as a sync failure.
const ErrorCodeMutationDuringPagination = "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"

// Error is a provider-reported API error. ErrorType/ErrorCode are preserved
// for caller-level messaging; all codes other than the pagination mutation
// conflict abort the sync.
type Error struct {
	StatusCode int
	ErrorType  string `json:"error_type"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"error_message"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error %s/%s: %s", e.ErrorType, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("provider error %s/%s (status %d)", e.ErrorType, e.ErrorCode, e.StatusCode)
}

// IsMutationConflict reports whether err is the provider's
// mutation-during-pagination condition.
func IsMutationConflict(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.ErrorCode == ErrorCodeMutationDuringPagination
}
