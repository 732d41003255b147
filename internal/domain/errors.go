package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	// ErrTerminal marks queue operations attempted on an event that already
	// reached completed/failed/cancelled.
	ErrTerminal = errors.New("event in terminal state")
)

// Error codes recorded on events and per-channel results. Codes, not Go
// types, are the contract: operators filter dashboards on them.
const (
	CodeMappingMissing     = "mapping_missing"
	CodeChannelDisabled    = "channel_disabled"
	CodeCapabilityMissing  = "capability_missing"
	CodeValidationFailed   = "validation_failed"
	CodeAuthFailed         = "auth_failed"
	CodeRateLimited        = "rate_limited"
	CodeNetworkTimeout     = "network_timeout"
	CodeFXUnavailable      = "fx_unavailable"
	CodeMissingTranslation = "missing_translation"
	CodeCancelled          = "cancelled"
	CodeInternal           = "internal"
)

// SyncError is the typed failure carried on events and adapter results.
type SyncError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Channel   Channel        `json:"channel,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	// RetryAfter is a server-provided floor for the next attempt
	// (rate_limited responses); zero when the channel gave none.
	RetryAfter time.Duration `json:"retry_after_ms,omitempty"`
}

func (e *SyncError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Channel, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewSyncError builds a SyncError with retryability implied by the code.
func NewSyncError(code, msg string) *SyncError {
	return &SyncError{Code: code, Message: msg, Retryable: CodeRetryable(code)}
}

// CodeRetryable returns the default retry classification for a code.
func CodeRetryable(code string) bool {
	switch code {
	case CodeRateLimited, CodeNetworkTimeout, CodeFXUnavailable, CodeInternal:
		return true
	}
	return false
}
