package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

const (
	// Configuration
	ErrCodeConfigInvalid  ErrorCode = "config_invalid"
	ErrCodeProfileMissing ErrorCode = "config_profile_missing"

	// Ledger persistence. Losing a write here loses the source of truth,
	// so these always propagate to the caller.
	ErrCodeLedgerWrite ErrorCode = "ledger_write_failed"
	ErrCodeLedgerRead  ErrorCode = "ledger_read_failed"

	// Posting service
	ErrCodeExternalUnavailable ErrorCode = "external_unavailable"
	ErrCodeExternalRejected    ErrorCode = "external_rejected"
	ErrCodeExternalMalformed   ErrorCode = "external_malformed_response"

	// Asset intake
	ErrCodeAssetShortage ErrorCode = "asset_queue_short"
	ErrCodeAssetConsume  ErrorCode = "asset_consume_failed"

	// Durable mirror
	ErrCodeMirrorDB ErrorCode = "mirror_db_error"

	// Coverage
	ErrCodeCoverageDeficit ErrorCode = "coverage_deficit"

	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected"
)

// AppError is the standard application error carrying a machine-readable
// code, a human-readable message, and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewAppError creates an AppError wrapping an underlying error (may be nil).
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}
