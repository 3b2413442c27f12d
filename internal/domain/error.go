package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnauthenticated      = errors.New("no verified identity")
	ErrInvalidSignature     = errors.New("signature mismatch")
	ErrPaymentNotSuccessful = errors.New("payment not successful at gateway")
	ErrDuplicateSourceKey   = errors.New("source key already consumed")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrUnavailable          = errors.New("store temporarily unavailable")

	// Infrastructure errors surfaced by repositories
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
