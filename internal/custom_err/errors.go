package custom_err

import "errors"

var (
	// Storage errors
	ErrNotFound         = errors.New("resource not found")
	ErrDuplicateRequest = errors.New("duplicate request")

	// Idempotency / rule errors
	ErrIdempotencyConflict = errors.New("idempotency key already used with different request parameters")
	ErrRuleExists          = errors.New("rule with this name already exists")

	// Dependency errors
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrModelUnavailable      = errors.New("anomaly model unavailable")

	// Validation errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCondition = errors.New("invalid rule condition")
)
