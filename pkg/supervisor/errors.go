package supervisor

import "errors"

var (
	// ErrIsolationViolation is returned when a globally scoped database
	// session reaches the per-execution factory. Treated as fatal: the
	// caller's wiring is wrong, not the request.
	ErrIsolationViolation = errors.New("isolation violation: global database session passed to per-execution factory")

	// ErrMissingExecution is returned when no execution context is supplied.
	ErrMissingExecution = errors.New("execution context is required")

	// ErrMissingBridge is returned when no event bridge is supplied. Server
	// configuration error, never a client error.
	ErrMissingBridge = errors.New("event bridge is required")
)
