package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Bootstrap errors
const (
	// ErrCodeBootstrap indicates a console host could not be constructed or run.
	ErrCodeBootstrap ErrorCode = "BOOTSTRAP_FAILED"
)

// Container errors
const (
	// ErrCodeNotRegistered indicates no service is registered under the requested key.
	ErrCodeNotRegistered ErrorCode = "NOT_REGISTERED"
	// ErrCodeScopeViolation indicates a scoped service was resolved from the root container.
	ErrCodeScopeViolation ErrorCode = "SCOPE_VIOLATION"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)
