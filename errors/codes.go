package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors or bugs.
	CategoryInternal ErrorCategory = "internal"
)

func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

const (
	// Transient errors
	ErrCodeTimeout      ErrorCode = "TIMEOUT"       // Operation timed out
	ErrCodeNetworkErr   ErrorCode = "NETWORK_ERR"   // Network connectivity issue
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED" // No transport attached or open

	// Permanent errors
	ErrCodeClosed        ErrorCode = "CLOSED"         // Endpoint was closed by its owner
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG" // Configuration rejected
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"  // Malformed argument
	ErrCodeCanceled      ErrorCode = "CANCELED"       // Operation was canceled

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
)

func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeNetworkErr, ErrCodeNotConnected:
		return CategoryTransient
	case ErrCodeClosed, ErrCodeInvalidConfig, ErrCodeInvalidInput, ErrCodeCanceled:
		return CategoryPermanent
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:       "operation timed out",
	ErrCodeNetworkErr:    "network connectivity error",
	ErrCodeNotConnected:  "no transport attached",
	ErrCodeClosed:        "endpoint closed",
	ErrCodeInvalidConfig: "invalid configuration",
	ErrCodeInvalidInput:  "invalid input provided",
	ErrCodeCanceled:      "operation canceled",
	ErrCodeInternal:      "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
