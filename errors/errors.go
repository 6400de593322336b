package errors

import "fmt"

// Error is returned by endpoint and configuration calls. Transport errors
// delivered to listeners are never wrapped in it.
type Error struct {
	code       ErrorCode
	category   ErrorCategory
	op         string
	message    string
	cause      error
	retryable  *bool // nil: decided by category
	endpointID string
}

// Error formats as "op: message: cause", omitting empty parts.
func (e *Error) Error() string {
	msg := e.message
	if e.op != "" {
		msg = e.op + ": " + msg
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Code() ErrorCode         { return e.code }
func (e *Error) Category() ErrorCategory { return e.category }
func (e *Error) Op() string              { return e.op }
func (e *Error) Unwrap() error           { return e.cause }

// EndpointID returns the endpoint the error originated from, if set.
func (e *Error) EndpointID() string { return e.endpointID }

// Retryable reports whether the same call may succeed later. An explicit
// WithRetryable wins over the category default.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Option configures an Error.
type Option func(*Error)

// WithRetryable overrides the category's retry default.
func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.retryable = &retryable }
}

// WithEndpoint tags the error with its source endpoint.
func WithEndpoint(id string) Option {
	return func(e *Error) { e.endpointID = id }
}

// WithOp names the operation that failed, such as "send" or "connect".
func WithOp(op string) Option {
	return func(e *Error) { e.op = op }
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// New creates an Error in the code's default category.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:     code,
		category: code.DefaultCategory(),
		message:  message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// NotConnected reports a send or control call with no usable transport.
func NotConnected(endpointID string, opts ...Option) *Error {
	return FromCode(ErrCodeNotConnected, append(opts, WithEndpoint(endpointID))...)
}

// Closed reports a call on an endpoint its owner already closed.
func Closed(endpointID string, opts ...Option) *Error {
	return FromCode(ErrCodeClosed, append(opts, WithEndpoint(endpointID))...)
}

// InvalidConfig wraps a configuration validation failure.
func InvalidConfig(cause error) *Error {
	return FromCode(ErrCodeInvalidConfig, WithCause(cause))
}
