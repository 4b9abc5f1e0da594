package agent

import "fmt"

// ErrorCode enumerates the stable `code` values of the wire error event
// (spec §6).
type ErrorCode string

const (
	ErrorCodeBusy                       ErrorCode = "busy"
	ErrorCodeValidationFailed           ErrorCode = "validation_failed"
	ErrorCodePermissionDenied           ErrorCode = "permission_denied"
	ErrorCodeCredentialsMissingExpired  ErrorCode = "credentials_missing_or_expired"
	ErrorCodeProviderError              ErrorCode = "provider_error"
	ErrorCodeInternalError              ErrorCode = "internal_error"
	ErrorCodeTurnAborted                ErrorCode = "turn_aborted"
	ErrorCodeStepLimitReached           ErrorCode = "step_limit_reached"
)

// ErrorSource enumerates the stable `source` values of the wire error event.
type ErrorSource string

const (
	ErrorSourceSession     ErrorSource = "session"
	ErrorSourcePermissions ErrorSource = "permissions"
	ErrorSourceProvider    ErrorSource = "provider"
	ErrorSourceTransport   ErrorSource = "transport"
	ErrorSourceTool        ErrorSource = "tool"
	ErrorSourceMCP         ErrorSource = "mcp"
)

// TurnError is the structured error surfaced to clients as the `error` wire
// event (spec §6, §7). It carries code/source verbatim so a provider's own
// permission-denied payload round-trips without relabeling (spec's literal
// scenario 6).
type TurnError struct {
	Code    ErrorCode
	Source  ErrorSource
	Message string
	Cause   error
}

func (e *TurnError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s/%s)", e.Message, e.Source, e.Code)
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

// NewTurnError builds a TurnError with the given code/source/message.
func NewTurnError(code ErrorCode, source ErrorSource, message string) *TurnError {
	return &TurnError{Code: code, Source: source, Message: message}
}

// WrapTurnError attaches code/source to an underlying error, preserving its
// message.
func WrapTurnError(code ErrorCode, source ErrorSource, cause error) *TurnError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &TurnError{Code: code, Source: source, Message: msg, Cause: cause}
}

// ErrBusy is returned by TurnOrchestrator.SendUserMessage when a turn is
// already running (spec §4.6).
var ErrBusy = NewTurnError(ErrorCodeBusy, ErrorSourceSession, "a turn is already in progress")

// ErrSessionDisposed is returned once a Session has been disposed and the
// implementation has pinned "disposed is terminal" (spec §9 open question,
// see DESIGN.md).
var ErrSessionDisposed = NewTurnError(ErrorCodeInternalError, ErrorSourceSession, "session is disposed")
