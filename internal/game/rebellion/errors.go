package rebellion

import "fmt"

// Code is a machine-readable error code.
type Code string

const (
	CodeConfig                  Code = "CONFIG"
	CodeUnknownRole             Code = "UNKNOWN_ROLE"
	CodeIllegalChoice           Code = "ILLEGAL_CHOICE"
	CodeNotEligible             Code = "NOT_ELIGIBLE"
	CodeInsufficientCoins       Code = "INSUFFICIENT_COINS"
	CodeNoLegalTarget           Code = "NO_LEGAL_TARGET"
	CodeDecisionAlreadyResolved Code = "DECISION_ALREADY_RESOLVED"
	CodeGameFinished            Code = "GAME_FINISHED"
	CodeDeckExhausted           Code = "DECK_EXHAUSTED"
	CodeInconsistentState       Code = "INCONSISTENT_STATE"
)

// Fatal reports whether the code marks a broken engine invariant rather than a
// bad request. A game that returned a fatal error must not be played further.
func (c Code) Fatal() bool {
	return c == CodeDeckExhausted || c == CodeInconsistentState
}

// Error is the error type returned across the engine boundary.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return e.Msg
}

// ErrorCode returns the code as a string for transports.
func (e *Error) ErrorCode() string { return string(e.Code) }

// Fatal reports whether the game that returned e is broken.
func (e *Error) Fatal() bool { return e.Code.Fatal() }

// Is matches any *Error carrying the same code, so callers can compare against
// the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrConfig                  = &Error{Code: CodeConfig}
	ErrUnknownRole             = &Error{Code: CodeUnknownRole}
	ErrIllegalChoice           = &Error{Code: CodeIllegalChoice}
	ErrNotEligible             = &Error{Code: CodeNotEligible}
	ErrInsufficientCoins       = &Error{Code: CodeInsufficientCoins}
	ErrNoLegalTarget           = &Error{Code: CodeNoLegalTarget}
	ErrDecisionAlreadyResolved = &Error{Code: CodeDecisionAlreadyResolved}
	ErrGameFinished            = &Error{Code: CodeGameFinished}
	ErrDeckExhausted           = &Error{Code: CodeDeckExhausted}
	ErrInconsistentState       = &Error{Code: CodeInconsistentState}
)

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func configError(format string, args ...any) *Error {
	return newError(CodeConfig, format, args...)
}
