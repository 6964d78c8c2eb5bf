package errs

import "strings"

// Error is a domain error with a caller-facing message and optional details.
// It matches its Kind sentinel under errors.Is.
type Error struct {
	Kind    error
	Msg     string
	Details []string
}

// New builds an Error of the given kind.
func New(kind error, msg string, details ...string) *Error {
	return &Error{Kind: kind, Msg: msg, Details: details}
}

// Validation is a shorthand for New(ErrValidation, ...).
func Validation(msg string, details ...string) *Error {
	return New(ErrValidation, msg, details...)
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	if len(e.Details) == 0 {
		return e.Msg
	}
	return e.Msg + ": " + strings.Join(e.Details, "; ")
}

// Unwrap exposes the sentinel kind.
func (e *Error) Unwrap() error { return e.Kind }
