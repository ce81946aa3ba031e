package diag

import (
	"errors"
	"fmt"
)

// Error carries a fatal diagnostic through ordinary error returns.
type Error struct {
	Diagnostic
	Err error
}

// Errorf builds a fatal *Error for the given stage and code.
func Errorf(stage Stage, code Code, format string, args ...any) *Error {
	return &Error{Diagnostic: New(stage, code, format, args...).WithSeverity(SeverityError)}
}

// Wrap builds a fatal *Error whose cause is err.
func Wrap(stage Stage, code Code, err error, format string, args ...any) *Error {
	e := Errorf(stage, code, format, args...)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so callers can test
// errors.Is(err, diag.ErrIntegrity).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrFormatMismatch     = &Error{Diagnostic: Diagnostic{Code: CodeFormatMismatch}}
	ErrUnsupportedVersion = &Error{Diagnostic: Diagnostic{Code: CodeUnsupportedVersion}}
	ErrIntegrity          = &Error{Diagnostic: Diagnostic{Code: CodeIntegrity}}
)

// CodeOf extracts the diagnostic code of err, or "" if err does not carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
