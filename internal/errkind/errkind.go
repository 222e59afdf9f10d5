// Package errkind implements the local error taxonomy of §7: every
// user-visible failure carries a Kind, the failing stage and year, and at
// least one actionable hint, rather than a bare error string.
package errkind

import (
	"errors"
	"fmt"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// Kind names one of the seven error categories §7 defines a policy for.
type Kind string

const (
	Configuration  Kind = "configuration"
	TransientStore Kind = "transient_store"
	Runner         Kind = "runner"
	Validation     Kind = "validation"
	Integrity      Kind = "integrity"
	Resource       Kind = "resource"
	Fatal          Kind = "fatal"
)

// Error is the structured error every orchestrator-facing failure is
// wrapped into before it reaches a caller or a run summary.
type Error struct {
	Kind    Kind
	Stage   domain.Stage
	Year    int
	Hint    string
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Stage != "" {
		msg += fmt.Sprintf(" (stage=%s", e.Stage)
		if e.Year != 0 {
			msg += fmt.Sprintf(" year=%d", e.Year)
		}
		msg += ")"
	}
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a *Error with no wrapped cause.
func New(kind Kind, stage domain.Stage, year int, hint, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Year: year, Hint: hint, Message: message}
}

// Wrap attaches stage/year/hint context to an existing error under the
// given Kind, preserving it as the Cause for errors.Is/As chains.
func Wrap(kind Kind, stage domain.Stage, year int, hint string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Year: year, Hint: hint, Message: cause.Error(), Cause: cause}
}

// Is reports whether err is an *Error of the given Kind, unwrapping through
// any intermediate wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// WithDetails attaches structured detail fields and returns the receiver,
// for fluent construction at the call site.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}
