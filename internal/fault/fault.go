// Package fault classifies failures of the composite and its dependencies.
//
// A failure is classified once, where it is first observed (the facade that
// talked to a downstream service, or the resilience policy that refused to),
// and carried as a *Error from then on. Callers switch on Kind.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Unknown is reported for errors that never went through classification.
	Unknown Kind = iota
	InvalidInput
	NotFound
	Timeout
	CircuitOpen
	Upstream
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case NotFound:
		return "NotFound"
	case Timeout:
		return "Timeout"
	case CircuitOpen:
		return "CircuitOpen"
	case Upstream:
		return "UpstreamError"
	default:
		return "Unknown"
	}
}

// Error is a classified failure. Dependency names the downstream service
// involved ("product", "recommendation", "review") and is empty for failures
// raised by the composite itself. Status and Body are only set for Upstream.
type Error struct {
	Kind       Kind
	Dependency string
	Message    string
	Status     int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Dependency != "" {
		msg = e.Dependency + ": " + msg
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, msg, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error without an underlying cause.
func New(kind Kind, dependency, format string, args ...any) *Error {
	return &Error{Kind: kind, Dependency: dependency, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err.
func Wrap(kind Kind, dependency string, err error) *Error {
	return &Error{Kind: kind, Dependency: dependency, Err: err}
}

// InvalidID is the boundary check shared by every composite operation.
func InvalidID(productID int) *Error {
	return New(InvalidInput, "", "Invalid productId: %d", productID)
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// DependencyOf returns the dependency recorded on err, if any.
func DependencyOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Dependency
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
