// Package jerrors is a small, closed set of error kinds that every layer of
// the core returns as plain values (never panics, except for the one
// InvariantViolation abort path), each classifiable against a grpc status
// code so callers embedding this core behind an RPC facade get sane codes
// for free without this package importing any RPC server machinery itself.
package jerrors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind enumerates the error kinds this core classifies failures into.
type Kind int

const (
	// KindSchema: a referenced shape is missing, or a declared predicate's
	// datatype list is empty.
	KindSchema Kind = iota
	// KindQuery: the planner produced an invalid query, or the executor
	// rejected it.
	KindQuery
	// KindStore: CONSTRUCT execution, commit feed, or graph access failed.
	KindStore
	// KindCycle: a (shape, subject) pair recurses through itself during one
	// reactor pass. Non-fatal; policy marks the subject Invalid.
	KindCycle
	// KindSubscriptionClosed: delivery sink unreachable. Non-fatal, triggers
	// retirement.
	KindSubscriptionClosed
	// KindInvariant: an internal consistency check failed. Fatal.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "SchemaError"
	case KindQuery:
		return "QueryError"
	case KindStore:
		return "StoreError"
	case KindCycle:
		return "CycleDetected"
	case KindSubscriptionClosed:
		return "SubscriptionClosed"
	case KindInvariant:
		return "InvariantViolation"
	default:
		return "Unknown"
	}
}

// Code maps a Kind to the grpc status code a transport-facing wrapper
// would want to report; ConvertError uses it to build a grpc status.
func (k Kind) Code() codes.Code {
	switch k {
	case KindSchema, KindQuery:
		return codes.InvalidArgument
	case KindStore:
		return codes.Unavailable
	case KindCycle, KindSubscriptionClosed:
		return codes.FailedPrecondition
	case KindInvariant:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// Error is the concrete error value every fallible operation in this core
// returns. Shape/Subject are optional context, filled in where the failure
// is attributable to a specific tracked node.
type Error struct {
	Kind    Kind
	Shape   string
	Subject string
	Cause   error
}

func (e *Error) Error() string {
	if e.Shape == "" && e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: shape=%s subject=%s: %v", e.Kind, e.Shape, e.Subject, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf constructs an Error of the given kind from a format string.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// WithNode attaches shape/subject context to an Error and returns it for
// chaining, following the builder-ish option pattern used elsewhere in this
// core for functional options.
func (e *Error) WithNode(shape, subject string) *Error {
	e.Shape = shape
	e.Subject = subject
	return e
}

// ConvertError mirrors jaal's jerrors.ConvertError: adapt any error
// (including ones not produced by this package) into the grpc status idiom,
// for callers that want a uniform (code, message) pair regardless of origin.
func ConvertError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if je, ok := err.(*Error); ok {
		return status.New(je.Kind.Code(), je.Error())
	}
	return status.New(codes.Unknown, err.Error())
}

// Is reports whether err is a *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if je, ok := err.(*Error); ok {
			return je.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
