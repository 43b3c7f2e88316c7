// Package errs defines the cartridge error taxonomy (spec.md §7).
//
// Every kind shares one struct type, Error, which carries its Kind plus
// enough context (operation, path or block id) to be self-describing via
// Error(), in the spirit of lldb's small error structs (&ErrINVAL{...},
// &ErrPERM{...}) rather than sentinel values or opaque strings. Is lets
// callers branch on the taxonomy by kind, unwrapping through wrapped causes.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error into one of the taxonomy buckets from spec.md §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindFormat
	KindInvariant
	KindOutOfSpace
	KindNotFound
	KindAlreadyExists
	KindInvalidArgument
	KindAccessDenied
	KindIO
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "FormatError"
	case KindInvariant:
		return "InvariantError"
	case KindOutOfSpace:
		return "OutOfSpace"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindAccessDenied:
		return "AccessDenied"
	case KindIO:
		return "IoError"
	case KindCorruption:
		return "CorruptionError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type used across the cartridge engine.
//
// Op names the operation that failed ("catalog.Insert", "hybrid.Allocate");
// Context carries path/block-id style identifying information; Cause is the
// wrapped lower-level error, if any.
type Error struct {
	Kind    Kind
	Op      string
	Context string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, op, context string) *Error {
	return &Error{Kind: kind, Op: op, Context: context}
}

// Wrap constructs an *Error of the given kind, wrapping cause.
//
// The wrapped cause is decorated with github.com/pkg/errors.Wrap so the
// original call stack survives alongside this package's own kind/op/
// context framing, matching zchee-go-qcow2's idiom of wrapping every os/io
// failure with errors.Wrap rather than returning it bare.
func Wrap(kind Kind, op, context string, cause error) *Error {
	if cause != nil {
		cause = errors.Wrap(cause, op)
	}
	return &Error{Kind: kind, Op: op, Context: context, Cause: cause}
}

// Is reports whether err is a *Error of the given kind, unwrapping through
// any wrapping chain.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
