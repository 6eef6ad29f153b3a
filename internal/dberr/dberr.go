// Package dberr defines the error taxonomy shared by every layer of the
// engine, from the page manager up through the SQL façade.
package dberr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the abstract kinds the engine's
// callers are expected to branch on.
type Kind int

const (
	// ParseFailure indicates malformed SQL text.
	ParseFailure Kind = iota
	// SchemaFailure indicates a missing/duplicate table, column, or index,
	// or an INSERT column-count mismatch.
	SchemaFailure
	// AmbiguousColumn indicates an unqualified reference that resolves to
	// more than one column in the current binding.
	AmbiguousColumn
	// KeyNotFound indicates a Get on a missing or tombstoned key.
	KeyNotFound
	// StorageFailure indicates an underlying I/O error or page corruption.
	StorageFailure
	// TransactionFailure indicates an operation against an unknown or
	// already-finished transaction.
	TransactionFailure
	// LogicFailure indicates an unsupported operator or a bad cast
	// requested by the planner/executor.
	LogicFailure
)

func (k Kind) String() string {
	switch k {
	case ParseFailure:
		return "ParseFailure"
	case SchemaFailure:
		return "SchemaFailure"
	case AmbiguousColumn:
		return "AmbiguousColumn"
	case KeyNotFound:
		return "KeyNotFound"
	case StorageFailure:
		return "StorageFailure"
	case TransactionFailure:
		return "TransactionFailure"
	case LogicFailure:
		return "LogicFailure"
	default:
		return "UnknownFailure"
	}
}

// Error is the concrete error type carried across every package boundary in
// the engine. Wrap an underlying cause with Wrap so callers can still reach
// it with errors.Unwrap/errors.As.
type Error struct {
	Kind    Kind
	Msg     string
	Cause   error
	Pos     int    // token position, set by ParseFailure
	Token   string // offending token, set by ParseFailure
}

func (e *Error) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s: %s (near %q, pos %d)", e.Kind, e.Msg, e.Token, e.Pos)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, satisfying
// errors.Is(err, dberr.New(SomeKind, "")).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New builds a bare Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds a bare Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// ParseError builds a ParseFailure carrying the offending token and position.
func ParseError(token string, pos int, format string, args ...any) *Error {
	return &Error{Kind: ParseFailure, Msg: fmt.Sprintf(format, args...), Token: token, Pos: pos}
}

// Of reports the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ErrKeyNotFound is a sentinel convenience for the common Get-miss case.
var ErrKeyNotFound = New(KeyNotFound, "key not found")
