/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package boxerr holds the small error taxonomy the core surfaces (spec §7):
// ClassFormat, MalformedUtf, UnknownMember and TooLarge. Every wrapped error
// carries a go-errors stack trace, the way lazydocker's commands.WrapError
// wraps for a top-level stack dump, rather than teacher's single-frame
// runtime.Caller note.
package boxerr

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind is one of the four sentinel error kinds the core can surface.
type Kind struct {
	name string
}

func (k *Kind) Error() string { return k.name }

var (
	// ClassFormat signals a structural violation of the classfile: bad magic,
	// version < 51, wrong constant-pool tag, length mismatch, oversized pool,
	// oversized code, or a truncated stream.
	ClassFormat = &Kind{"class format error"}

	// MalformedUtf signals an invalid modified-UTF-8 byte sequence.
	MalformedUtf = &Kind{"malformed modified utf-8"}

	// UnknownMember is raised only by RulesBuilder.Validate: a rule names a
	// constructor/method/field that does not exist on the referenced class.
	UnknownMember = &Kind{"unknown member"}

	// TooLarge signals a transformation would push the constant pool past
	// 65535 entries or a Code attribute past 2^31-1 bytes.
	TooLarge = &Kind{"transformation too large"}
)

// Wrap produces an error that Is(kind) is true for, annotated with msg and
// a captured stack trace (useful when a ClassFormat error propagates out of
// deeply nested code-rewriting helpers).
func Wrap(kind *Kind, msg string) error {
	wrapped := &kindError{kind: kind, msg: msg}
	return goerrors.Wrap(wrapped, 1)
}

// Wrapf is Wrap with formatting.
func Wrapf(kind *Kind, format string, args ...interface{}) error {
	return Wrap(kind, fmt.Sprintf(format, args...))
}

// Is reports whether err (or anything it wraps) is the given Kind.
func Is(err error, kind *Kind) bool {
	return stderrors.Is(err, kind)
}

// kindError pairs a Kind with a message and supports errors.Is/Unwrap so
// that a *goerrors.Error wrapping it still satisfies Is(err, SomeKind).
type kindError struct {
	kind *Kind
	msg  string
}

func (e *kindError) Error() string { return e.kind.name + ": " + e.msg }
func (e *kindError) Is(target error) bool {
	k, ok := target.(*Kind)
	return ok && k == e.kind
}
func (e *kindError) Unwrap() error { return e.kind }
