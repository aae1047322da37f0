// Package cmn provides constants, error vocabulary, and assertion helpers
// shared by every package in the module.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind enumerates the distinct error kinds in the module's error
// vocabulary (see design doc for error handling: each kind surfaces as a
// distinct message in the host's error vocabulary).
type ErrKind string

const (
	ErrInvalidOrigin      ErrKind = "invalid_origin"
	ErrIDConflict         ErrKind = "id_conflict"
	ErrSetInvariant       ErrKind = "set_invariant"
	ErrMigrationInvariant ErrKind = "migration_invariant"
	ErrQueueFull          ErrKind = "queue_full"
	ErrDuplicateRequest   ErrKind = "duplicate_request"
	ErrBadParameters      ErrKind = "bad_parameters"
	ErrFeePaymentFailed   ErrKind = "fee_payment_failed"
)

// Error is the module's sole error type: a kind plus a human-readable
// cause. Every rejection path in ssmod, migration, registry, agg, and
// servicequeue returns one of these (or wraps one via errors.Wrap) so
// callers can switch on Kind without parsing strings.
type Error struct {
	Kind  ErrKind
	cause error
}

func NewError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: fmt.Errorf(format, args...)}
}

func WrapError(kind ErrKind, cause error) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(cause)}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind ErrKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
