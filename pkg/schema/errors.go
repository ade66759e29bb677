package schema

import "errors"

// ErrConflict is returned when an edge label is redeclared with
// different endpoint types than its first declaration.
var ErrConflict = errors.New("schema: conflicting label declaration")

// ErrUnknownLabel is returned when a lookup references an undeclared
// label.
var ErrUnknownLabel = errors.New("schema: unknown label")

// IsConflictErr returns true if err is or wraps ErrConflict.
func IsConflictErr(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnknownLabelErr returns true if err is or wraps ErrUnknownLabel.
func IsUnknownLabelErr(err error) bool { return errors.Is(err, ErrUnknownLabel) }
