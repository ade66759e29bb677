package backend

import (
	"errors"
	"fmt"

	"github.com/pgview/pgview"
)

// ConnectError is returned by Backend.Open on failure to establish a
// handle (spec.md §4.9).
type ConnectError struct {
	Backend string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to backend %q: %v", e.Backend, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Error wraps pgview.ErrBackend with backend-specific context. Per
// spec.md §4.9.1, backend errors surface unchanged to the caller; the
// session may need to treat the handle as invalidated.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return errors.Join(e.Err, pgview.ErrBackend) }

// IsBackendError reports whether err is (or wraps) pgview.ErrBackend.
func IsBackendError(err error) bool { return errors.Is(err, pgview.ErrBackend) }
