package typecheck

import (
	"errors"
	"fmt"

	"github.com/pgview/pgview"
)

// ErrTypeError is returned by Check when a pattern is statically
// unsatisfiable and the typecheck option is enabled. It wraps
// pgview.ErrType so callers mapping errors to exit codes need only know
// about the root package's sentinels.
var ErrTypeError = fmt.Errorf("typecheck: pattern is statically unsatisfiable: %w", pgview.ErrType)

// IsTypeError reports whether err is (or wraps) ErrTypeError.
func IsTypeError(err error) bool { return errors.Is(err, ErrTypeError) }
