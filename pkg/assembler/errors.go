package assembler

import (
	"errors"
	"fmt"

	"github.com/pgview/pgview"
)

// ErrUnstratifiedNegation wraps pgview.ErrUnstratifiedNegation.
var ErrUnstratifiedNegation = pgview.ErrUnstratifiedNegation

// ErrCyclicViewDependency wraps pgview.ErrCyclicViewDependency.
var ErrCyclicViewDependency = pgview.ErrCyclicViewDependency

func unstratifiedErr(pred string) error {
	return fmt.Errorf("predicate %q negates a predicate in its own recursive stratum: %w", pred, ErrUnstratifiedNegation)
}

func cyclicViewErr(preds []string) error {
	return fmt.Errorf("definitional cycle among predicates %v: %w", preds, ErrCyclicViewDependency)
}

// IsUnstratifiedNegation reports whether err is (or wraps) ErrUnstratifiedNegation.
func IsUnstratifiedNegation(err error) bool { return errors.Is(err, ErrUnstratifiedNegation) }

// IsCyclicViewDependency reports whether err is (or wraps) ErrCyclicViewDependency.
func IsCyclicViewDependency(err error) bool { return errors.Is(err, ErrCyclicViewDependency) }
