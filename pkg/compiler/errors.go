package compiler

import (
	"errors"
	"fmt"

	"github.com/pgview/pgview"
)

// ErrUnsafeRule wraps pgview.ErrUnsafeRule with compiler-specific context.
var ErrUnsafeRule = pgview.ErrUnsafeRule

// ErrSkolemArityMismatch wraps pgview.ErrSkolemArityMismatch with
// compiler-specific context.
var ErrSkolemArityMismatch = pgview.ErrSkolemArityMismatch

func unsafeRuleErr(viewName string, ruleIdx int, head string) error {
	return fmt.Errorf("view %q rule %d: head %s not fully bound in body: %w", viewName, ruleIdx, head, ErrUnsafeRule)
}

func arityMismatchErr(viewName, fnName string, want, got int) error {
	return fmt.Errorf("view %q: skolem function %q used with arity %d, previously %d: %w", viewName, fnName, got, want, ErrSkolemArityMismatch)
}

// IsUnsafeRule reports whether err is (or wraps) ErrUnsafeRule.
func IsUnsafeRule(err error) bool { return errors.Is(err, ErrUnsafeRule) }

// IsSkolemArityMismatch reports whether err is (or wraps) ErrSkolemArityMismatch.
func IsSkolemArityMismatch(err error) bool { return errors.Is(err, ErrSkolemArityMismatch) }
