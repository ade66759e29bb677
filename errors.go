// Package pgview is a property-graph view engine: it compiles Cypher-like
// transformation views and pattern queries over a property graph into a
// backend-independent Datalog-style rule program.
//
// # Package Structure
//
// The engine is split across several packages, leaves first:
//
//   - pkg/schema: node/edge label registry and endpoint typing
//   - pkg/ast: surface syntax tree for patterns, views, and queries
//   - pkg/ir: normalized Datalog-style rule representation
//   - pkg/parser: recursive-descent parser from surface text to pkg/ast
//   - pkg/skolem: deterministic synthetic-id interning
//   - pkg/typecheck: schema-driven type checking and pattern pruning
//   - pkg/compiler: lowers view definitions to pkg/ir rules
//   - pkg/rewriter: unfolds queries against virtual/materialized/hybrid views
//   - pkg/assembler: orders rules, detects cycles, checks stratification
//   - pkg/backend: the storage-backend interface, plus memdb and postgres
//   - pkg/catalog: Session/Graph ownership, locking, command dispatch
//
// This root package holds only the error taxonomy shared by all of them.
//
// # Basic Usage
//
//	sess := catalog.NewSession(map[string]backend.Backend{"mem": memdb.New()})
//	_, _ = sess.Execute(ctx, "connect mem")
//	_, _ = sess.Execute(ctx, "create graph g")
//	_, _ = sess.Execute(ctx, "use g")
//	_, err := sess.Execute(ctx, "create node Person")
package pgview

import "errors"

// Sentinel errors for every error kind spec'd for the engine. These are
// setup/compile-time failures, not query results — a query that matches
// nothing returns zero rows and a nil error.
//
// Use the Is*Err helpers to test for a specific kind; wrapped errors
// (via fmt.Errorf("...: %w", ErrX)) still match.
var (
	// ErrParse is returned for any surface-syntax error. Wrapping errors
	// should carry position information in their message.
	ErrParse = errors.New("pgview: parse error")

	// ErrUnknownGraph is returned when a command references a graph that
	// does not exist in the session.
	ErrUnknownGraph = errors.New("pgview: unknown graph")

	// ErrUnknownView is returned when a query or view definition
	// references a view that does not exist on the target graph.
	ErrUnknownView = errors.New("pgview: unknown view")

	// ErrUnknownLabel is returned when a command references a node or
	// edge label not declared in the graph's schema.
	ErrUnknownLabel = errors.New("pgview: unknown label")

	// ErrSchemaConflict is returned when a label is declared twice with
	// different endpoint types.
	ErrSchemaConflict = errors.New("pgview: schema conflict")

	// ErrType is returned when typecheck=on and a pattern is statically
	// unsatisfiable against the schema.
	ErrType = errors.New("pgview: type error")

	// ErrUnsafeRule is returned when a rule's head references a variable
	// not bound in its body.
	ErrUnsafeRule = errors.New("pgview: unsafe rule")

	// ErrUnstratifiedNegation is returned when a negated atom participates
	// in a recursive cycle with its own predicate.
	ErrUnstratifiedNegation = errors.New("pgview: unstratified negation")

	// ErrCyclicViewDependency is returned when a view is defined, directly
	// or transitively, in terms of itself through non-recursive means
	// (anything other than the Kleene-star transitive-closure predicates).
	ErrCyclicViewDependency = errors.New("pgview: cyclic view dependency")

	// ErrSkolemArityMismatch is returned when one Skolem function name is
	// used with two different argument-count call sites within one view.
	ErrSkolemArityMismatch = errors.New("pgview: skolem arity mismatch")

	// ErrBackend is returned for any failure surfaced by a Backend. The
	// session's backend handle may need to be reconnected.
	ErrBackend = errors.New("pgview: backend error")

	// ErrCancelled is returned from a query path when its context is
	// cancelled or its deadline expires. Catalog state is unaffected.
	ErrCancelled = errors.New("pgview: cancelled")
)

// IsParseErr returns true if err is or wraps ErrParse.
func IsParseErr(err error) bool { return errors.Is(err, ErrParse) }

// IsUnknownGraphErr returns true if err is or wraps ErrUnknownGraph.
func IsUnknownGraphErr(err error) bool { return errors.Is(err, ErrUnknownGraph) }

// IsUnknownViewErr returns true if err is or wraps ErrUnknownView.
func IsUnknownViewErr(err error) bool { return errors.Is(err, ErrUnknownView) }

// IsUnknownLabelErr returns true if err is or wraps ErrUnknownLabel.
func IsUnknownLabelErr(err error) bool { return errors.Is(err, ErrUnknownLabel) }

// IsSchemaConflictErr returns true if err is or wraps ErrSchemaConflict.
func IsSchemaConflictErr(err error) bool { return errors.Is(err, ErrSchemaConflict) }

// IsTypeErr returns true if err is or wraps ErrType.
func IsTypeErr(err error) bool { return errors.Is(err, ErrType) }

// IsUnsafeRuleErr returns true if err is or wraps ErrUnsafeRule.
func IsUnsafeRuleErr(err error) bool { return errors.Is(err, ErrUnsafeRule) }

// IsUnstratifiedNegationErr returns true if err is or wraps ErrUnstratifiedNegation.
func IsUnstratifiedNegationErr(err error) bool {
	return errors.Is(err, ErrUnstratifiedNegation)
}

// IsCyclicViewDependencyErr returns true if err is or wraps ErrCyclicViewDependency.
func IsCyclicViewDependencyErr(err error) bool {
	return errors.Is(err, ErrCyclicViewDependency)
}

// IsSkolemArityMismatchErr returns true if err is or wraps ErrSkolemArityMismatch.
func IsSkolemArityMismatchErr(err error) bool {
	return errors.Is(err, ErrSkolemArityMismatch)
}

// IsBackendErr returns true if err is or wraps ErrBackend.
func IsBackendErr(err error) bool { return errors.Is(err, ErrBackend) }

// IsCancelledErr returns true if err is or wraps ErrCancelled.
func IsCancelledErr(err error) bool { return errors.Is(err, ErrCancelled) }

// ExitCode maps an error to the CLI exit code convention from the command
// surface spec: 0 success, 1 parse error, 2 type/schema error, 3 backend
// error, 4 internal invariant violation.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsParseErr(err):
		return 1
	case IsUnknownGraphErr(err), IsUnknownViewErr(err), IsUnknownLabelErr(err),
		IsSchemaConflictErr(err), IsTypeErr(err):
		return 2
	case IsBackendErr(err):
		return 3
	case IsUnsafeRuleErr(err), IsUnstratifiedNegationErr(err),
		IsCyclicViewDependencyErr(err), IsSkolemArityMismatchErr(err):
		return 4
	default:
		return 4
	}
}
