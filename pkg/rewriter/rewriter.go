// Package rewriter implements the Query Rewriter (C7, spec.md §4.7): it
// turns a MATCH...FROM...RETURN query into a fresh goal predicate "Ans"
// plus every rule the query transitively depends on.
package rewriter

import (
	"errors"
	"fmt"

	"github.com/pgview/pgview"
	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/compiler"
	"github.com/pgview/pgview/pkg/ir"
)

// ViewResolver looks up a view definition by name, as the catalog does.
type ViewResolver interface {
	LookupView(name string) (*ast.View, bool)
}

// ErrCyclicViewDependency is returned when a view's source chain refers
// back to itself (spec.md §4.8); pkg/assembler also detects this over the
// full assembled program, but the rewriter catches the simpler case of an
// unfoldable self-referential chain before assembly even starts.
var ErrCyclicViewDependency = fmt.Errorf("rewriter: cyclic view dependency: %w", pgview.ErrCyclicViewDependency)

// IsCyclicViewDependency reports whether err is or wraps
// pgview.ErrCyclicViewDependency.
func IsCyclicViewDependency(err error) bool { return errors.Is(err, pgview.ErrCyclicViewDependency) }

// AnsPred is the fresh goal predicate every rewritten query binds.
const AnsPred = "Ans"

// Rewrite lowers q into a goal rule for AnsPred plus every rule q
// transitively depends on (spec.md §4.7):
//
//   - Virtual source: q.From's rules are unfolded in by including them in
//     the returned program; the assembler, not textual substitution,
//     connects them.
//   - Materialized source: q.From's own N_v/E_v/... predicates are
//     referenced as extensional facts; no unfolding.
//   - Hybrid source: same as virtual; its rules are unfolded in. They
//     carry no per-rule mat|virt split (pkg/compiler tags them all virt).
//   - View-on-view: the source chain is recursed with cycle detection.
func Rewrite(q *ast.Query, resolver ViewResolver) ([]ir.Rule, error) {
	var deps []ir.Rule
	if q.From != "g" {
		d, err := compileChain(q.From, resolver, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		deps = d
	}

	body, aux, err := compiler.CompileGoalBody("query", q.From, q.Match, q.Where)
	if err != nil {
		return nil, err
	}
	deps = append(deps, aux...)

	args := make([]ir.Term, len(q.Return))
	for i, v := range q.Return {
		args[i] = ir.VarTerm(string(v))
	}
	goal := ir.Rule{
		Head:       ir.Atom{Pred: AnsPred, Args: args},
		Body:       body,
		Provenance: "query",
		Mat:        false,
	}
	if !goal.Safe() {
		return nil, fmt.Errorf("rewriter: RETURN references a variable not bound in MATCH: %w", errUnsafeGoal)
	}

	return append(deps, goal), nil
}

var errUnsafeGoal = fmt.Errorf("rewriter: unsafe query goal: %w", pgview.ErrUnsafeRule)

// CompileChain compiles name's own rules plus every rule its source chain
// transitively depends on (virtual and hybrid ancestors are inlined; a
// materialized ancestor stops the chain there, same as Rewrite). Unlike
// Rewrite's internal use of compileChain, name's own rules are always
// included regardless of its Kind — this is used by pkg/catalog to
// (re)derive name's own predicates for Materialize, which must run even
// when name itself is the materialized view being refreshed.
func CompileChain(name string, resolver ViewResolver) ([]ir.Rule, error) {
	v, ok := resolver.LookupView(name)
	if !ok {
		return nil, fmt.Errorf("rewriter: unknown view %q", name)
	}
	var deps []ir.Rule
	if v.Source != "g" {
		d, err := compileChain(v.Source, resolver, map[string]bool{name: true})
		if err != nil {
			return nil, err
		}
		deps = d
	}
	rules, err := compiler.Compile(v)
	if err != nil {
		return nil, err
	}
	return append(deps, rules...), nil
}

// compileChain recursively compiles name and everything its source chain
// depends on, materialized or virtual alike (spec.md §4.7: hybrid
// assembly is just mat|virt tagging, no special unfolding logic beyond
// including the rules). visited guards against CyclicViewDependency.
func compileChain(name string, resolver ViewResolver, visited map[string]bool) ([]ir.Rule, error) {
	if visited[name] {
		return nil, fmt.Errorf("%w: view %q", ErrCyclicViewDependency, name)
	}
	visited[name] = true

	v, ok := resolver.LookupView(name)
	if !ok {
		return nil, fmt.Errorf("rewriter: unknown view %q", name)
	}

	if v.Kind == ast.Materialized {
		// A materialized view's N_v/E_v/NP_v/EP_v predicates are
		// populated once by Handle.Materialize and read back as
		// extensional facts; its defining rules are not re-run at query
		// time, and its own Source chain is never walked here.
		return nil, nil
	}

	var deps []ir.Rule
	if v.Source != "g" {
		d, err := compileChain(v.Source, resolver, visited)
		if err != nil {
			return nil, err
		}
		deps = d
	}

	rules, err := compiler.Compile(v)
	if err != nil {
		return nil, err
	}
	return append(deps, rules...), nil
}
