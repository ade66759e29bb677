// Package typecheck implements the Type Checker & Pruner (C5, spec.md
// §4.5): fixed-point propagation of label constraints over a pattern's
// edges, followed by either rejecting or pruning statically-unsatisfiable
// rule branches depending on session options.
package typecheck

import (
	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/schema"
)

// Policy controls what happens to a statically-unsatisfiable pattern.
// Per spec.md §4.5, TypeError takes precedence over pruning when both are
// enabled.
type Policy struct {
	TypeCheck  bool
	PruneQuery bool
}

// Check propagates label constraints over pat's edges against sc, using
// schema edge endpoints to narrow adjacent node labels. It returns
// ErrTypeError if the pattern is unsatisfiable and TypeCheck is enabled;
// otherwise it returns (false, nil) when the pattern is satisfiable, or
// (true, nil) when it is unsatisfiable but was merely flagged for the
// caller to prune (PruneQuery enabled, TypeCheck disabled).
//
// With both options off, Check never reports unsatisfiability: the
// pattern is emitted as-is (spec.md §4.5).
func Check(pat ast.Pattern, sc *schema.Schema, pol Policy) (prune bool, err error) {
	labels := initialLabels(pat)
	if !propagate(pat, sc, labels) {
		switch {
		case pol.TypeCheck:
			return false, ErrTypeError
		case pol.PruneQuery:
			return true, nil
		default:
			return false, nil
		}
	}
	return false, nil
}

// initialLabels seeds each variable's candidate label set from the
// pattern's own constraints (empty string means unconstrained).
func initialLabels(pat ast.Pattern) map[ast.Var]map[string]struct{} {
	labels := make(map[ast.Var]map[string]struct{})
	for _, n := range pat.Nodes {
		set := make(map[string]struct{})
		if n.Label != "" {
			set[n.Label] = struct{}{}
		}
		labels[n.Var] = set
	}
	return labels
}

// propagate runs a fixed-point pass: for each starred or plain edge with a
// label constraint, intersect the endpoint variables' candidate sets with
// the schema's declared endpoints for that label. Returns false if any
// variable's candidate set becomes empty while it started non-empty
// (a conflict), i.e. the pattern is statically unsatisfiable.
func propagate(pat ast.Pattern, sc *schema.Schema, labels map[ast.Var]map[string]struct{}) bool {
	changed := true
	for changed {
		changed = false
		for _, e := range pat.Edges {
			if e.Label == "" {
				continue
			}
			ep, err := sc.Endpoints(schema.EdgeLabel(e.Label))
			if err != nil {
				// Unknown edge labels are a schema-validity concern
				// handled elsewhere; typecheck treats them as
				// unconstrained here.
				continue
			}
			if narrow(labels, e.Src, string(ep.Src)) {
				changed = true
			}
			if narrow(labels, e.Dst, string(ep.Dst)) {
				changed = true
			}
			if isEmpty(labels[e.Src]) || isEmpty(labels[e.Dst]) {
				return false
			}
		}
	}
	return true
}

// narrow intersects v's candidate set with {required} when v was
// previously unconstrained (empty set means "any label"); once a
// candidate set is non-empty it has already been narrowed and a
// conflicting further narrowing empties it, signalling unsatisfiability.
func narrow(labels map[ast.Var]map[string]struct{}, v ast.Var, required string) bool {
	cur, ok := labels[v]
	if !ok {
		labels[v] = map[string]struct{}{required: {}}
		return true
	}
	if len(cur) == 0 {
		// unconstrained: adopt the required label
		labels[v] = map[string]struct{}{required: {}}
		return true
	}
	if _, ok := cur[required]; !ok {
		labels[v] = map[string]struct{}{}
		return true
	}
	return false
}

// isEmpty reports a conflict. narrow() only ever leaves a variable's
// candidate set at length 0 after a requirement collided with an already
//-narrowed set; an untouched, genuinely unconstrained variable keeps its
// initial empty set until the first narrow() call adopts a label into it.
func isEmpty(set map[string]struct{}) bool {
	return len(set) == 0
}
