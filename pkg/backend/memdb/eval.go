// Package memdb is a reference pkg/backend.Backend implementation: an
// in-memory fact store and a stratified bottom-up Datalog evaluator.
// Grounded on the EDB/IDB separation and stratum-at-a-time evaluation
// shown in mwelt-contki's Program/DeltaProgram design and the
// substitution-map unification style in twolodzko's Atom.unify, adapted
// here to a set-based bottom-up fixpoint rather than their goal-directed
// resolution (a better fit for a backend that must answer "all tuples of
// this predicate", not one query at a time).
package memdb

import (
	"strconv"

	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/pkg/skolem"
)

// binding maps a variable name to its bound value.
type binding map[string]string

// evaluateProgram runs prog stratum by stratum against facts (mutated in
// place with every derived IDB tuple) and returns the tuples of goal.
//
// Every predicate prog derives is reset to empty first. IDB predicates
// must be fully recomputed on each call, not accumulated across calls:
// the rewriter's AnsPred is reused verbatim by every query on a handle,
// and stratified negation means a predicate derived under an older,
// smaller EDB can become wrong (too large) once new facts arrive — the
// naive fixpoint below only ever adds tuples, so starting from stale
// leftovers would never retract what negation now excludes. Predicates
// facts already holds that prog does NOT derive (base EDB relations,
// or another program's already-materialized predicates) are left alone.
func evaluateProgram(facts map[string]*relation, prog *ir.Program, skReg *skolem.Registry) {
	for _, r := range prog.Rules {
		facts[r.Head.Pred] = newRelation()
	}
	for _, stratum := range prog.Strata {
		rules := make([]ir.Rule, len(stratum))
		for i, idx := range stratum {
			rules[i] = prog.Rules[idx]
		}
		runStratumToFixpoint(rules, facts, skReg)
	}
}

// runStratumToFixpoint repeatedly evaluates every rule in the stratum
// against the current fact set until a pass derives no new tuples. Since
// the assembler permits recursion only through small TC_ predicates, a
// naive (non-delta) fixpoint keeps the evaluator simple without a
// meaningful performance cost for this backend's target scale.
func runStratumToFixpoint(rules []ir.Rule, facts map[string]*relation, skReg *skolem.Registry) {
	for {
		changed := false
		for _, r := range rules {
			bindings := evalBody(r.Body, facts)
			rel := relOf(facts, r.Head.Pred)
			for _, b := range bindings {
				args, ok := resolveArgs(r.Head.Args, b, skReg)
				if !ok {
					continue
				}
				if rel.add(args) {
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

func relOf(facts map[string]*relation, pred string) *relation {
	rel, ok := facts[pred]
	if !ok {
		rel = newRelation()
		facts[pred] = rel
	}
	return rel
}

// evalBody joins body literals left to right against the current bindings
// frontier, starting from a single empty binding.
func evalBody(body []ir.Lit, facts map[string]*relation) []binding {
	bindings := []binding{{}}
	for _, lit := range body {
		if len(bindings) == 0 {
			return bindings
		}
		switch {
		case lit.Atom != nil:
			bindings = joinAtom(bindings, *lit.Atom, facts)
		case lit.Neg != nil:
			bindings = applyNegation(bindings, lit.Neg.Atom, facts)
		case lit.Compare != nil:
			bindings = applyCompare(bindings, *lit.Compare)
		}
	}
	return bindings
}

// joinAtom extends every binding in bindings with each tuple of
// facts[atom.Pred] that unifies with atom's args, dropping bindings with
// no match.
func joinAtom(bindings []binding, atom ir.Atom, facts map[string]*relation) []binding {
	rel, ok := facts[atom.Pred]
	if !ok {
		return nil
	}
	var out []binding
	for _, b := range bindings {
		for _, tuple := range rel.all() {
			if len(tuple) != len(atom.Args) {
				continue
			}
			if nb, ok := unify(b, atom.Args, tuple); ok {
				out = append(out, nb)
			}
		}
	}
	return out
}

// unify attempts to extend b so that args, evaluated under the result,
// equals tuple component-wise. Returns a fresh binding map; b itself is
// never mutated, since the same b is tried against many tuples.
func unify(b binding, args []ir.Term, tuple []string) (binding, bool) {
	nb := make(binding, len(b)+len(args))
	for k, v := range b {
		nb[k] = v
	}
	for i, a := range args {
		val := tuple[i]
		switch {
		case a.IsVar():
			if existing, ok := nb[a.Var]; ok {
				if existing != val {
					return nil, false
				}
			} else {
				nb[a.Var] = val
			}
		case a.IsSkolem():
			// A body atom should never carry a Skolem term (those only
			// appear in rule heads); treat as a non-match defensively.
			return nil, false
		default:
			if a.Const != val {
				return nil, false
			}
		}
	}
	return nb, true
}

// applyNegation keeps bindings for which atom (fully resolved under b)
// has no matching tuple. Every argument must already be bound — the
// compiler only emits negated atoms over variables bound earlier in the
// same body.
func applyNegation(bindings []binding, atom ir.Atom, facts map[string]*relation) []binding {
	rel, ok := facts[atom.Pred]
	var out []binding
	for _, b := range bindings {
		args, allBound := resolveArgsNoSkolem(atom.Args, b)
		if !allBound {
			continue
		}
		if ok && rel.has(args) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func resolveArgsNoSkolem(args []ir.Term, b binding) ([]string, bool) {
	out := make([]string, len(args))
	for i, a := range args {
		switch {
		case a.IsVar():
			v, ok := b[a.Var]
			if !ok {
				return nil, false
			}
			out[i] = v
		case a.IsSkolem():
			return nil, false
		default:
			out[i] = a.Const
		}
	}
	return out, true
}

// applyCompare filters bindings by a Compare literal, using the typing
// policy from spec.md §9: "=" and "!=" are always string equality; the
// ordering operators try a numeric parse on both operands and fall back
// to lexicographic comparison if either fails.
func applyCompare(bindings []binding, cmp ir.Compare) []binding {
	var out []binding
	for _, b := range bindings {
		left, lok := resolveTermNoSkolem(cmp.Left, b)
		right, rok := resolveTermNoSkolem(cmp.Right, b)
		if !lok || !rok {
			continue
		}
		if compareValues(left, right, cmp.Op) {
			out = append(out, b)
		}
	}
	return out
}

func resolveTermNoSkolem(t ir.Term, b binding) (string, bool) {
	switch {
	case t.IsVar():
		v, ok := b[t.Var]
		return v, ok
	case t.IsSkolem():
		return "", false
	default:
		return t.Const, true
	}
}

func compareValues(left, right string, op ir.CompareOp) bool {
	switch op {
	case ir.OpEq:
		return left == right
	case ir.OpNe:
		return left != right
	default:
		lf, lerr := strconv.ParseFloat(left, 64)
		rf, rerr := strconv.ParseFloat(right, 64)
		if lerr == nil && rerr == nil {
			return compareNumeric(lf, rf, op)
		}
		return compareLexicographic(left, right, op)
	}
}

func compareNumeric(l, r float64, op ir.CompareOp) bool {
	switch op {
	case ir.OpLt:
		return l < r
	case ir.OpGt:
		return l > r
	case ir.OpLe:
		return l <= r
	case ir.OpGe:
		return l >= r
	default:
		return false
	}
}

func compareLexicographic(l, r string, op ir.CompareOp) bool {
	switch op {
	case ir.OpLt:
		return l < r
	case ir.OpGt:
		return l > r
	case ir.OpLe:
		return l <= r
	case ir.OpGe:
		return l >= r
	default:
		return false
	}
}

// resolveArgs resolves a head atom's args to concrete values, computing
// Skolem terms via skReg. Returns ok=false if any variable is unbound
// (should not happen for a Safe rule).
func resolveArgs(args []ir.Term, b binding, skReg *skolem.Registry) ([]string, bool) {
	out := make([]string, len(args))
	for i, a := range args {
		v, ok := resolveTerm(a, b, skReg)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func resolveTerm(t ir.Term, b binding, skReg *skolem.Registry) (string, bool) {
	switch {
	case t.IsVar():
		v, ok := b[t.Var]
		return v, ok
	case t.IsSkolem():
		args := make([]string, len(t.Skolem.Args))
		for i, a := range t.Skolem.Args {
			v, ok := resolveTerm(a, b, skReg)
			if !ok {
				return "", false
			}
			args[i] = v
		}
		id := skReg.Intern(t.Skolem.FnName, args)
		return strconv.FormatUint(id, 10), true
	default:
		return t.Const, true
	}
}
