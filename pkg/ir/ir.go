// Package ir defines the normalized rule representation that pkg/compiler
// emits and pkg/rewriter/pkg/assembler/pkg/backend consume: a Datalog-style
// program of predicates and rules, independent of any storage backend.
//
// Predicates partition into three kinds (spec.md §3):
//
//   - base: N, E, NP, EP over the source graph "g"
//   - per-view: N_v, E_v, NP_v, EP_v for each view v
//   - auxiliary: TC_<label>_<v> for Kleene-star transitive closures
package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Term is a bound Var, a constant Const, or a Skolem function application,
// appearing in an Atom's argument list. At most one of Var, Skolem is set;
// Const is meaningful only when both are unset.
type Term struct {
	Var    string // non-empty for a variable
	Const  string // used when Var == "" and Skolem == nil
	Skolem *SkolemCall
}

// SkolemCall is a CONSTRUCT/ADD element's "SET v = SK(fn, args...)"
// clause, lowered into the term the backend must compute at rule-firing
// time via pkg/skolem.Registry.Intern(FnName, boundValuesOf(Args)).
// Args are always plain variables (spec.md §4.3 grammar).
type SkolemCall struct {
	FnName string
	Args   []Term
}

// IsVar reports whether t is a plain variable (as opposed to a constant or
// a Skolem application).
func (t Term) IsVar() bool { return t.Var != "" }

// IsSkolem reports whether t is a Skolem function application.
func (t Term) IsSkolem() bool { return t.Skolem != nil }

// String renders t for debugging/pretty-printing.
func (t Term) String() string {
	switch {
	case t.IsVar():
		return t.Var
	case t.IsSkolem():
		parts := make([]string, len(t.Skolem.Args))
		for i, a := range t.Skolem.Args {
			parts[i] = a.String()
		}
		return fmt.Sprintf("SK(%s, %s)", strconv.Quote(t.Skolem.FnName), strings.Join(parts, ", "))
	default:
		return strconv.Quote(t.Const)
	}
}

// VarTerm builds a variable term.
func VarTerm(name string) Term { return Term{Var: name} }

// ConstTerm builds a constant term.
func ConstTerm(value string) Term { return Term{Const: value} }

// SkolemTerm builds a Skolem-application term from a function name and the
// already-bound variables feeding it.
func SkolemTerm(fnName string, args ...string) Term {
	vars := make([]Term, len(args))
	for i, a := range args {
		vars[i] = VarTerm(a)
	}
	return Term{Skolem: &SkolemCall{FnName: fnName, Args: vars}}
}

// Atom is a predicate application, e.g. N_v(a, "Person") or E(x, s, d, l).
type Atom struct {
	Pred string
	Args []Term
}

// String renders the atom for debugging.
func (a Atom) String() string {
	parts := make([]string, len(a.Args))
	for i, t := range a.Args {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%s(%s)", a.Pred, strings.Join(parts, ", "))
}

// CompareOp is a WHERE-clause comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpGt CompareOp = ">"
	OpLe CompareOp = "<="
	OpGe CompareOp = ">="
)

// Compare is a body literal comparing two terms, at least one of which is
// typically a variable bound earlier in the body. Per spec.md §9: "=" and
// "!=" are always string equality; the ordering operators attempt a
// numeric parse on both operands and fall back to lexicographic
// comparison if either fails.
type Compare struct {
	Op          CompareOp
	Left, Right Term
}

// Neg is a negated atom in a rule body. The assembler rejects any Neg
// whose predicate participates in the same recursive SCC as the rule's
// head predicate (stratified negation, spec.md §4.8).
type Neg struct {
	Atom Atom
}

// Lit is a body literal: a positive atom, a negated atom, or a
// comparison.
type Lit struct {
	Atom    *Atom
	Neg     *Neg
	Compare *Compare
}

// PosAtom wraps a positive atom as a Lit.
func PosAtom(a Atom) Lit { return Lit{Atom: &a} }

// NegAtom wraps a negated atom as a Lit.
func NegAtom(a Atom) Lit { return Lit{Neg: &Neg{Atom: a}} }

// CompareLit wraps a comparison as a Lit.
func CompareLit(c Compare) Lit { return Lit{Compare: &c} }

// Pred returns the predicate name a body literal reads from, used by the
// assembler to build the predicate dependency graph.
func (l Lit) Pred() string {
	switch {
	case l.Atom != nil:
		return l.Atom.Pred
	case l.Neg != nil:
		return l.Neg.Atom.Pred
	default:
		return ""
	}
}

// Rule is one normalized Datalog rule: Head :- Body., tagged with the
// view that produced it (or "g" for base-graph facts) and whether it
// should be evaluated eagerly (materialized) or left for unfolding
// (virtual). pkg/compiler sets Mat from the view's kind only: every rule
// of a Materialized view is mat, and every rule of a Virtual or Hybrid
// view is virt; a Hybrid view's rules are not tagged individually.
type Rule struct {
	Head       Atom
	Body       []Lit
	Provenance string // view name, or "g" for base facts
	Mat        bool   // true if this rule's head predicate is materialized
}

// String renders the rule for debugging.
func (r Rule) String() string {
	parts := make([]string, len(r.Body))
	for i, l := range r.Body {
		switch {
		case l.Atom != nil:
			parts[i] = l.Atom.String()
		case l.Neg != nil:
			parts[i] = "not " + l.Neg.Atom.String()
		case l.Compare != nil:
			parts[i] = fmt.Sprintf("%s %s %s", l.Compare.Left, l.Compare.Op, l.Compare.Right)
		}
	}
	return fmt.Sprintf("%s :- %s.", r.Head, strings.Join(parts, ", "))
}

// HeadVars returns the distinct variables that must be bound in r's body
// for the head to be well-formed: plain variables in head position, plus
// the argument variables feeding any Skolem term (a Skolem's own result is
// computed, not bound, so it never needs a body binding; its arguments
// do).
func (r Rule) HeadVars() []string {
	return requiredVars(r.Head.Args)
}

func requiredVars(args []Term) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(v string) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, a := range args {
		switch {
		case a.IsVar():
			add(a.Var)
		case a.IsSkolem():
			for _, v := range requiredVars(a.Skolem.Args) {
				add(v)
			}
		}
	}
	return out
}

// BodyVars returns the distinct variables appearing positively in r's
// body (atoms only; negation and comparisons do not bind).
func (r Rule) BodyVars() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range r.Body {
		if l.Atom == nil {
			continue
		}
		for _, v := range varsOf(l.Atom.Args) {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}

// Safe reports whether every variable in r's head appears positively in
// r's body — the safety invariant spec.md §4.6 requires of every rule.
func (r Rule) Safe() bool {
	bound := make(map[string]struct{})
	for _, v := range r.BodyVars() {
		bound[v] = struct{}{}
	}
	for _, v := range r.HeadVars() {
		if _, ok := bound[v]; !ok {
			return false
		}
	}
	return true
}

func varsOf(args []Term) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range args {
		if a.IsVar() {
			if _, ok := seen[a.Var]; !ok {
				seen[a.Var] = struct{}{}
				out = append(out, a.Var)
			}
		}
	}
	return out
}

// Program is an ordered, assembled rule set, ready for a Backend to
// evaluate (pkg/assembler produces these).
type Program struct {
	// Rules is in SCC-topological order: every rule a stratum depends on
	// appears in an earlier or same stratum.
	Rules []Rule
	// Strata groups rule indices into evaluation strata; Strata[i] must
	// be fully evaluated before Strata[i+1] begins, to honor stratified
	// negation.
	Strata [][]int
}

// Predicates returns the sorted set of distinct predicate names appearing
// anywhere in p (as a head or in a body), for diagnostics.
func (p Program) Predicates() []string {
	seen := make(map[string]struct{})
	for _, r := range p.Rules {
		seen[r.Head.Pred] = struct{}{}
		for _, l := range r.Body {
			if pred := l.Pred(); pred != "" {
				seen[pred] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
