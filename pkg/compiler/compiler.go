// Package compiler implements the View Compiler (C6, spec.md §4.6): it
// lowers one view's rule blocks into a set of normalized pkg/ir.Rule
// values with heads in predicates N_v, E_v, NP_v, EP_v.
package compiler

import (
	"fmt"
	"sort"

	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/ir"
)

// Compile lowers v into its rule set, including any TC_<label>_<v>
// auxiliary rules its starred pattern edges require. Every returned
// rule's Mat tag comes from v's Kind alone: true for a Materialized view,
// false for Virtual and Hybrid views. Hybrid rules are not split into
// mat and virt, and no later stage changes the tag.
func Compile(v *ast.View) ([]ir.Rule, error) {
	c := &compiler{view: v, skolemArity: make(map[string]int), tcEmitted: make(map[string]bool)}
	mat := v.Kind == ast.Materialized

	var rules []ir.Rule
	for idx, rb := range v.Rules {
		rs, err := c.compileRuleBlock(idx, rb, mat)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rs...)
	}
	rules = append(rules, c.aux...)
	return rules, nil
}

type compiler struct {
	view        *ast.View
	skolemArity map[string]int
	tcEmitted   map[string]bool
	aux         []ir.Rule
	fresh       int
}

func (c *compiler) freshVar(hint string) string {
	c.fresh++
	return fmt.Sprintf("_%s_%d", hint, c.fresh)
}

func (c *compiler) nodePred() string { return nodePred(c.view.Source) }
func (c *compiler) edgePred() string { return edgePred(c.view.Source) }
func (c *compiler) nodePropPred() string { return nodePropPred(c.view.Source) }
func (c *compiler) edgePropPred() string { return edgePropPred(c.view.Source) }

// NodePred, EdgePred, NodePropPred, and EdgePropPred name the four
// predicates a source (the base graph "g", or another view's name)
// contributes. pkg/rewriter reuses these when lowering a query's own
// MATCH pattern against the same source naming convention.
func NodePred(source string) string {
	if source == "g" {
		return "N"
	}
	return "N_" + source
}

func EdgePred(source string) string {
	if source == "g" {
		return "E"
	}
	return "E_" + source
}

func NodePropPred(source string) string {
	if source == "g" {
		return "NP"
	}
	return "NP_" + source
}

func EdgePropPred(source string) string {
	if source == "g" {
		return "EP"
	}
	return "EP_" + source
}

func nodePred(source string) string     { return NodePred(source) }
func edgePred(source string) string     { return EdgePred(source) }
func nodePropPred(source string) string { return NodePropPred(source) }
func edgePropPred(source string) string { return EdgePropPred(source) }

func tcPred(label, viewName string) string {
	return fmt.Sprintf("TC_%s_%s", label, viewName)
}

// compileRuleBlock compiles one MATCH...CONSTRUCT...ADD...DELETE...SET
// block into independent rules, one head atom per default-mapped or
// constructed/added element (spec.md §4.6 algorithm, steps 1-7).
func (c *compiler) compileRuleBlock(idx int, rb ast.RuleBlock, mat bool) ([]ir.Rule, error) {
	nodeVars, edgeVars, body, err := c.compileMatchWhere(idx, rb.Match, rb.Where)
	if err != nil {
		return nil, err
	}

	var rules []ir.Rule

	mappingByVar := make(map[ast.Var]ast.Mapping)
	for _, m := range rb.Mappings {
		mappingByVar[m.From] = m
	}
	deleted := make(map[ast.Var]struct{})
	for _, d := range rb.Deletes {
		deleted[d.Var] = struct{}{}
	}

	// Default MAP (spec.md §4.6 step 2): every matched node carries
	// through with its source label unless deleted or relabeled.
	for _, n := range rb.Match.Nodes {
		if _, ok := deleted[n.Var]; ok {
			continue
		}
		label := n.Label
		if m, ok := mappingByVar[n.Var]; ok && m.Label != "" {
			label = m.Label
		}
		head := ir.Atom{Pred: c.viewNodePred(), Args: []ir.Term{ir.VarTerm(string(n.Var)), ir.ConstTerm(label)}}
		r := ir.Rule{Head: head, Body: body, Provenance: c.view.Name, Mat: mat}
		if !r.Safe() {
			return nil, unsafeRuleErr(c.view.Name, idx, head.String())
		}
		rules = append(rules, r)
		// The node's properties carry through with it into NP_v.
		k, val := ir.VarTerm(c.freshVar("k")), ir.VarTerm(c.freshVar("val"))
		propArgs := []ir.Term{ir.VarTerm(string(n.Var)), k, val}
		propBody := append(append([]ir.Lit(nil), body...), ir.PosAtom(ir.Atom{Pred: c.nodePropPred(), Args: propArgs}))
		rules = append(rules, ir.Rule{Head: ir.Atom{Pred: "NP_" + c.view.Name, Args: propArgs}, Body: propBody, Provenance: c.view.Name, Mat: mat})
	}
	// Default MAP for non-starred matched edges.
	for _, e := range rb.Match.Edges {
		if e.Star {
			continue
		}
		if _, ok := deleted[e.Var]; ok {
			continue
		}
		label := e.Label
		if m, ok := mappingByVar[e.Var]; ok && m.Label != "" {
			label = m.Label
		}
		head := ir.Atom{Pred: c.viewEdgePred(), Args: []ir.Term{ir.VarTerm(string(e.Var)), ir.VarTerm(string(e.Src)), ir.VarTerm(string(e.Dst)), ir.ConstTerm(label)}}
		r := ir.Rule{Head: head, Body: body, Provenance: c.view.Name, Mat: mat}
		if !r.Safe() {
			return nil, unsafeRuleErr(c.view.Name, idx, head.String())
		}
		rules = append(rules, r)
		// The edge's properties carry through with it into EP_v.
		k, val := ir.VarTerm(c.freshVar("k")), ir.VarTerm(c.freshVar("val"))
		propArgs := []ir.Term{ir.VarTerm(string(e.Var)), k, val}
		propBody := append(append([]ir.Lit(nil), body...), ir.PosAtom(ir.Atom{Pred: c.edgePropPred(), Args: propArgs}))
		rules = append(rules, ir.Rule{Head: ir.Atom{Pred: "EP_" + c.view.Name, Args: propArgs}, Body: propBody, Provenance: c.view.Name, Mat: mat})
	}

	// CONSTRUCT and ADD: both produce new N_v/E_v facts; ADD additionally
	// requires the element not be bound in MATCH (spec.md §4.6 step 4).
	bound := make(map[ast.Var]ir.Term)
	for v := range nodeVars {
		bound[v] = ir.VarTerm(string(v))
	}
	for v := range edgeVars {
		bound[v] = ir.VarTerm(string(v))
	}

	for _, cn := range rb.ConstructNodes {
		r, err := c.compileConstructNode(idx, cn, nodeVars, bound, body, mat)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	for _, ce := range rb.ConstructEdges {
		r, err := c.compileConstructEdge(idx, ce, nodeVars, bound, body, mat)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	for _, a := range rb.Adds {
		switch {
		case a.Node != nil:
			r, err := c.compileConstructNode(idx, *a.Node, nodeVars, bound, body, mat)
			if err != nil {
				return nil, err
			}
			rules = append(rules, r)
		case a.Edge != nil:
			r, err := c.compileConstructEdge(idx, *a.Edge, nodeVars, bound, body, mat)
			if err != nil {
				return nil, err
			}
			rules = append(rules, r)
		}
	}

	return rules, nil
}

func (c *compiler) viewNodePred() string { return "N_" + c.view.Name }
func (c *compiler) viewEdgePred() string { return "E_" + c.view.Name }

// compileConstructNode lowers one CONSTRUCT/ADD node element. If var is
// bound in MATCH, its term carries through (with the source label unless
// overridden); otherwise it must be Skolemized, explicitly or by default
// synthesis (spec.md §4.6 step 3).
func (c *compiler) compileConstructNode(idx int, cn ast.ConstructNode, nodeVars map[ast.Var]ast.PatternNode, bound map[ast.Var]ir.Term, body []ir.Lit, mat bool) (ir.Rule, error) {
	term, label, err := c.resolveConstructTerm(idx, cn.Var, cn.Label, cn.Skolem, nodeVars, bound)
	if err != nil {
		return ir.Rule{}, err
	}
	bound[cn.Var] = term
	head := ir.Atom{Pred: c.viewNodePred(), Args: []ir.Term{term, ir.ConstTerm(label)}}
	r := ir.Rule{Head: head, Body: body, Provenance: c.view.Name, Mat: mat}
	if !r.Safe() {
		return ir.Rule{}, unsafeRuleErr(c.view.Name, idx, head.String())
	}
	return r, nil
}

// compileConstructEdge lowers one CONSTRUCT/ADD edge element. Src/Dst must
// resolve to a bound or already-constructed term within the same rule
// block.
func (c *compiler) compileConstructEdge(idx int, ce ast.ConstructEdge, nodeVars map[ast.Var]ast.PatternNode, bound map[ast.Var]ir.Term, body []ir.Lit, mat bool) (ir.Rule, error) {
	term, label, err := c.resolveConstructTerm(idx, ce.Var, ce.Label, ce.Skolem, nodeVars, bound)
	if err != nil {
		return ir.Rule{}, err
	}
	srcTerm, ok := bound[ce.Src]
	if !ok {
		return ir.Rule{}, fmt.Errorf("view %q rule %d: construct edge %q references unbound endpoint %q: %w", c.view.Name, idx, ce.Var, ce.Src, ErrUnsafeRule)
	}
	dstTerm, ok := bound[ce.Dst]
	if !ok {
		return ir.Rule{}, fmt.Errorf("view %q rule %d: construct edge %q references unbound endpoint %q: %w", c.view.Name, idx, ce.Var, ce.Dst, ErrUnsafeRule)
	}
	bound[ce.Var] = term
	head := ir.Atom{Pred: c.viewEdgePred(), Args: []ir.Term{term, srcTerm, dstTerm, ir.ConstTerm(label)}}
	r := ir.Rule{Head: head, Body: body, Provenance: c.view.Name, Mat: mat}
	if !r.Safe() {
		return ir.Rule{}, unsafeRuleErr(c.view.Name, idx, head.String())
	}
	return r, nil
}

// resolveConstructTerm implements spec.md §4.6 steps 3-4: a construct
// element bound in MATCH carries its own term through (label defaults to
// the source label when omitted); an unbound element must be Skolemized,
// explicitly via SET or by default synthesis with function name
// "__auto_<ruleIdx>_<var>". Default synthesis args are every variable
// already bound in this rule (sorted for determinism), so distinct
// bindings of the same rule mint distinct ids.
func (c *compiler) resolveConstructTerm(idx int, v ast.Var, label string, skolem *ast.SkolemSpec, nodeVars map[ast.Var]ast.PatternNode, bound map[ast.Var]ir.Term) (ir.Term, string, error) {
	if n, ok := nodeVars[v]; ok {
		if label == "" {
			label = n.Label
		}
		return ir.VarTerm(string(v)), label, nil
	}
	if t, ok := bound[v]; ok && skolem == nil {
		return t, label, nil
	}

	fnName := fmt.Sprintf("__auto_%d_%s", idx, v)
	var args []string
	if skolem != nil {
		fnName = skolem.FnName
		for _, a := range skolem.Args {
			args = append(args, string(a))
		}
	} else {
		for bv := range bound {
			args = append(args, string(bv))
		}
		sort.Strings(args)
	}

	if want, ok := c.skolemArity[fnName]; ok && want != len(args) {
		return ir.Term{}, "", arityMismatchErr(c.view.Name, fnName, want, len(args))
	}
	c.skolemArity[fnName] = len(args)

	for _, a := range args {
		if _, ok := bound[ast.Var(a)]; !ok {
			return ir.Term{}, "", fmt.Errorf("view %q rule %d: skolem %q argument %q is not bound: %w", c.view.Name, idx, fnName, a, ErrUnsafeRule)
		}
	}

	return ir.SkolemTerm(fnName, args...), label, nil
}

// buildTCRules emits the two-rule transitive-closure definition for one
// (label, view) pair (spec.md §4.6 step 7):
//
//	TC(x,y) :- E_s(_,x,y,label).
//	TC(x,z) :- TC(x,y), E_s(_,y,z,label).
func (c *compiler) buildTCRules(pred, label string) []ir.Rule {
	edgeP := c.edgePred()
	base := ir.Rule{
		Head: ir.Atom{Pred: pred, Args: []ir.Term{ir.VarTerm("x"), ir.VarTerm("y")}},
		Body: []ir.Lit{
			ir.PosAtom(ir.Atom{Pred: edgeP, Args: []ir.Term{ir.VarTerm("_e"), ir.VarTerm("x"), ir.VarTerm("y"), ir.ConstTerm(label)}}),
		},
		Provenance: c.view.Name,
		Mat:        false,
	}
	step := ir.Rule{
		Head: ir.Atom{Pred: pred, Args: []ir.Term{ir.VarTerm("x"), ir.VarTerm("z")}},
		Body: []ir.Lit{
			ir.PosAtom(ir.Atom{Pred: pred, Args: []ir.Term{ir.VarTerm("x"), ir.VarTerm("y")}}),
			ir.PosAtom(ir.Atom{Pred: edgeP, Args: []ir.Term{ir.VarTerm("_e2"), ir.VarTerm("y"), ir.VarTerm("z"), ir.ConstTerm(label)}}),
		},
		Provenance: c.view.Name,
		Mat:        false,
	}
	return []ir.Rule{base, step}
}

// compileMatchWhere lowers a MATCH pattern plus optional WHERE expression
// into body literals, emitting TC_ auxiliary rules for starred edges as a
// side effect (collected in c.aux). Shared by compileRuleBlock and the
// exported CompileGoalBody, which pkg/rewriter uses to lower a query's own
// pattern the same way.
func (c *compiler) compileMatchWhere(idx int, pat ast.Pattern, where ast.Expr) (map[ast.Var]ast.PatternNode, map[ast.Var]ast.PatternEdge, []ir.Lit, error) {
	nodeVars := make(map[ast.Var]ast.PatternNode)
	for _, n := range pat.Nodes {
		nodeVars[n.Var] = n
	}
	edgeVars := make(map[ast.Var]ast.PatternEdge)
	for _, e := range pat.Edges {
		edgeVars[e.Var] = e
	}

	var body []ir.Lit
	for _, n := range pat.Nodes {
		labelTerm := ir.ConstTerm(n.Label)
		if n.Label == "" {
			labelTerm = ir.VarTerm(c.freshVar("lbl_" + string(n.Var)))
		}
		body = append(body, ir.PosAtom(ir.Atom{
			Pred: c.nodePred(),
			Args: []ir.Term{ir.VarTerm(string(n.Var)), labelTerm},
		}))
	}
	for _, e := range pat.Edges {
		if e.Star {
			if e.Label == "" {
				return nil, nil, nil, fmt.Errorf("view %q rule %d: starred edge %q requires a label", c.view.Name, idx, e.Var)
			}
			pred := tcPred(e.Label, c.view.Name)
			if !c.tcEmitted[pred] {
				c.tcEmitted[pred] = true
				c.aux = append(c.aux, c.buildTCRules(pred, e.Label)...)
			}
			body = append(body, ir.PosAtom(ir.Atom{
				Pred: pred,
				Args: []ir.Term{ir.VarTerm(string(e.Src)), ir.VarTerm(string(e.Dst))},
			}))
			continue
		}
		labelTerm := ir.ConstTerm(e.Label)
		if e.Label == "" {
			labelTerm = ir.VarTerm(c.freshVar("lbl_" + string(e.Var)))
		}
		body = append(body, ir.PosAtom(ir.Atom{
			Pred: c.edgePred(),
			Args: []ir.Term{ir.VarTerm(string(e.Var)), ir.VarTerm(string(e.Src)), ir.VarTerm(string(e.Dst)), labelTerm},
		}))
	}

	if where != nil {
		lits, err := c.translateExpr(where, nodeVars, edgeVars)
		if err != nil {
			return nil, nil, nil, err
		}
		body = append(body, lits...)
	}
	return nodeVars, edgeVars, body, nil
}

// CompileGoalBody lowers a bare pattern (and optional WHERE expr) against
// source into body literals plus any TC_ auxiliary rules its starred
// edges require, scoped under scopeName (used for TC predicate naming).
// pkg/rewriter uses this to build a query's goal rule without going
// through a view's CONSTRUCT/MAP machinery.
func CompileGoalBody(scopeName, source string, pat ast.Pattern, where ast.Expr) ([]ir.Lit, []ir.Rule, error) {
	c := &compiler{
		view:        &ast.View{Name: scopeName, Source: source},
		skolemArity: make(map[string]int),
		tcEmitted:   make(map[string]bool),
	}
	_, _, body, err := c.compileMatchWhere(0, pat, where)
	if err != nil {
		return nil, nil, err
	}
	return body, c.aux, nil
}

// translateExpr lowers a WHERE expression into body literals. The surface
// grammar only produces a chain of comparisons joined by AND (no OR, no
// negation) — see pkg/parser's parseExpr.
func (c *compiler) translateExpr(e ast.Expr, nodeVars map[ast.Var]ast.PatternNode, edgeVars map[ast.Var]ast.PatternEdge) ([]ir.Lit, error) {
	bin, ok := e.(ast.BinOp)
	if !ok {
		return nil, fmt.Errorf("view %q: unsupported WHERE expression %T", c.view.Name, e)
	}
	if bin.Op == "AND" {
		left, err := c.translateExpr(bin.Left, nodeVars, edgeVars)
		if err != nil {
			return nil, err
		}
		right, err := c.translateExpr(bin.Right, nodeVars, edgeVars)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}

	var lits []ir.Lit
	leftTerm, extra, err := c.translateOperand(bin.Left, nodeVars, edgeVars)
	if err != nil {
		return nil, err
	}
	lits = append(lits, extra...)
	rightTerm, extra, err := c.translateOperand(bin.Right, nodeVars, edgeVars)
	if err != nil {
		return nil, err
	}
	lits = append(lits, extra...)

	lits = append(lits, ir.CompareLit(ir.Compare{Op: ir.CompareOp(bin.Op), Left: leftTerm, Right: rightTerm}))
	return lits, nil
}

// translateOperand lowers a Ref or Lit into an ir.Term, emitting a
// property-lookup atom for Ref operands (a.key becomes a fresh value
// variable bound by NP_s/EP_s).
func (c *compiler) translateOperand(e ast.Expr, nodeVars map[ast.Var]ast.PatternNode, edgeVars map[ast.Var]ast.PatternEdge) (ir.Term, []ir.Lit, error) {
	switch v := e.(type) {
	case ast.Lit:
		return ir.ConstTerm(v.Value), nil, nil
	case ast.Ref:
		valVar := c.freshVar(string(v.Var) + "_" + v.Key)
		var pred string
		switch {
		case isInMap(nodeVars, v.Var):
			pred = c.nodePropPred()
		case isInMap(edgeVars, v.Var):
			pred = c.edgePropPred()
		default:
			return ir.Term{}, nil, fmt.Errorf("view %q: %q is not bound in MATCH", c.view.Name, v.Var)
		}
		atom := ir.PosAtom(ir.Atom{Pred: pred, Args: []ir.Term{ir.VarTerm(string(v.Var)), ir.ConstTerm(v.Key), ir.VarTerm(valVar)}})
		return ir.VarTerm(valVar), []ir.Lit{atom}, nil
	default:
		return ir.Term{}, nil, fmt.Errorf("view %q: unsupported operand %T", c.view.Name, e)
	}
}

func isInMap[K comparable, V any](m map[K]V, k K) bool {
	_, ok := m[k]
	return ok
}
