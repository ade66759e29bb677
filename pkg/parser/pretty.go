package parser

import (
	"fmt"
	"strings"

	"github.com/pgview/pgview/pkg/ast"
)

// Pretty renders cmd back to surface syntax. Reparsing Pretty(cmd) must
// yield an AST equal in meaning to cmd — this is the round-trip property
// exercised in pkg/parser's tests.
func Pretty(cmd *Command) string {
	switch {
	case cmd.Connect != nil:
		return fmt.Sprintf("connect %s", cmd.Connect.Backend)
	case cmd.Disconnect:
		return "disconnect"
	case cmd.CreateGraph != nil:
		return fmt.Sprintf("create graph %s", cmd.CreateGraph.Name)
	case cmd.DropGraph != nil:
		return fmt.Sprintf("drop graph %s", cmd.DropGraph.Name)
	case cmd.UseGraph != nil:
		return fmt.Sprintf("use %s", cmd.UseGraph.Name)
	case cmd.ListGraphs:
		return "list"
	case cmd.CreateNodeLabel != nil:
		return fmt.Sprintf("create node %s", cmd.CreateNodeLabel.Label)
	case cmd.CreateEdgeLabel != nil:
		e := cmd.CreateEdgeLabel
		return fmt.Sprintf("create edge %s(%s -> %s)", e.Label, e.Src, e.Dst)
	case cmd.ShowSchema:
		return "schema"
	case cmd.InsertNode != nil:
		n := cmd.InsertNode
		return fmt.Sprintf("insert N(%d, %s)", n.ID, quote(n.Label))
	case cmd.InsertEdge != nil:
		e := cmd.InsertEdge
		return fmt.Sprintf("insert E(%d, %d, %d, %s)", e.ID, e.Src, e.Dst, quote(e.Label))
	case cmd.InsertNProp != nil:
		n := cmd.InsertNProp
		return fmt.Sprintf("insert NP(%d, %s, %s)", n.ID, quote(n.Key), quote(n.Val))
	case cmd.InsertEProp != nil:
		n := cmd.InsertEProp
		return fmt.Sprintf("insert EP(%d, %s, %s)", n.ID, quote(n.Key), quote(n.Val))
	case cmd.Import != nil:
		return fmt.Sprintf("import %s from %s", importRelName(cmd.Import.Relation), quote(cmd.Import.Path))
	case cmd.CreateView != nil:
		return fmt.Sprintf("create %s", prettyView(cmd.CreateView))
	case cmd.Query != nil:
		return prettyQuery(cmd.Query)
	case cmd.ListViews:
		return "views"
	case cmd.ShowProgram:
		return "program"
	case cmd.ShowEGDs:
		return "egds"
	case cmd.Option != nil:
		state := "off"
		if cmd.Option.On {
			state = "on"
		}
		return fmt.Sprintf("option %s %s", cmd.Option.Name, state)
	case cmd.Quit:
		return "quit"
	default:
		return ""
	}
}

func importRelName(r ImportRelation) string {
	switch r {
	case ImportN:
		return "N"
	case ImportE:
		return "E"
	case ImportNP:
		return "NP"
	case ImportEP:
		return "EP"
	default:
		return "?"
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func prettyView(v *ast.View) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s VIEW %s ON %s", v.Kind, v.Name, v.Source)
	if v.DefaultMap {
		sb.WriteString(" WITH DEFAULT MAP")
	}
	sb.WriteString(" (")
	for i, rb := range v.Rules {
		if i > 0 {
			sb.WriteString(" UNION ")
		}
		sb.WriteString(prettyRuleBlock(rb))
	}
	sb.WriteString(")")
	return sb.String()
}

func prettyRuleBlock(rb ast.RuleBlock) string {
	var sb strings.Builder
	sb.WriteString("MATCH ")
	sb.WriteString(prettyPattern(rb.Match))
	if rb.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(prettyExpr(rb.Where))
	}
	for _, m := range rb.Mappings {
		fmt.Fprintf(&sb, " MAP %s -> %s", m.From, m.ToVar)
		if m.Label != "" {
			fmt.Fprintf(&sb, ":%s", m.Label)
		}
	}
	if len(rb.ConstructNodes) > 0 || len(rb.ConstructEdges) > 0 {
		sb.WriteString(" CONSTRUCT ")
		sb.WriteString(prettyConstructList(rb.ConstructNodes, rb.ConstructEdges))
	}
	for _, a := range rb.Adds {
		sb.WriteString(" ADD ")
		if a.Node != nil {
			sb.WriteString(prettyConstructList([]ast.ConstructNode{*a.Node}, nil))
		} else if a.Edge != nil {
			sb.WriteString(prettyConstructList(nil, []ast.ConstructEdge{*a.Edge}))
		}
	}
	for _, d := range rb.Deletes {
		fmt.Fprintf(&sb, " DELETE %s", d.Var)
	}
	for _, set := range collectSkolems(rb) {
		fmt.Fprintf(&sb, " SET %s = %s", set.v, prettySkolem(set.spec))
	}
	return sb.String()
}

type skolemSetting struct {
	v    ast.Var
	spec ast.SkolemSpec
}

func collectSkolems(rb ast.RuleBlock) []skolemSetting {
	var out []skolemSetting
	for _, n := range rb.ConstructNodes {
		if n.Skolem != nil {
			out = append(out, skolemSetting{v: n.Var, spec: *n.Skolem})
		}
	}
	for _, e := range rb.ConstructEdges {
		if e.Skolem != nil {
			out = append(out, skolemSetting{v: e.Var, spec: *e.Skolem})
		}
	}
	for _, a := range rb.Adds {
		if a.Node != nil && a.Node.Skolem != nil {
			out = append(out, skolemSetting{v: a.Node.Var, spec: *a.Node.Skolem})
		}
		if a.Edge != nil && a.Edge.Skolem != nil {
			out = append(out, skolemSetting{v: a.Edge.Var, spec: *a.Edge.Skolem})
		}
	}
	return out
}

func prettySkolem(spec ast.SkolemSpec) string {
	var sb strings.Builder
	sb.WriteString("SK(")
	sb.WriteString(quote(spec.FnName))
	for _, a := range spec.Args {
		sb.WriteString(", ")
		sb.WriteString(string(a))
	}
	sb.WriteString(")")
	return sb.String()
}

func prettyConstructList(nodes []ast.ConstructNode, edges []ast.ConstructEdge) string {
	// Elements referenced as an edge's endpoints are not repeated as
	// standalone nodes (mirrors the "(a)-[y:L]->(b)" chain grammar).
	inEdge := make(map[ast.Var]struct{})
	for _, e := range edges {
		inEdge[e.Src] = struct{}{}
		inEdge[e.Dst] = struct{}{}
	}
	byVar := make(map[ast.Var]ast.ConstructNode)
	for _, n := range nodes {
		byVar[n.Var] = n
	}

	var parts []string
	printed := make(map[ast.Var]struct{})
	for _, e := range edges {
		src := byVar[e.Src]
		dst := byVar[e.Dst]
		parts = append(parts, fmt.Sprintf("%s-[%s]->%s", prettyConstructNode(src), prettyEdgeLabel(e), prettyConstructNode(dst)))
		printed[e.Src] = struct{}{}
		printed[e.Dst] = struct{}{}
	}
	for _, n := range nodes {
		if _, ok := inEdge[n.Var]; ok {
			continue
		}
		if _, ok := printed[n.Var]; ok {
			continue
		}
		parts = append(parts, prettyConstructNode(n))
	}
	return strings.Join(parts, ", ")
}

func prettyConstructNode(n ast.ConstructNode) string {
	if n.Label == "" {
		return fmt.Sprintf("(%s)", n.Var)
	}
	return fmt.Sprintf("(%s:%s)", n.Var, n.Label)
}

func prettyEdgeLabel(e ast.ConstructEdge) string {
	if e.Label == "" {
		return string(e.Var)
	}
	return fmt.Sprintf("%s:%s", e.Var, e.Label)
}

func prettyQuery(q *ast.Query) string {
	var sb strings.Builder
	sb.WriteString("MATCH ")
	sb.WriteString(prettyPattern(q.Match))
	fmt.Fprintf(&sb, " FROM %s", q.From)
	if q.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(prettyExpr(q.Where))
	}
	sb.WriteString(" RETURN ")
	parts := make([]string, len(q.Return))
	for i, v := range q.Return {
		parts[i] = fmt.Sprintf("(%s)", v)
	}
	sb.WriteString(strings.Join(parts, ","))
	return sb.String()
}

func prettyPattern(pat ast.Pattern) string {
	if len(pat.Edges) == 0 {
		return prettyPatternNode(pat.Nodes[0])
	}
	byVar := make(map[ast.Var]ast.PatternNode)
	for _, n := range pat.Nodes {
		byVar[n.Var] = n
	}
	var sb strings.Builder
	sb.WriteString(prettyPatternNode(byVar[pat.Edges[0].Src]))
	for _, e := range pat.Edges {
		sb.WriteString("-[")
		sb.WriteString(string(e.Var))
		if e.Label != "" {
			sb.WriteString(":")
			sb.WriteString(e.Label)
		}
		if e.Star {
			sb.WriteString("*")
		}
		sb.WriteString("]->")
		sb.WriteString(prettyPatternNode(byVar[e.Dst]))
	}
	return sb.String()
}

func prettyPatternNode(n ast.PatternNode) string {
	if n.Label == "" {
		return fmt.Sprintf("(%s)", n.Var)
	}
	return fmt.Sprintf("(%s:%s)", n.Var, n.Label)
}

func prettyExpr(e ast.Expr) string {
	switch v := e.(type) {
	case ast.Ref:
		return fmt.Sprintf("%s.%s", v.Var, v.Key)
	case ast.Lit:
		if v.Quoted {
			return quote(v.Value)
		}
		return v.Value
	case ast.BinOp:
		return fmt.Sprintf("%s %s %s", prettyExpr(v.Left), v.Op, prettyExpr(v.Right))
	default:
		return ""
	}
}
