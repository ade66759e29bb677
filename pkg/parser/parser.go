// Package parser implements the recursive-descent parser (C3) described in
// spec.md §4.3: it turns one line of surface syntax into a Command, whose
// CreateView and Query fields carry pkg/ast trees for the view-definition
// and MATCH-query grammars.
package parser

import (
	"strconv"
	"strings"

	"github.com/pgview/pgview/pkg/ast"
)

// Parse parses a single command from src and returns its AST.
func Parse(src string) (*Command, error) {
	p := &parser{lx: newLexer(src)}
	cmd, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// ParseQuery parses a standalone "MATCH ... FROM ... RETURN ..." query,
// without the leading command dispatch. Used by pkg/rewriter callers that
// already know they have a query string.
func ParseQuery(src string) (*ast.Query, error) {
	p := &parser{lx: newLexer(src)}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return q, nil
}

type parser struct {
	lx *lexer
}

func (p *parser) peek() (Token, error) { return p.lx.peek() }
func (p *parser) next() (Token, error) { return p.lx.next() }

func (p *parser) expectEOF() error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.Kind != TokEOF {
		return errAt(t.Pos, "unexpected trailing input %q", t.Text)
	}
	return nil
}

// expectSymbol consumes a TokSymbol with the given text.
func (p *parser) expectSymbol(text string) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.Kind != TokSymbol || t.Text != text {
		return errAt(t.Pos, "expected %q, got %q", text, t.Text)
	}
	return nil
}

// expectKeyword consumes a TokIdent matching kw case-insensitively.
func (p *parser) expectKeyword(kw string) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.Kind != TokIdent || !strings.EqualFold(t.Text, kw) {
		return errAt(t.Pos, "expected %q, got %q", kw, t.Text)
	}
	return nil
}

// peekKeyword reports whether the next token is the ident kw, without consuming.
func (p *parser) peekKeyword(kw string) bool {
	t, err := p.peek()
	if err != nil {
		return false
	}
	return t.Kind == TokIdent && strings.EqualFold(t.Text, kw)
}

func (p *parser) peekSymbol(sym string) bool {
	t, err := p.peek()
	if err != nil {
		return false
	}
	return t.Kind == TokSymbol && t.Text == sym
}

func (p *parser) expectIdent() (string, error) {
	t, err := p.next()
	if err != nil {
		return "", err
	}
	if t.Kind != TokIdent {
		return "", errAt(t.Pos, "expected identifier, got %q", t.Text)
	}
	return t.Text, nil
}

func (p *parser) expectString() (string, error) {
	t, err := p.next()
	if err != nil {
		return "", err
	}
	if t.Kind != TokString {
		return "", errAt(t.Pos, "expected string literal, got %q", t.Text)
	}
	return t.Text, nil
}

func (p *parser) expectNumber() (string, error) {
	t, err := p.next()
	if err != nil {
		return "", err
	}
	if t.Kind != TokNumber {
		return "", errAt(t.Pos, "expected number, got %q", t.Text)
	}
	return t.Text, nil
}

func (p *parser) expectUint() (uint64, error) {
	s, err := p.expectNumber()
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.ParseUint(s, 10, 64)
	if convErr != nil {
		return 0, errAt(p.lx.curPos(), "expected non-negative integer, got %q", s)
	}
	return n, nil
}

// parseCommand dispatches on the leading keyword.
func (p *parser) parseCommand() (*Command, error) {
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.Kind != TokIdent {
		return nil, errAt(t.Pos, "expected a command, got %q", t.Text)
	}

	switch strings.ToLower(t.Text) {
	case "connect":
		p.next()
		backend, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &Command{Connect: &ConnectCmd{Backend: backend}}, nil
	case "disconnect":
		p.next()
		return &Command{Disconnect: true}, nil
	case "create":
		return p.parseCreate()
	case "drop":
		p.next()
		if err := p.expectKeyword("graph"); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &Command{DropGraph: &DropGraphCmd{Name: name}}, nil
	case "use":
		p.next()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &Command{UseGraph: &UseGraphCmd{Name: name}}, nil
	case "list":
		p.next()
		return &Command{ListGraphs: true}, nil
	case "schema":
		p.next()
		return &Command{ShowSchema: true}, nil
	case "insert":
		return p.parseInsert()
	case "import":
		return p.parseImport()
	case "match":
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		return &Command{Query: q}, nil
	case "views":
		p.next()
		return &Command{ListViews: true}, nil
	case "program":
		p.next()
		return &Command{ShowProgram: true}, nil
	case "egds":
		p.next()
		return &Command{ShowEGDs: true}, nil
	case "option":
		p.next()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		onTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		var on bool
		switch strings.ToLower(onTok) {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return nil, errAt(t.Pos, "expected \"on\" or \"off\", got %q", onTok)
		}
		return &Command{Option: &OptionCmd{Name: name, On: on}}, nil
	case "quit":
		p.next()
		return &Command{Quit: true}, nil
	default:
		return nil, errAt(t.Pos, "unrecognized command %q", t.Text)
	}
}

// parseCreate handles "create graph|node|edge" and "CREATE <kind> VIEW ...".
func (p *parser) parseCreate() (*Command, error) {
	p.next() // "create"
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.Kind != TokIdent {
		return nil, errAt(t.Pos, "expected graph, node, edge, or a view kind, got %q", t.Text)
	}

	switch strings.ToLower(t.Text) {
	case "graph":
		p.next()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &Command{CreateGraph: &CreateGraphCmd{Name: name}}, nil
	case "node":
		p.next()
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &Command{CreateNodeLabel: &CreateNodeLabelCmd{Label: label}}, nil
	case "edge":
		p.next()
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		src, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("->"); err != nil {
			return nil, err
		}
		dst, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &Command{CreateEdgeLabel: &CreateEdgeLabelCmd{Label: label, Src: src, Dst: dst}}, nil
	case "virtual", "materialized", "hybrid":
		v, err := p.parseView()
		if err != nil {
			return nil, err
		}
		return &Command{CreateView: v}, nil
	default:
		return nil, errAt(t.Pos, "expected graph, node, edge, or a view kind, got %q", t.Text)
	}
}

// parseView parses the body after "CREATE", i.e. "<kind> VIEW <name> ON
// <src> [WITH DEFAULT MAP] ( ruleBlock (UNION ruleBlock)* )".
func (p *parser) parseView() (*ast.View, error) {
	kindTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var kind ast.ViewKind
	switch strings.ToLower(kindTok) {
	case "virtual":
		kind = ast.Virtual
	case "materialized":
		kind = ast.Materialized
	case "hybrid":
		kind = ast.Hybrid
	default:
		return nil, errAt(p.lx.curPos(), "expected virtual, materialized, or hybrid, got %q", kindTok)
	}
	if err := p.expectKeyword("view"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("on"); err != nil {
		return nil, err
	}
	src, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	defaultMap := false
	if p.peekKeyword("with") {
		p.next()
		if err := p.expectKeyword("default"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("map"); err != nil {
			return nil, err
		}
		defaultMap = true
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var rules []ast.RuleBlock
	for {
		rb, err := p.parseRuleBlock()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rb)
		if p.peekKeyword("union") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &ast.View{Name: name, Kind: kind, Source: src, DefaultMap: defaultMap, Rules: rules}, nil
}

// parseRuleBlock parses "match [where] [map*] [construct] [add*] [delete*] [set*]".
func (p *parser) parseRuleBlock() (ast.RuleBlock, error) {
	var rb ast.RuleBlock

	if err := p.expectKeyword("match"); err != nil {
		return rb, err
	}
	pat, err := p.parsePattern()
	if err != nil {
		return rb, err
	}
	rb.Match = pat

	if p.peekKeyword("where") {
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return rb, err
		}
		rb.Where = expr
	}

	for p.peekKeyword("map") {
		p.next()
		from, err := p.parseVar()
		if err != nil {
			return rb, err
		}
		if err := p.expectSymbol("->"); err != nil {
			return rb, err
		}
		to, err := p.parseVar()
		if err != nil {
			return rb, err
		}
		label := ""
		if p.peekSymbol(":") {
			p.next()
			label, err = p.expectIdent()
			if err != nil {
				return rb, err
			}
		}
		rb.Mappings = append(rb.Mappings, ast.Mapping{From: from, ToVar: to, Label: label})
	}

	if p.peekKeyword("construct") {
		p.next()
		nodes, edges, err := p.parsePatternList(true)
		if err != nil {
			return rb, err
		}
		rb.ConstructNodes = nodes
		rb.ConstructEdges = edges
	}

	for p.peekKeyword("add") {
		p.next()
		nodes, edges, err := p.parsePatternList(true)
		if err != nil {
			return rb, err
		}
		for _, n := range nodes {
			n := n
			rb.Adds = append(rb.Adds, ast.AddSpec{Node: &n})
		}
		for _, e := range edges {
			e := e
			rb.Adds = append(rb.Adds, ast.AddSpec{Edge: &e})
		}
	}

	for p.peekKeyword("delete") {
		p.next()
		v, err := p.parseVar()
		if err != nil {
			return rb, err
		}
		rb.Deletes = append(rb.Deletes, ast.DeleteSpec{Var: v})
	}

	for p.peekKeyword("set") {
		p.next()
		v, err := p.parseVar()
		if err != nil {
			return rb, err
		}
		if err := p.expectSymbol("="); err != nil {
			return rb, err
		}
		spec, err := p.parseSkolemSpec()
		if err != nil {
			return rb, err
		}
		applySkolem(&rb, v, spec)
	}

	return rb, nil
}

// applySkolem attaches spec to whichever construct/add element declared v.
func applySkolem(rb *ast.RuleBlock, v ast.Var, spec ast.SkolemSpec) {
	for i := range rb.ConstructNodes {
		if rb.ConstructNodes[i].Var == v {
			rb.ConstructNodes[i].Skolem = &spec
			return
		}
	}
	for i := range rb.ConstructEdges {
		if rb.ConstructEdges[i].Var == v {
			rb.ConstructEdges[i].Skolem = &spec
			return
		}
	}
	for i := range rb.Adds {
		if rb.Adds[i].Node != nil && rb.Adds[i].Node.Var == v {
			rb.Adds[i].Node.Skolem = &spec
			return
		}
		if rb.Adds[i].Edge != nil && rb.Adds[i].Edge.Var == v {
			rb.Adds[i].Edge.Skolem = &spec
			return
		}
	}
}

// parseSkolemSpec parses "SK" "(" string ("," Var)* ")".
func (p *parser) parseSkolemSpec() (ast.SkolemSpec, error) {
	var spec ast.SkolemSpec
	if err := p.expectKeyword("sk"); err != nil {
		return spec, err
	}
	if err := p.expectSymbol("("); err != nil {
		return spec, err
	}
	fn, err := p.expectString()
	if err != nil {
		return spec, err
	}
	spec.FnName = fn
	for p.peekSymbol(",") {
		p.next()
		v, err := p.parseVar()
		if err != nil {
			return spec, err
		}
		spec.Args = append(spec.Args, v)
	}
	if err := p.expectSymbol(")"); err != nil {
		return spec, err
	}
	return spec, nil
}

func (p *parser) parseVar() (ast.Var, error) {
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	return ast.Var(name), nil
}

// parsePattern parses a node-edge-node... chain: "(" var [":" label] ")"
// ( "-" "[" var [":" label] ["*"] "]" "->" "(" var [":" label] ")" )*
func (p *parser) parsePattern() (ast.Pattern, error) {
	var pat ast.Pattern
	nodes := make(map[ast.Var]struct{})

	n, err := p.parsePatternNode()
	if err != nil {
		return pat, err
	}
	pat.Nodes = append(pat.Nodes, n)
	nodes[n.Var] = struct{}{}

	for p.peekSymbol("-") {
		p.next()
		if err := p.expectSymbol("["); err != nil {
			return pat, err
		}
		ev, err := p.parseVar()
		if err != nil {
			return pat, err
		}
		label := ""
		if p.peekSymbol(":") {
			p.next()
			label, err = p.expectIdent()
			if err != nil {
				return pat, err
			}
		}
		star := false
		if p.peekSymbol("*") {
			p.next()
			star = true
		}
		if err := p.expectSymbol("]"); err != nil {
			return pat, err
		}
		if err := p.expectSymbol("->"); err != nil {
			return pat, err
		}
		next, err := p.parsePatternNode()
		if err != nil {
			return pat, err
		}
		src := pat.Nodes[len(pat.Nodes)-1].Var
		pat.Edges = append(pat.Edges, ast.PatternEdge{Var: ev, Src: src, Dst: next.Var, Label: label, Star: star})
		if _, ok := nodes[next.Var]; !ok {
			pat.Nodes = append(pat.Nodes, next)
			nodes[next.Var] = struct{}{}
		}
	}
	return pat, nil
}

func (p *parser) parsePatternNode() (ast.PatternNode, error) {
	var n ast.PatternNode
	if err := p.expectSymbol("("); err != nil {
		return n, err
	}
	v, err := p.parseVar()
	if err != nil {
		return n, err
	}
	n.Var = v
	if p.peekSymbol(":") {
		p.next()
		label, err := p.expectIdent()
		if err != nil {
			return n, err
		}
		n.Label = label
	}
	if err := p.expectSymbol(")"); err != nil {
		return n, err
	}
	return n, nil
}

// parsePatternList parses a comma-separated list of node/edge patterns, as
// used by CONSTRUCT and ADD. When allowStandaloneEdge is true, a chain like
// "(a)-[y:Derived]->(b)" contributes both a ConstructEdge and, for any node
// not already known to be bound, nothing extra (the edge's endpoints are
// assumed bound by MATCH unless independently listed).
func (p *parser) parsePatternList(allowStandaloneEdge bool) ([]ast.ConstructNode, []ast.ConstructEdge, error) {
	var nodes []ast.ConstructNode
	var edges []ast.ConstructEdge

	for {
		n, err := p.parsePatternNode()
		if err != nil {
			return nodes, edges, err
		}
		cn := ast.ConstructNode{Var: n.Var, Label: n.Label}
		if p.peekSymbol("-") && allowStandaloneEdge {
			p.next()
			if err := p.expectSymbol("["); err != nil {
				return nodes, edges, err
			}
			ev, err := p.parseVar()
			if err != nil {
				return nodes, edges, err
			}
			label := ""
			if p.peekSymbol(":") {
				p.next()
				label, err = p.expectIdent()
				if err != nil {
					return nodes, edges, err
				}
			}
			if err := p.expectSymbol("]"); err != nil {
				return nodes, edges, err
			}
			if err := p.expectSymbol("->"); err != nil {
				return nodes, edges, err
			}
			dst, err := p.parsePatternNode()
			if err != nil {
				return nodes, edges, err
			}
			nodes = append(nodes, cn)
			nodes = append(nodes, ast.ConstructNode{Var: dst.Var, Label: dst.Label})
			edges = append(edges, ast.ConstructEdge{Var: ev, Src: cn.Var, Dst: dst.Var, Label: label})
		} else {
			nodes = append(nodes, cn)
		}

		if p.peekSymbol(",") {
			p.next()
			continue
		}
		break
	}
	return nodes, edges, nil
}

// parseQuery parses "MATCH <pattern> FROM <src> [WHERE <expr>] RETURN
// (<var>){,(<var>)}".
func (p *parser) parseQuery() (*ast.Query, error) {
	if err := p.expectKeyword("match"); err != nil {
		return nil, err
	}
	pat, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	src, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.peekKeyword("where") {
		p.next()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("return"); err != nil {
		return nil, err
	}
	var ret []ast.Var
	for {
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		v, err := p.parseVar()
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		if p.peekSymbol(",") {
			p.next()
			continue
		}
		break
	}
	return &ast.Query{Match: pat, From: src, Where: where, Return: ret}, nil
}

// parseExpr parses a WHERE expression: a chain of comparisons joined by AND.
// Grammar: expr := cmp ("AND" cmp)*; cmp := operand op operand.
func (p *parser) parseExpr() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("and") {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.BinOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return ast.BinOp{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseCompareOp() (string, error) {
	t, err := p.next()
	if err != nil {
		return "", err
	}
	if t.Kind != TokSymbol {
		return "", errAt(t.Pos, "expected a comparison operator, got %q", t.Text)
	}
	switch t.Text {
	case "=", "!=", "<", ">", "<=", ">=":
		return t.Text, nil
	default:
		return "", errAt(t.Pos, "expected a comparison operator, got %q", t.Text)
	}
}

// parseOperand parses a Ref ("var.key") or a Lit (string or number).
func (p *parser) parseOperand() (ast.Expr, error) {
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case TokString:
		p.next()
		return ast.Lit{Value: t.Text, Quoted: true}, nil
	case TokNumber:
		p.next()
		return ast.Lit{Value: t.Text}, nil
	case TokIdent:
		p.next()
		if err := p.expectSymbol("."); err != nil {
			return nil, err
		}
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.Ref{Var: ast.Var(t.Text), Key: key}, nil
	default:
		return nil, errAt(t.Pos, "expected a variable reference or literal, got %q", t.Text)
	}
}

// parseInsert handles "insert N(...)", "insert E(...)", "insert NP(...)",
// and "insert EP(...)".
func (p *parser) parseInsert() (*Command, error) {
	p.next() // "insert"
	rel, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}

	switch strings.ToUpper(rel) {
	case "N":
		id, err := p.expectUint()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
		label, err := p.expectString()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &Command{InsertNode: &InsertNodeCmd{ID: id, Label: label}}, nil
	case "E":
		id, err := p.expectUint()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
		src, err := p.expectUint()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
		dst, err := p.expectUint()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
		label, err := p.expectString()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &Command{InsertEdge: &InsertEdgeCmd{ID: id, Src: src, Dst: dst, Label: label}}, nil
	case "NP", "EP":
		id, err := p.expectUint()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
		key, err := p.expectString()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
		val, err := p.expectString()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		cmd := &InsertPropCmd{ID: id, Key: key, Val: val}
		if strings.ToUpper(rel) == "NP" {
			return &Command{InsertNProp: cmd}, nil
		}
		return &Command{InsertEProp: cmd}, nil
	default:
		return nil, errAt(p.lx.curPos(), "expected N, E, NP, or EP, got %q", rel)
	}
}

// parseImport handles "import {N|E|NP|EP} from \"<path>\"".
func (p *parser) parseImport() (*Command, error) {
	p.next() // "import"
	rel, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var relation ImportRelation
	switch strings.ToUpper(rel) {
	case "N":
		relation = ImportN
	case "E":
		relation = ImportE
	case "NP":
		relation = ImportNP
	case "EP":
		relation = ImportEP
	default:
		return nil, errAt(p.lx.curPos(), "expected N, E, NP, or EP, got %q", rel)
	}
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	path, err := p.expectString()
	if err != nil {
		return nil, err
	}
	return &Command{Import: &ImportCmd{Relation: relation, Path: path}}, nil
}
