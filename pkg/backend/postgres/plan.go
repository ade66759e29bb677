package postgres

import (
	"fmt"

	"github.com/pgview/pgview/internal/sqlgen"
	"github.com/pgview/pgview/pkg/ir"
)

// numericLiteral approximates strconv.ParseFloat's accepted surface form,
// for the same numeric-then-lexicographic fallback memdb's compareValues
// applies to ordering comparisons (spec.md §9). It deliberately does not
// accept the hex-float or Inf/NaN spellings strconv also allows: property
// values reaching this engine are graph data, never those forms.
const numericLiteral = `^[+-]?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`

// rulePlan is a rendered SELECT statement that evaluates one rule's body:
// executing it returns one row per satisfying binding, with a column per
// variable the head needs. params are the positional arguments in $N
// order; selectVars is the column-alias order matching params' resolved
// head variables, i.e. the order a scanned row's columns must be read in.
type rulePlan struct {
	query      string
	params     []string
	selectVars []string
}

// planSelectRule compiles r's body into a SELECT statement. The head is
// deliberately not rendered into SQL: Skolem terms need pkg/skolem's Go-side
// Intern, so eval.go resolves the head (including any Skolem call) per
// scanned row, the same way memdb.resolveArgs resolves it per binding.
func planSelectRule(schemaName string, r ir.Rule) (*rulePlan, error) {
	p := &planner{schema: schemaName, varCol: make(map[string]string)}

	var atoms []ir.Atom
	var negs []ir.Neg
	var compares []ir.Compare
	for _, lit := range r.Body {
		switch {
		case lit.Atom != nil:
			atoms = append(atoms, *lit.Atom)
		case lit.Neg != nil:
			negs = append(negs, *lit.Neg)
		case lit.Compare != nil:
			compares = append(compares, *lit.Compare)
		}
	}

	from := sqlgen.NewJoiner(", ")
	where := sqlgen.NewJoiner(" AND ")

	if len(atoms) == 0 {
		from.Add("(VALUES (1)) AS " + sqlgen.QuoteIdent("_unit") + "(" + sqlgen.QuoteIdent("_x") + ")")
	}
	for i, atom := range atoms {
		alias := fmt.Sprintf("a%d", i)
		from.Add(sqlgen.QualifyTable(schemaName, atom.Pred) + " AS " + alias)
		for j, term := range atom.Args {
			ref := alias + "." + colName(j)
			cond, err := p.bindArg(term, ref)
			if err != nil {
				return nil, fmt.Errorf("postgres: rule %s: %w", r.Head.Pred, err)
			}
			where.Add(cond)
		}
	}

	for i, neg := range negs {
		cond, err := p.renderNegation(i, neg.Atom)
		if err != nil {
			return nil, fmt.Errorf("postgres: rule %s: %w", r.Head.Pred, err)
		}
		where.Add(cond)
	}

	for _, cmp := range compares {
		cond, err := p.renderCompare(cmp)
		if err != nil {
			return nil, fmt.Errorf("postgres: rule %s: %w", r.Head.Pred, err)
		}
		where.Add(cond)
	}

	selectVars := r.HeadVars()
	sel := sqlgen.NewJoiner(", ")
	for _, v := range selectVars {
		ref, ok := p.varCol[v]
		if !ok {
			return nil, fmt.Errorf("postgres: rule %s: head variable %q is never bound in the body", r.Head.Pred, v)
		}
		sel.Add(ref + " AS " + sqlgen.QuoteIdent(v))
	}
	if sel.Empty() {
		sel.Add("1")
	}

	b := sqlgen.NewBuilder()
	b.Line("SELECT DISTINCT %s", sel.String())
	b.Line("FROM %s", from.String())
	if !where.Empty() {
		b.Line("WHERE %s", where.String())
	}

	return &rulePlan{query: b.String(), params: p.params, selectVars: selectVars}, nil
}

// planner accumulates the $N parameters and variable-to-column bindings for
// one rule while its body literals are rendered in order; database/sql
// requires parameters in the exact textual order their placeholders occur,
// so every renderX method below appends to p.params before returning its
// fragment of SQL text.
type planner struct {
	schema string
	varCol map[string]string
	params []string
}

func (p *planner) nextParam(value string) string {
	p.params = append(p.params, value)
	return fmt.Sprintf("$%d", len(p.params))
}

// bindArg renders the join/equality condition for one atom argument at
// column ref, recording ref as the variable's bound location the first
// time it is seen. A repeat occurrence of an already-bound variable
// becomes an equality condition against its first location, the SQL
// analogue of memdb's unify.
func (p *planner) bindArg(term ir.Term, ref string) (string, error) {
	switch {
	case term.IsVar():
		if existing, ok := p.varCol[term.Var]; ok {
			return ref + " = " + existing, nil
		}
		p.varCol[term.Var] = ref
		return "", nil
	case term.IsSkolem():
		return "", fmt.Errorf("a body atom argument must not be a Skolem term")
	default:
		return ref + " = " + p.nextParam(term.Const), nil
	}
}

// renderNegation renders a NOT EXISTS subquery for a negated atom. Every
// argument must already be bound by an earlier positive atom — the
// compiler only emits negation over variables bound earlier in the same
// body, same restriction memdb's applyNegation relies on.
func (p *planner) renderNegation(idx int, atom ir.Atom) (string, error) {
	alias := fmt.Sprintf("n%d", idx)
	cond := sqlgen.NewJoiner(" AND ")
	for j, term := range atom.Args {
		ref := alias + "." + colName(j)
		switch {
		case term.IsVar():
			existing, ok := p.varCol[term.Var]
			if !ok {
				return "", fmt.Errorf("negated atom %s references unbound variable %q", atom.Pred, term.Var)
			}
			cond.Add(ref + " = " + existing)
		case term.IsSkolem():
			return "", fmt.Errorf("a negated atom argument must not be a Skolem term")
		default:
			cond.Add(ref + " = " + p.nextParam(term.Const))
		}
	}
	sub := "NOT EXISTS (SELECT 1 FROM " + sqlgen.QualifyTable(p.schema, atom.Pred) + " AS " + alias
	if !cond.Empty() {
		sub += " WHERE " + cond.String()
	}
	sub += ")"
	return sub, nil
}

// renderCompare renders one WHERE-clause comparison. "=" and "!=" are
// plain equality/inequality of the resolved operand expressions; the
// ordering operators fall back to a lexicographic comparison unless both
// operands look numeric, matching memdb's compareValues exactly (spec.md
// §9).
func (p *planner) renderCompare(cmp ir.Compare) (string, error) {
	left, err := p.resolveOperand(cmp.Left)
	if err != nil {
		return "", err
	}
	right, err := p.resolveOperand(cmp.Right)
	if err != nil {
		return "", err
	}
	op := string(cmp.Op)
	switch cmp.Op {
	case ir.OpEq:
		return left + " = " + right, nil
	case ir.OpNe:
		return left + " != " + right, nil
	default:
		numre := p.nextParam(numericLiteral)
		return fmt.Sprintf(
			"(CASE WHEN %s ~ %s AND %s ~ %s THEN (%s::double precision) %s (%s::double precision) ELSE %s %s %s END)",
			left, numre, right, numre, left, op, right, left, op, right,
		), nil
	}
}

func (p *planner) resolveOperand(t ir.Term) (string, error) {
	switch {
	case t.IsVar():
		ref, ok := p.varCol[t.Var]
		if !ok {
			return "", fmt.Errorf("comparison references unbound variable %q", t.Var)
		}
		return ref, nil
	case t.IsSkolem():
		return "", fmt.Errorf("a comparison operand must not be a Skolem term")
	default:
		return p.nextParam(t.Const), nil
	}
}
