package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pgview/pgview/internal/sqlgen"
	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/pkg/skolem"
)

// binding maps a variable name to its bound value, scanned back from one
// row of a rulePlan's SELECT.
type binding map[string]string

// evaluateProgram runs prog stratum by stratum, leaving every predicate it
// derives persisted in h's schema. Every such predicate's table is
// truncated first: like memdb, this engine recomputes a program's IDB
// predicates fully on each call rather than maintaining them incrementally
// (see DESIGN.md's IVM entry), so leftover rows from a prior run — or from
// a now-smaller EDB under stratified negation — must not survive.
func (h *handle) evaluateProgram(ctx context.Context, prog *ir.Program) error {
	arities := programArities(prog)
	for pred, arity := range arities {
		if err := h.ensureTableLocked(ctx, pred, arity); err != nil {
			return err
		}
	}

	heads := make(map[string]bool)
	for _, r := range prog.Rules {
		heads[r.Head.Pred] = true
	}
	for pred := range heads {
		if err := truncateTable(ctx, h.db, h.schema, pred); err != nil {
			return err
		}
	}

	for _, stratum := range prog.Strata {
		rules := make([]ir.Rule, len(stratum))
		for i, idx := range stratum {
			rules[i] = prog.Rules[idx]
		}
		if err := h.runStratumToFixpoint(ctx, rules); err != nil {
			return err
		}
	}
	return nil
}

// runStratumToFixpoint repeatedly evaluates every rule in the stratum
// against the current table contents until a pass inserts no new row. A
// naive (non-delta) fixpoint matches memdb's choice: the assembler permits
// recursion only through small TC_ predicates, so the extra passes cost
// little next to the complexity of tracking deltas in SQL.
func (h *handle) runStratumToFixpoint(ctx context.Context, rules []ir.Rule) error {
	plans := make([]*rulePlan, len(rules))
	inserts := make([]string, len(rules))
	for i, r := range rules {
		plan, err := planSelectRule(h.schema, r)
		if err != nil {
			return err
		}
		plans[i] = plan
		inserts[i] = insertStmt(h.schema, r.Head.Pred, len(r.Head.Args))
	}

	for {
		changed := false
		for i, r := range rules {
			n, err := h.fireRule(ctx, r, plans[i], inserts[i])
			if err != nil {
				return err
			}
			if n > 0 {
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
}

// fireRule runs one rule's SELECT, resolves each returned row's head
// (computing any Skolem term via pkg/skolem) and inserts the resulting
// tuples, returning how many were new.
func (h *handle) fireRule(ctx context.Context, r ir.Rule, plan *rulePlan, insert string) (int, error) {
	args := make([]any, len(plan.params))
	for i, v := range plan.params {
		args[i] = v
	}
	rows, err := h.db.QueryContext(ctx, plan.query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: evaluating rule %s: %w", r.Head.Pred, err)
	}
	defer rows.Close()

	dest := make([]any, len(plan.selectVars))
	scanned := make([]string, len(plan.selectVars))
	for i := range scanned {
		dest[i] = &scanned[i]
	}

	var bindings []binding
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return 0, fmt.Errorf("postgres: scanning rule %s: %w", r.Head.Pred, err)
		}
		b := make(binding, len(plan.selectVars))
		for i, v := range plan.selectVars {
			b[v] = scanned[i]
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("postgres: reading rule %s: %w", r.Head.Pred, err)
	}

	if len(bindings) == 0 {
		return 0, nil
	}

	stmt, err := h.db.PrepareContext(ctx, insert)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	affected := 0
	for _, b := range bindings {
		resolved, ok := resolveArgs(r.Head.Args, b, h.skolems)
		if !ok {
			continue
		}
		insertArgs := make([]any, len(resolved))
		for i, v := range resolved {
			insertArgs[i] = v
		}
		res, err := stmt.ExecContext(ctx, insertArgs...)
		if err != nil {
			return affected, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return affected, err
		}
		affected += int(n)
	}
	return affected, nil
}

// resolveArgs resolves a head atom's args to concrete values, computing
// Skolem terms via skReg. Mirrors memdb's resolveArgs exactly, operating on
// a binding scanned from SQL instead of one produced by in-memory joins.
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

// selectAll returns every tuple currently stored for pred, ordered by
// column for deterministic iteration.
func (h *handle) selectAll(ctx context.Context, pred string, arity int) ([]backend.Tuple, error) {
	cols := make([]string, arity)
	for i := range cols {
		cols[i] = sqlgen.QuoteIdent(colName(i))
	}
	colList := sqlgen.NewJoiner(", ").Add(cols...).String()
	order := ""
	if arity > 0 {
		order = " ORDER BY " + colList
	}
	query := "SELECT " + colList + " FROM " + sqlgen.QualifyTable(h.schema, pred) + order
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backend.Tuple
	for rows.Next() {
		vals := make([]string, arity)
		dest := make([]any, arity)
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, backend.Tuple(vals))
	}
	return out, rows.Err()
}

// programArities returns every predicate prog's rules mention (as a head
// or body atom, positive or negated) mapped to its argument count, used to
// ensure every table a stratum's rendered SQL will reference already
// exists before that SQL runs.
func programArities(prog *ir.Program) map[string]int {
	out := make(map[string]int)
	note := func(pred string, arity int) {
		out[pred] = arity
	}
	for _, r := range prog.Rules {
		note(r.Head.Pred, len(r.Head.Args))
		for _, lit := range r.Body {
			switch {
			case lit.Atom != nil:
				note(lit.Atom.Pred, len(lit.Atom.Args))
			case lit.Neg != nil:
				note(lit.Neg.Atom.Pred, len(lit.Neg.Atom.Args))
			}
		}
	}
	return out
}
