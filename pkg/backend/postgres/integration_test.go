package postgres_test

import (
	"context"
	"testing"

	"github.com/pgview/pgview/pkg/assembler"
	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/backend/postgres"
	"github.com/pgview/pgview/pkg/compiler"
	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/test/testutil"
)

// openHandle connects to the shared test container under a fresh schema,
// skipping in short mode the way this corpus's own Postgres-backed
// integration tests skip when a live database isn't worth starting.
func openHandle(t *testing.T) backend.Handle {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := testutil.DSN(t)
	schemaName := testutil.SchemaName(t)
	h, err := postgres.New().Open(context.Background(), map[string]string{"dsn": dsn, "schema": schemaName})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func TestHandle_InsertAndEvaluateBaseFacts(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()

	if err := h.InsertFacts(ctx, "N", []backend.Row{{"1", "Person"}, {"2", "Person"}}); err != nil {
		t.Fatalf("InsertFacts: %v", err)
	}

	prog := &ir.Program{
		Rules: []ir.Rule{
			{Head: ir.Atom{Pred: "Ans", Args: []ir.Term{ir.VarTerm("id")}},
				Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("id"), ir.VarTerm("l")}})}},
		},
		Strata: [][]int{{0}},
	}

	tuples, err := h.Evaluate(ctx, prog, "Ans")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tuples) != 2 {
		t.Fatalf("expected 2 tuples, got %d: %+v", len(tuples), tuples)
	}
}

func TestHandle_EvaluateUnknownPredicateReturnsEmpty(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()
	prog := &ir.Program{Rules: nil, Strata: nil}
	tuples, err := h.Evaluate(ctx, prog, "Nope")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tuples) != 0 {
		t.Fatalf("expected no tuples, got %+v", tuples)
	}
}

func TestHandle_ClosedHandleRejectsOperations(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()
	if err := h.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.InsertFacts(ctx, "N", []backend.Row{{"1", "Person"}}); !backend.IsBackendError(err) {
		t.Fatalf("expected backend error after close, got %v", err)
	}
}

// TestHandle_BasicSelectionView exercises scenario 1 of the worked
// examples end to end against a real database: compile a basic-selection
// view and evaluate a query over it.
func TestHandle_BasicSelectionView(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()

	if err := h.InsertFacts(ctx, "N", []backend.Row{{"1", "Person"}, {"2", "Person"}, {"3", "Company"}}); err != nil {
		t.Fatalf("InsertFacts N: %v", err)
	}
	if err := h.InsertFacts(ctx, "E", []backend.Row{{"10", "1", "2", "Knows"}}); err != nil {
		t.Fatalf("InsertFacts E: %v", err)
	}

	view := &ast.View{
		Name:   "F",
		Kind:   ast.Virtual,
		Source: "g",
		Rules: []ast.RuleBlock{{
			Match: ast.Pattern{
				Nodes: []ast.PatternNode{{Var: "a", Label: "Person"}, {Var: "b", Label: "Person"}},
				Edges: []ast.PatternEdge{{Var: "x", Src: "a", Dst: "b", Label: "Knows"}},
			},
		}},
	}
	rules, err := compiler.Compile(view)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	goal, _, err := compiler.CompileGoalBody("query", "F", ast.Pattern{
		Nodes: []ast.PatternNode{{Var: "a"}},
	}, nil)
	if err != nil {
		t.Fatalf("CompileGoalBody: %v", err)
	}
	rules = append(rules, ir.Rule{
		Head: ir.Atom{Pred: "Ans", Args: []ir.Term{ir.VarTerm("a")}},
		Body: goal,
	})

	prog, err := assembler.Assemble(rules)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	tuples, err := h.Evaluate(ctx, prog, "Ans")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tuples) != 2 || tuples[0][0] != "1" || tuples[1][0] != "2" {
		t.Fatalf("expected a=1 and a=2, got %+v", tuples)
	}
}

// TestHandle_TransitiveClosure mirrors memdb's scenario-3 coverage: a
// Kleene-star edge pattern over a 5-node chain, rendered here as a real
// stratum-by-stratum loop of SQL statements against a Postgres table
// instead of an in-memory relation.
func TestHandle_TransitiveClosure(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()

	nodes := []backend.Row{{"1", "Person"}, {"2", "Person"}, {"3", "Person"}, {"4", "Person"}, {"5", "Person"}}
	if err := h.InsertFacts(ctx, "N", nodes); err != nil {
		t.Fatalf("InsertFacts N: %v", err)
	}
	edges := []backend.Row{
		{"10", "1", "2", "Knows"},
		{"11", "2", "3", "Knows"},
		{"12", "3", "4", "Knows"},
		{"13", "4", "5", "Knows"},
	}
	if err := h.InsertFacts(ctx, "E", edges); err != nil {
		t.Fatalf("InsertFacts E: %v", err)
	}

	view := &ast.View{
		Name:   "Reach",
		Kind:   ast.Virtual,
		Source: "g",
		Rules: []ast.RuleBlock{{
			Match: ast.Pattern{
				Nodes: []ast.PatternNode{{Var: "a", Label: "Person"}, {Var: "b", Label: "Person"}},
				Edges: []ast.PatternEdge{{Var: "x", Src: "a", Dst: "b", Label: "Knows", Star: true}},
			},
		}},
	}
	rules, err := compiler.Compile(view)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	prog, err := assembler.Assemble(rules)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	tuples, err := h.Evaluate(ctx, prog, "TC_Knows_Reach")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tuples) != 10 {
		t.Fatalf("expected 10 reachability pairs, got %d: %+v", len(tuples), tuples)
	}
}

func TestEvaluateProgram_SkolemDeterminismAcrossRules(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()
	if err := h.InsertFacts(ctx, "N", []backend.Row{{"1", "Person"}}); err != nil {
		t.Fatalf("InsertFacts: %v", err)
	}

	mkRule := func(head string) ir.Rule {
		return ir.Rule{
			Head: ir.Atom{Pred: head, Args: []ir.Term{ir.SkolemTerm("mint", "a")}},
			Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("a"), ir.VarTerm("l")}})},
		}
	}
	prog := &ir.Program{
		Rules:  []ir.Rule{mkRule("P1"), mkRule("P2")},
		Strata: [][]int{{0, 1}},
	}

	t1, err := h.Evaluate(ctx, prog, "P1")
	if err != nil {
		t.Fatalf("Evaluate P1: %v", err)
	}
	t2, err := h.Evaluate(ctx, prog, "P2")
	if err != nil {
		t.Fatalf("Evaluate P2: %v", err)
	}
	if len(t1) != 1 || len(t2) != 1 || t1[0][0] != t2[0][0] {
		t.Fatalf("expected identical synthesized ids from the same (fn, args), got %+v vs %+v", t1, t2)
	}
}

func TestEvaluateProgram_NegationExcludesMatched(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()
	if err := h.InsertFacts(ctx, "N", []backend.Row{{"1", "Person"}, {"2", "Person"}}); err != nil {
		t.Fatalf("InsertFacts N: %v", err)
	}
	if err := h.InsertFacts(ctx, "Tagged", []backend.Row{{"1"}}); err != nil {
		t.Fatalf("InsertFacts Tagged: %v", err)
	}

	prog := &ir.Program{
		Rules: []ir.Rule{
			{
				Head: ir.Atom{Pred: "Ans", Args: []ir.Term{ir.VarTerm("a")}},
				Body: []ir.Lit{
					ir.PosAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("a"), ir.VarTerm("l")}}),
					ir.NegAtom(ir.Atom{Pred: "Tagged", Args: []ir.Term{ir.VarTerm("a")}}),
				},
			},
		},
		Strata: [][]int{{0}},
	}

	tuples, err := h.Evaluate(ctx, prog, "Ans")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tuples) != 1 || tuples[0][0] != "2" {
		t.Fatalf("expected only node 2 (not tagged), got %+v", tuples)
	}
}

func TestEvaluateProgram_NumericThenLexicographicCompare(t *testing.T) {
	h := openHandle(t)
	ctx := context.Background()
	if err := h.InsertFacts(ctx, "NP", []backend.Row{{"1", "age", "30"}, {"2", "age", "9"}, {"3", "age", "abc"}}); err != nil {
		t.Fatalf("InsertFacts: %v", err)
	}

	prog := &ir.Program{
		Rules: []ir.Rule{
			{
				Head: ir.Atom{Pred: "Ans", Args: []ir.Term{ir.VarTerm("id")}},
				Body: []ir.Lit{
					ir.PosAtom(ir.Atom{Pred: "NP", Args: []ir.Term{ir.VarTerm("id"), ir.ConstTerm("age"), ir.VarTerm("v")}}),
					ir.CompareLit(ir.Compare{Op: ir.OpGt, Left: ir.VarTerm("v"), Right: ir.ConstTerm("25")}),
				},
			},
		},
		Strata: [][]int{{0}},
	}

	tuples, err := h.Evaluate(ctx, prog, "Ans")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tuples) != 2 {
		t.Fatalf("expected 2 tuples (numeric 30>25, lexicographic \"abc\">\"25\"), got %+v", tuples)
	}
}
