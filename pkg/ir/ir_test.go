package ir_test

import (
	"testing"

	"github.com/pgview/pgview/pkg/ir"
)

func TestRule_SafeWhenHeadVarsBoundInBody(t *testing.T) {
	r := ir.Rule{
		Head: ir.Atom{Pred: "N_v", Args: []ir.Term{ir.VarTerm("a"), ir.ConstTerm("Person")}},
		Body: []ir.Lit{
			ir.PosAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("a"), ir.VarTerm("l")}}),
		},
	}
	if !r.Safe() {
		t.Error("expected rule to be safe")
	}
}

func TestRule_UnsafeWhenHeadVarUnbound(t *testing.T) {
	r := ir.Rule{
		Head: ir.Atom{Pred: "N_v", Args: []ir.Term{ir.VarTerm("a"), ir.VarTerm("b")}},
		Body: []ir.Lit{
			ir.PosAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("a"), ir.VarTerm("l")}}),
		},
	}
	if r.Safe() {
		t.Error("expected rule to be unsafe: b never appears in the body")
	}
}

func TestRule_SkolemArgsMustBeBound(t *testing.T) {
	r := ir.Rule{
		Head: ir.Atom{Pred: "N_v", Args: []ir.Term{ir.SkolemTerm("f", "x"), ir.ConstTerm("Derived")}},
		Body: []ir.Lit{
			ir.PosAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("a"), ir.VarTerm("l")}}),
		},
	}
	if r.Safe() {
		t.Error("expected rule to be unsafe: x feeds the Skolem but is never bound")
	}
}

func TestRule_NegationDoesNotBind(t *testing.T) {
	r := ir.Rule{
		Head: ir.Atom{Pred: "N_v", Args: []ir.Term{ir.VarTerm("a")}},
		Body: []ir.Lit{
			ir.NegAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("a")}}),
		},
	}
	if r.Safe() {
		t.Error("expected rule to be unsafe: a is only bound by a negated atom")
	}
}

func TestProgram_PredicatesSortedAndDistinct(t *testing.T) {
	prog := ir.Program{Rules: []ir.Rule{
		{Head: ir.Atom{Pred: "N_v"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N"})}},
		{Head: ir.Atom{Pred: "E_v"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N"})}},
	}}
	preds := prog.Predicates()
	want := []string{"E_v", "N", "N_v"}
	if len(preds) != len(want) {
		t.Fatalf("got %v, want %v", preds, want)
	}
	for i := range want {
		if preds[i] != want[i] {
			t.Fatalf("got %v, want %v", preds, want)
		}
	}
}
