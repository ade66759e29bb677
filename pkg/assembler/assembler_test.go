package assembler_test

import (
	"testing"

	"github.com/pgview/pgview/pkg/assembler"
	"github.com/pgview/pgview/pkg/ir"
)

func TestAssemble_SimpleDependencyOrder(t *testing.T) {
	rules := []ir.Rule{
		{Head: ir.Atom{Pred: "Ans", Args: []ir.Term{ir.VarTerm("a")}}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N_F", Args: []ir.Term{ir.VarTerm("a")}})}},
		{Head: ir.Atom{Pred: "N_F", Args: []ir.Term{ir.VarTerm("a")}}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N", Args: []ir.Term{ir.VarTerm("a")}})}},
	}
	prog, err := assembler.Assemble(rules)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// N_F must come before Ans.
	var nfIdx, ansIdx int = -1, -1
	for i, r := range prog.Rules {
		if r.Head.Pred == "N_F" {
			nfIdx = i
		}
		if r.Head.Pred == "Ans" {
			ansIdx = i
		}
	}
	if nfIdx == -1 || ansIdx == -1 || nfIdx > ansIdx {
		t.Fatalf("expected N_F before Ans, got N_F=%d Ans=%d", nfIdx, ansIdx)
	}
}

func TestAssemble_TCRecursionIsLegal(t *testing.T) {
	rules := []ir.Rule{
		{Head: ir.Atom{Pred: "TC_Knows_F"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "E"})}},
		{Head: ir.Atom{Pred: "TC_Knows_F"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "TC_Knows_F"}), ir.PosAtom(ir.Atom{Pred: "E"})}},
	}
	if _, err := assembler.Assemble(rules); err != nil {
		t.Fatalf("expected TC self-recursion to be legal, got %v", err)
	}
}

func TestAssemble_NonTCCycleRejected(t *testing.T) {
	rules := []ir.Rule{
		{Head: ir.Atom{Pred: "N_A"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N_B"})}},
		{Head: ir.Atom{Pred: "N_B"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N_A"})}},
	}
	_, err := assembler.Assemble(rules)
	if !assembler.IsCyclicViewDependency(err) {
		t.Fatalf("expected ErrCyclicViewDependency, got %v", err)
	}
}

func TestAssemble_UnstratifiedNegationRejected(t *testing.T) {
	rules := []ir.Rule{
		{Head: ir.Atom{Pred: "N_A"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N_B"})}},
		{Head: ir.Atom{Pred: "N_B"}, Body: []ir.Lit{ir.NegAtom(ir.Atom{Pred: "N_A"})}},
	}
	_, err := assembler.Assemble(rules)
	if !assembler.IsUnstratifiedNegation(err) {
		t.Fatalf("expected ErrUnstratifiedNegation, got %v", err)
	}
}

func TestAssemble_StrataGroupIndices(t *testing.T) {
	rules := []ir.Rule{
		{Head: ir.Atom{Pred: "Ans"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N_F"})}},
		{Head: ir.Atom{Pred: "N_F"}, Body: []ir.Lit{ir.PosAtom(ir.Atom{Pred: "N"})}},
	}
	prog, err := assembler.Assemble(rules)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(prog.Strata) < 2 {
		t.Fatalf("expected at least 2 strata, got %d", len(prog.Strata))
	}
}
