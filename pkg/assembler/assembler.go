// Package assembler implements the Program Assembler (C8, spec.md §4.8):
// it builds a predicate dependency graph over a candidate rule set,
// computes strongly connected components via Tarjan's algorithm, checks
// stratified negation, rejects definitional cycles among view predicates,
// and emits the rules in SCC-topological order ready for a backend.
package assembler

import (
	"sort"
	"strings"

	"github.com/pgview/pgview/pkg/ir"
)

// Assemble builds a ready-to-evaluate ir.Program from rules (typically
// the concatenation of a rewritten query's goal rule with every rule it
// transitively depends on, as pkg/rewriter produces).
func Assemble(rules []ir.Rule) (*ir.Program, error) {
	graph, preds := buildGraph(rules)
	sccs := tarjanSCCs(preds, graph)

	sccOf := make(map[string]int, len(preds))
	for i, scc := range sccs {
		for _, p := range scc {
			sccOf[p] = i
		}
	}

	if err := checkStratifiedNegation(rules, sccOf); err != nil {
		return nil, err
	}
	if err := checkNoCyclicViewDependency(sccs, graph); err != nil {
		return nil, err
	}

	return emit(rules, sccOf, len(sccs)), nil
}

// buildGraph constructs the predicate dependency graph: an edge p -> q
// exists whenever some rule has head q and p appears (positively or
// negatively) in its body (spec.md §4.8).
func buildGraph(rules []ir.Rule) (map[string][]string, []string) {
	graph := make(map[string][]string)
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
		}
	}

	for _, r := range rules {
		add(r.Head.Pred)
		for _, l := range r.Body {
			p := l.Pred()
			if p == "" {
				continue
			}
			add(p)
			graph[p] = appendUnique(graph[p], r.Head.Pred)
		}
	}

	preds := make([]string, 0, len(seen))
	for p := range seen {
		preds = append(preds, p)
	}
	sort.Strings(preds)
	return graph, preds
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}

// checkStratifiedNegation rejects any rule whose negated body predicate
// shares an SCC with the rule's own head predicate — a predicate cannot
// be defined in terms of its own (recursive) negation (spec.md §4.8).
func checkStratifiedNegation(rules []ir.Rule, sccOf map[string]int) error {
	for _, r := range rules {
		headSCC := sccOf[r.Head.Pred]
		for _, l := range r.Body {
			if l.Neg == nil {
				continue
			}
			if sccOf[l.Neg.Atom.Pred] == headSCC {
				return unstratifiedErr(r.Head.Pred)
			}
		}
	}
	return nil
}

// checkNoCyclicViewDependency rejects any SCC of size > 1, or any
// self-loop, unless every predicate in it is a TC_ auxiliary (Kleene-star
// transitive closure is the only legal form of recursion, spec.md §4.8).
func checkNoCyclicViewDependency(sccs [][]string, graph map[string][]string) error {
	for _, scc := range sccs {
		recursive := len(scc) > 1
		if len(scc) == 1 {
			p := scc[0]
			for _, q := range graph[p] {
				if q == p {
					recursive = true
					break
				}
			}
		}
		if !recursive {
			continue
		}
		if allTC(scc) {
			continue
		}
		return cyclicViewErr(scc)
	}
	return nil
}

func allTC(preds []string) bool {
	for _, p := range preds {
		if !strings.HasPrefix(p, "TC_") {
			return false
		}
	}
	return true
}

// emit orders rules by their head predicate's SCC-topological stratum,
// preserving input order within a stratum, and groups the resulting
// indices into Program.Strata.
func emit(rules []ir.Rule, sccOf map[string]int, numSCCs int) *ir.Program {
	byStratum := make([][]int, numSCCs)
	for i, r := range rules {
		s := sccOf[r.Head.Pred]
		byStratum[s] = append(byStratum[s], i)
	}

	var ordered []ir.Rule
	var strata [][]int
	for _, idxs := range byStratum {
		if len(idxs) == 0 {
			continue
		}
		var stratumIdxs []int
		for _, idx := range idxs {
			stratumIdxs = append(stratumIdxs, len(ordered))
			ordered = append(ordered, rules[idx])
		}
		strata = append(strata, stratumIdxs)
	}
	return &ir.Program{Rules: ordered, Strata: strata}
}
