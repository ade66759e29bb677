package catalog

import (
	"context"
	"sort"

	"github.com/pgview/pgview/pkg/assembler"
	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/pkg/rewriter"
)

// refreshView recomputes one Materialized or Hybrid view's predicates and
// leaves them in h's fact store (spec.md §5 "Materialized view contents
// are recomputed on explicit refresh"). Virtual views are a no-op: they
// have nothing to persist. rewriter.CompileChain, not compiler.Compile
// directly, is used here so that a Virtual ancestor in v's Source chain
// is inlined rather than left referencing undefined predicates.
func (s *Session) refreshView(ctx context.Context, g *Graph, v *ast.View) error {
	if v.Kind == ast.Virtual {
		return nil
	}
	rules, err := rewriter.CompileChain(v.Name, g)
	if err != nil {
		return err
	}
	prog, err := assembler.Assemble(rules)
	if err != nil {
		return err
	}
	h, err := s.handleFor(ctx, g)
	if err != nil {
		return err
	}
	for _, pred := range headPredicates(rules) {
		if err := h.Materialize(ctx, prog, pred); err != nil {
			return err
		}
	}
	return nil
}

// headPredicates returns the sorted set of distinct predicates rules
// derives — the ones a Materialize call should persist, as opposed to
// every predicate a rule body merely reads.
func headPredicates(rules []ir.Rule) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rules {
		if _, ok := seen[r.Head.Pred]; ok {
			continue
		}
		seen[r.Head.Pred] = struct{}{}
		out = append(out, r.Head.Pred)
	}
	sort.Strings(out)
	return out
}

// refreshAllMaterialized re-refreshes every Materialized/Hybrid view on g,
// in enough passes to settle a view-on-materialized-view chain: this
// command grammar has no explicit "refresh" verb (an Open Question
// decision, recorded in DESIGN.md), so the catalog treats view creation
// and every base-graph mutation as the implicit refresh points spec.md
// §5 calls for ("invalidated on any base-graph mutation").
func (s *Session) refreshAllMaterialized(ctx context.Context, g *Graph) error {
	names := g.ListViews()
	for pass := 0; pass < len(names)+1; pass++ {
		for _, name := range names {
			v, ok := g.LookupView(name)
			if !ok || v.Kind == ast.Virtual {
				continue
			}
			if err := s.refreshView(ctx, g, v); err != nil {
				return err
			}
		}
	}
	return nil
}
