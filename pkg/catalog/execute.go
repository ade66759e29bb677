package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pgview/pgview/pkg/assembler"
	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/compiler"
	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/pkg/parser"
	"github.com/pgview/pgview/pkg/rewriter"
	"github.com/pgview/pgview/pkg/typecheck"
)

// Result is what Session.Execute returns for one parsed command: answer
// tuples for a MATCH...RETURN query (when the graph's "answer" option is
// on), or rendered text for an introspection command.
type Result struct {
	Vars   []string
	Tuples []backend.Tuple
	Count  int
	Text   string
}

// Execute parses src as one command and dispatches it (spec.md §6). Every
// mutation is atomic: validation runs to completion before any catalog
// state changes (spec.md §7).
func (s *Session) Execute(ctx context.Context, src string) (Result, error) {
	cmd, err := parser.Parse(src)
	if err != nil {
		return Result{}, err
	}
	return s.dispatch(ctx, cmd)
}

func (s *Session) dispatch(ctx context.Context, cmd *parser.Command) (Result, error) {
	switch {
	case cmd.Connect != nil:
		return Result{}, s.Connect(ctx, cmd.Connect.Backend)
	case cmd.Disconnect:
		return Result{}, s.Disconnect(ctx)
	case cmd.CreateGraph != nil:
		_, err := s.CreateGraph(ctx, cmd.CreateGraph.Name)
		return Result{}, err
	case cmd.DropGraph != nil:
		return Result{}, s.DropGraph(ctx, cmd.DropGraph.Name)
	case cmd.UseGraph != nil:
		return Result{}, s.UseGraph(cmd.UseGraph.Name)
	case cmd.ListGraphs:
		return Result{Text: strings.Join(s.ListGraphs(), "\n")}, nil
	case cmd.Quit:
		return Result{}, nil
	}

	g, err := s.Current()
	if err != nil {
		return Result{}, err
	}

	switch {
	case cmd.CreateNodeLabel != nil:
		g.CreateNodeLabel(cmd.CreateNodeLabel.Label)
		return Result{}, nil
	case cmd.CreateEdgeLabel != nil:
		c := cmd.CreateEdgeLabel
		return Result{}, g.CreateEdgeLabel(c.Label, c.Src, c.Dst)
	case cmd.ShowSchema:
		return Result{Text: g.SchemaText()}, nil
	case cmd.InsertNode != nil:
		return Result{}, s.mutateAndRefresh(ctx, g, func(h backend.Handle) error {
			return g.InsertNode(ctx, h, cmd.InsertNode.ID, cmd.InsertNode.Label)
		})
	case cmd.InsertEdge != nil:
		return Result{}, s.mutateAndRefresh(ctx, g, func(h backend.Handle) error {
			ie := cmd.InsertEdge
			return g.InsertEdge(ctx, h, ie.ID, ie.Src, ie.Dst, ie.Label)
		})
	case cmd.InsertNProp != nil:
		return Result{}, s.mutateAndRefresh(ctx, g, func(h backend.Handle) error {
			p := cmd.InsertNProp
			return g.InsertNodeProp(ctx, h, p.ID, p.Key, p.Val)
		})
	case cmd.InsertEProp != nil:
		return Result{}, s.mutateAndRefresh(ctx, g, func(h backend.Handle) error {
			p := cmd.InsertEProp
			return g.InsertEdgeProp(ctx, h, p.ID, p.Key, p.Val)
		})
	case cmd.Import != nil:
		if err := s.runImport(ctx, g, cmd.Import); err != nil {
			return Result{}, err
		}
		return Result{}, s.refreshAllMaterialized(ctx, g)
	case cmd.CreateView != nil:
		return Result{}, s.createView(ctx, g, cmd.CreateView)
	case cmd.Query != nil:
		return s.runQuery(ctx, g, cmd.Query)
	case cmd.ListViews:
		return Result{Text: strings.Join(g.ListViews(), "\n")}, nil
	case cmd.ShowProgram:
		return s.showProgram(g)
	case cmd.ShowEGDs:
		return s.showEGDs(g)
	case cmd.Option != nil:
		return Result{}, g.SetOption(cmd.Option.Name, cmd.Option.On)
	}
	return Result{}, fmt.Errorf("catalog: unrecognized command")
}

// withHandle opens g's handle and runs fn against it.
func (s *Session) withHandle(ctx context.Context, g *Graph, fn func(backend.Handle) error) error {
	h, err := s.handleFor(ctx, g)
	if err != nil {
		return err
	}
	return fn(h)
}

// mutateAndRefresh runs fn against g's handle, then refreshes every
// Materialized/Hybrid view (spec.md §5: materialized contents are
// "invalidated on any base-graph mutation"; the command grammar has no
// explicit refresh verb, so every base-graph mutation is an implicit
// refresh point, an Open Question decision recorded in DESIGN.md).
func (s *Session) mutateAndRefresh(ctx context.Context, g *Graph, fn func(backend.Handle) error) error {
	if err := s.withHandle(ctx, g, fn); err != nil {
		return err
	}
	return s.refreshAllMaterialized(ctx, g)
}

// checkPattern typechecks pat against g's schema, per g's current
// options. Only meaningful for patterns matched directly against the
// base graph: a view's own node/edge labels are not tracked in
// schema.Schema (views can introduce labels the base schema never
// declared, e.g. CONSTRUCT ... Label "Derived"), so typecheck/prune are
// applied only when the pattern's source is "g" (an Open Question
// decision, recorded in DESIGN.md).
func checkPattern(g *Graph, source string, pat ast.Pattern) (prune bool, err error) {
	if source != "g" {
		return false, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return typecheck.Check(pat, g.schema, typecheck.Policy{TypeCheck: g.typecheckOn, PruneQuery: g.prunequeryOn})
}

// createView validates every rule block (typecheck, and prune by simply
// omitting provably-unsatisfiable blocks from the compiled view), then
// compiles the result to catch compile-time errors (SkolemArityMismatch,
// UnsafeRule) before anything is registered. A Materialized or Hybrid
// view is refreshed immediately after registration, since CREATE VIEW is
// the other implicit refresh point alongside base-graph mutation.
func (s *Session) createView(ctx context.Context, g *Graph, v *ast.View) error {
	kept := *v
	kept.Rules = nil
	for _, rb := range v.Rules {
		prune, err := checkPattern(g, v.Source, rb.Match)
		if err != nil {
			return err
		}
		if prune {
			continue
		}
		kept.Rules = append(kept.Rules, rb)
	}
	if _, err := compiler.Compile(&kept); err != nil {
		return err
	}
	g.registerView(&kept)
	return s.refreshView(ctx, g, &kept)
}

func (s *Session) runQuery(ctx context.Context, g *Graph, q *ast.Query) (Result, error) {
	prune, err := checkPattern(g, q.From, q.Match)
	if err != nil {
		return Result{}, err
	}
	varNames := make([]string, len(q.Return))
	for i, v := range q.Return {
		varNames[i] = string(v)
	}
	if prune {
		return Result{Vars: varNames}, nil
	}

	rules, err := rewriter.Rewrite(q, g)
	if err != nil {
		return Result{}, err
	}
	prog, err := assembler.Assemble(rules)
	if err != nil {
		return Result{}, err
	}
	h, err := s.handleFor(ctx, g)
	if err != nil {
		return Result{}, err
	}
	tuples, err := h.Evaluate(ctx, prog, rewriter.AnsPred)
	if err != nil {
		return Result{}, err
	}

	res := Result{Vars: varNames, Count: len(tuples)}
	if g.answerEnabled() {
		res.Tuples = tuples
	}
	return res, nil
}

func (g *Graph) answerEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.answerOn
}

func (s *Session) showProgram(g *Graph) (Result, error) {
	var all []string
	for _, name := range g.ListViews() {
		v, _ := g.LookupView(name)
		rules, err := compiler.Compile(v)
		if err != nil {
			return Result{}, err
		}
		for _, r := range rules {
			all = append(all, r.String())
		}
	}
	return Result{Text: strings.Join(all, "\n")}, nil
}

func (s *Session) showEGDs(g *Graph) (Result, error) {
	var all []string
	var progRules []ir.Rule
	for _, name := range g.ListViews() {
		v, _ := g.LookupView(name)
		rs, err := compiler.Compile(v)
		if err != nil {
			return Result{}, err
		}
		for _, r := range rs {
			progRules = append(progRules, r)
		}
	}
	for _, sug := range rewriter.SuggestEGDs(progRules) {
		all = append(all, fmt.Sprintf("%s ~ %s: %s", sug.PredA, sug.PredB, sug.Reason))
	}
	return Result{Text: strings.Join(all, "\n")}, nil
}

// runImport reads a CSV file and inserts its rows as facts for the
// relation cmd names (spec.md §6 CSV formats). A malformed or
// non-numeric first row is treated as an optional header and skipped.
func (s *Session) runImport(ctx context.Context, g *Graph, cmd *parser.ImportCmd) error {
	f, err := os.Open(cmd.Path)
	if err != nil {
		return fmt.Errorf("catalog: import: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("catalog: import: %w", err)
	}
	if len(records) > 0 && isHeaderRow(records[0]) {
		records = records[1:]
	}

	relName, width := importRelation(cmd.Relation)
	rows := make([]backend.Row, 0, len(records))
	for _, rec := range records {
		if len(rec) != width {
			return fmt.Errorf("catalog: import: row %v has %d fields, want %d", rec, len(rec), width)
		}
		rows = append(rows, backend.Row(rec))
	}
	return s.withHandle(ctx, g, func(h backend.Handle) error {
		return h.InsertFacts(ctx, relName, rows)
	})
}

func importRelation(rel parser.ImportRelation) (name string, width int) {
	switch rel {
	case parser.ImportN:
		return "N", 2
	case parser.ImportE:
		return "E", 4
	case parser.ImportNP:
		return "NP", 3
	case parser.ImportEP:
		return "EP", 3
	default:
		return "N", 2
	}
}

// isHeaderRow reports whether rec looks like a header rather than a data
// row: every import format's first column is a numeric id, so a
// non-numeric first field means this row is a header.
func isHeaderRow(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseUint(rec[0], 10, 64)
	return err != nil
}
