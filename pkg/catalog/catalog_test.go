package catalog_test

import (
	"context"
	"testing"

	"github.com/pgview/pgview"
	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/backend/memdb"
	"github.com/pgview/pgview/pkg/catalog"
)

func newSession() *catalog.Session {
	return catalog.NewSession(map[string]backend.Backend{"mem": memdb.New()})
}

func run(t *testing.T, s *catalog.Session, src string) catalog.Result {
	t.Helper()
	res, err := s.Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute(%q): %v", src, err)
	}
	return res
}

func runErr(t *testing.T, s *catalog.Session, src string) error {
	t.Helper()
	_, err := s.Execute(context.Background(), src)
	if err == nil {
		t.Fatalf("Execute(%q): expected error, got nil", src)
	}
	return err
}

func socialGraph(t *testing.T, s *catalog.Session) {
	t.Helper()
	run(t, s, "connect mem")
	run(t, s, "create graph social")
	run(t, s, "use social")
	run(t, s, `create node Person`)
	run(t, s, `create edge Knows(Person -> Person)`)
	run(t, s, `insert N(1, "Person")`)
	run(t, s, `insert N(2, "Person")`)
	run(t, s, `insert N(3, "Person")`)
	run(t, s, `insert E(10, 1, 2, "Knows")`)
	run(t, s, `insert E(11, 2, 3, "Knows")`)
	run(t, s, `insert NP(1, "age", "30")`)
	run(t, s, `insert NP(2, "age", "9")`)
	run(t, s, `insert NP(3, "age", "abc")`)
}

// TestBasicSelection covers spec.md §8's basic selection-view scenario:
// querying a virtual view that selects a single edge pattern returns the
// same tuples as matching the pattern directly against the base graph.
func TestBasicSelection(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create virtual VIEW F ON g (MATCH (a:Person)-[x:Knows]->(b:Person))`)

	res := run(t, s, `MATCH (a) FROM F RETURN (a)`)
	// Node 2 is both the destination of edge 10 and the source of edge
	// 11, so F's endpoint set is {1,2} ∪ {2,3} = {1,2,3} under set
	// semantics (relation.add dedupes), not 4.
	if res.Count != 3 {
		t.Fatalf("expected 3 distinct endpoint rows ({1,2,3}), got %d", res.Count)
	}

	direct := run(t, s, `MATCH (a:Person)-[x:Knows]->(b:Person) FROM g RETURN (a),(b)`)
	if direct.Count != 2 {
		t.Fatalf("expected 2 direct matches, got %d", direct.Count)
	}
}

// TestTransformationSkolemDeterminism covers spec.md §8's CONSTRUCT +
// Skolem scenario: re-running a transformation view's query twice yields
// identical synthesized ids both times.
func TestTransformationSkolemDeterminism(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create virtual VIEW D ON g (MATCH (a:Person)-[x:Knows]->(b:Person) CONSTRUCT (a:Person)-[y:Derived]->(b:Person) SET y = SK("d", x))`)

	first := run(t, s, `MATCH (a)-[y]->(b) FROM D RETURN (y)`)
	second := run(t, s, `MATCH (a)-[y]->(b) FROM D RETURN (y)`)
	if first.Count == 0 {
		t.Fatal("expected at least one derived edge")
	}
	if first.Count != second.Count {
		t.Fatalf("expected identical row counts across runs, got %d then %d", first.Count, second.Count)
	}
	for i := range first.Tuples {
		if first.Tuples[i][0] != second.Tuples[i][0] {
			t.Fatalf("Skolem id not deterministic: run1=%v run2=%v", first.Tuples[i], second.Tuples[i])
		}
	}
}

// TestTransitiveClosure covers spec.md §8's Knows* path scenario.
func TestTransitiveClosure(t *testing.T) {
	s := newSession()
	socialGraph(t, s)

	res := run(t, s, `MATCH (a:Person)-[x:Knows*]->(b:Person) FROM g RETURN (a),(b)`)
	// 1-2, 2-3, 1-3 (transitively) = 3 reachable pairs.
	if res.Count != 3 {
		t.Fatalf("expected 3 transitively-reachable pairs, got %d", res.Count)
	}
}

// TestTypecheckRejectsImpossiblePattern covers spec.md §8's pruning
// scenario with only typecheck on (no prunequery): a pattern matching a
// label combination the schema proves impossible is reported as a type
// error, not silently pruned to zero rows.
func TestTypecheckRejectsImpossiblePattern(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create node Company`)

	run(t, s, "option typecheck on")
	err := runErr(t, s, `MATCH (a:Company)-[x:Knows]->(b:Person) FROM g RETURN (a)`)
	if !pgview.IsTypeErr(err) {
		t.Fatalf("expected a type error, got %v", err)
	}
}

// TestPrunequeryOption covers the other pruning toggle: with prunequery
// on and typecheck off, a provably-empty pattern returns its Vars
// without touching the backend at all (observable indirectly: the query
// still succeeds even though Knows between two Companies was never
// declared). typecheck stays off here deliberately: with both options
// on, typecheck takes precedence and the pattern is rejected instead of
// pruned (see TestTypecheckRejectsImpossiblePattern).
func TestPrunequeryOption(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create node Company`)
	run(t, s, "option prunequery on")

	res := run(t, s, `MATCH (a:Company)-[x:Knows]->(b:Company) FROM g RETURN (a),(b)`)
	if len(res.Vars) != 2 {
		t.Fatalf("expected Vars still reported for a pruned query, got %v", res.Vars)
	}
	if res.Count != 0 {
		t.Fatalf("expected pruned query to report 0 rows, got %d", res.Count)
	}
}

// TestViewOnViewWithWhere covers spec.md §8's composition scenario: a
// view defined ON another view, filtered with WHERE.
func TestViewOnViewWithWhere(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create virtual VIEW F ON g (MATCH (a:Person)-[x:Knows]->(b:Person))`)
	run(t, s, `create virtual VIEW L2 ON F (MATCH (a:Person)-[x:Knows]->(b:Person) WHERE a.age > "25")`)

	res := run(t, s, `MATCH (a)-[x]->(b) FROM L2 RETURN (a),(b)`)
	// Only node 1 (age 30) satisfies a.age > "25" among the Knows sources.
	if res.Count != 1 {
		t.Fatalf("expected 1 row surviving the WHERE filter, got %d", res.Count)
	}
}

// TestCyclicViewDependencyRejected covers spec.md §8's cycle-detection
// scenario. CREATE VIEW compiles each rule block in isolation and does
// not walk the Source chain, so A ON B and B ON A both register fine;
// the cycle only surfaces once a query actually unfolds the chain.
func TestCyclicViewDependencyRejected(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create virtual VIEW A ON B (MATCH (a:Person)-[x:Knows]->(b:Person))`)
	run(t, s, `create virtual VIEW B ON A (MATCH (a:Person)-[x:Knows]->(b:Person))`)

	runErr(t, s, `MATCH (a) FROM A RETURN (a)`)
}

// TestCreateViewAtomicOnCompileError covers spec.md §7: a view whose
// rule blocks disagree on a Skolem function's arity fails to compile,
// and must not be partially registered.
func TestCreateViewAtomicOnCompileError(t *testing.T) {
	s := newSession()
	socialGraph(t, s)

	src := `create virtual VIEW Bad ON g (` +
		`MATCH (a:Person)-[x:Knows]->(b:Person) CONSTRUCT (a:Person)-[y:Derived]->(b:Person) SET y = SK("d", x) ` +
		`UNION ` +
		`MATCH (a:Person)-[x:Knows]->(b:Person) CONSTRUCT (a:Person)-[y:Derived]->(b:Person) SET y = SK("d", x, a))`
	runErr(t, s, src)

	g, gerr := s.Current()
	if gerr != nil {
		t.Fatalf("Current: %v", gerr)
	}
	if _, ok := g.LookupView("Bad"); ok {
		t.Fatal("a view that fails to compile must not be registered")
	}
}

// TestCreateDropCreateViewIdempotent checks that dropping a view and
// recreating it identically leaves the catalog in the same state. The
// command grammar has no "drop view" surface, so DropView is exercised
// directly against the catalog.Graph API.
func TestCreateDropCreateViewIdempotent(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	const def = `create virtual VIEW F ON g (MATCH (a:Person)-[x:Knows]->(b:Person))`
	run(t, s, def)
	before := run(t, s, `MATCH (a) FROM F RETURN (a)`)

	g, err := s.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	g.DropView("F")
	run(t, s, def)
	after := run(t, s, `MATCH (a) FROM F RETURN (a)`)

	if before.Count != after.Count {
		t.Fatalf("expected identical row counts after drop+recreate, got %d then %d", before.Count, after.Count)
	}
}

// TestAnswerOptionSuppressesTuples covers the "answer off" toggle:
// counts are still reported, but no tuples are materialized into Result.
func TestAnswerOptionSuppressesTuples(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, "option answer off")

	res := run(t, s, `MATCH (a:Person)-[x:Knows]->(b:Person) FROM g RETURN (a),(b)`)
	if res.Count != 2 {
		t.Fatalf("expected count 2, got %d", res.Count)
	}
	if res.Tuples != nil {
		t.Fatalf("expected no tuples with answer off, got %v", res.Tuples)
	}
}

// TestMaterializedViewRefreshedAtCreation covers the implicit-refresh
// design for materialized views: with no explicit refresh command in the
// grammar, querying a materialized view immediately after CREATE VIEW
// must already see its derived rows.
func TestMaterializedViewRefreshedAtCreation(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create materialized VIEW M ON g (MATCH (a:Person)-[x:Knows]->(b:Person))`)

	res := run(t, s, `MATCH (a) FROM M RETURN (a)`)
	// Same endpoint set as TestBasicSelection: {1,2,3}, not 4.
	if res.Count != 3 {
		t.Fatalf("expected materialized view to be populated at creation time, got %d rows", res.Count)
	}
}

// TestMaterializedViewRefreshedAfterMutation covers the other implicit
// refresh point: a base-graph mutation after a materialized view exists
// must be reflected the next time that view is queried, without any
// explicit refresh command.
func TestMaterializedViewRefreshedAfterMutation(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create materialized VIEW M ON g (MATCH (a:Person)-[x:Knows]->(b:Person))`)
	before := run(t, s, `MATCH (a)-[x]->(b) FROM M RETURN (a),(b)`)
	if before.Count != 2 {
		t.Fatalf("expected 2 rows before mutation, got %d", before.Count)
	}

	run(t, s, `insert N(4, "Person")`)
	run(t, s, `insert E(12, 3, 4, "Knows")`)

	after := run(t, s, `MATCH (a)-[x]->(b) FROM M RETURN (a),(b)`)
	if after.Count != 3 {
		t.Fatalf("expected 3 rows after a new Knows edge is inserted, got %d", after.Count)
	}
}

// TestMaterializedViewOnVirtualAncestor covers a materialized view whose
// Source is a Virtual view: refreshing it must inline the virtual
// ancestor's rules rather than leave its N_v/E_v references undefined.
func TestMaterializedViewOnVirtualAncestor(t *testing.T) {
	s := newSession()
	socialGraph(t, s)
	run(t, s, `create virtual VIEW F ON g (MATCH (a:Person)-[x:Knows]->(b:Person))`)
	run(t, s, `create materialized VIEW M ON F (MATCH (a:Person)-[x:Knows]->(b:Person) WHERE a.age > "25")`)

	res := run(t, s, `MATCH (a)-[x]->(b) FROM M RETURN (a),(b)`)
	if res.Count != 1 {
		t.Fatalf("expected 1 row surviving the WHERE filter through the materialized chain, got %d", res.Count)
	}
}

func TestUnknownGraphAndViewErrors(t *testing.T) {
	s := newSession()
	run(t, s, "connect mem")

	_, err := s.Execute(context.Background(), `schema`)
	if err == nil {
		t.Fatal("expected an error with no graph selected")
	}

	run(t, s, "create graph g1")
	run(t, s, "use g1")
	err = runErr(t, s, `MATCH (a) FROM NoSuchView RETURN (a)`)
	_ = err
}

func TestDropGraphClearsCurrent(t *testing.T) {
	s := newSession()
	run(t, s, "connect mem")
	run(t, s, "create graph g1")
	run(t, s, "use g1")
	run(t, s, "drop graph g1")

	if _, err := s.Current(); err == nil {
		t.Fatal("expected no current graph after dropping it")
	}
}

func TestListGraphsAndViewsSorted(t *testing.T) {
	s := newSession()
	run(t, s, "connect mem")
	run(t, s, "create graph zeta")
	run(t, s, "create graph alpha")
	res := run(t, s, "list")
	if res.Text != "alpha\nzeta" {
		t.Fatalf("expected sorted graph list, got %q", res.Text)
	}

	run(t, s, "use alpha")
	run(t, s, `create node Person`)
	run(t, s, `create edge Knows(Person -> Person)`)
	run(t, s, `create virtual VIEW Zeb ON g (MATCH (a:Person))`)
	run(t, s, `create virtual VIEW Ann ON g (MATCH (a:Person))`)
	vres := run(t, s, "views")
	if vres.Text != "Ann\nZeb" {
		t.Fatalf("expected sorted view list, got %q", vres.Text)
	}
}
