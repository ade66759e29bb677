package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/pkg/schema"
	"github.com/pgview/pgview/pkg/skolem"
)

// Memdb is the reference backend.Backend: every graph's facts and
// evaluation state live in process memory and vanish at process exit.
// Intended for development, testing, and the spec.md §8 worked scenarios,
// not for data that must outlive a session.
type Memdb struct{}

// New returns a Memdb backend.
func New() *Memdb { return &Memdb{} }

// Open ignores config; memdb takes no connection parameters.
func (b *Memdb) Open(ctx context.Context, config map[string]string) (backend.Handle, error) {
	return &handle{
		facts: map[string]*relation{
			"N":  newRelation(),
			"E":  newRelation(),
			"NP": newRelation(),
			"EP": newRelation(),
		},
		skolems: skolem.New(),
	}, nil
}

// handle is one open Memdb connection: a mutex-guarded fact store plus
// the Skolem registry shared by every Materialize/Evaluate call against
// it, so synthesized ids stay consistent across queries in the same
// session (spec.md §8 invariant 2).
type handle struct {
	mu      sync.RWMutex
	facts   map[string]*relation
	skolems *skolem.Registry
	closed  bool
}

func (h *handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// ApplySchema is a no-op beyond validating the handle is open: memdb does
// not need typed tables to store a label, it just stores rows.
func (h *handle) ApplySchema(ctx context.Context, sc *schema.Schema) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &backend.Error{Op: "ApplySchema", Err: errClosed}
	}
	return nil
}

func (h *handle) InsertFacts(ctx context.Context, relName string, rows []backend.Row) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &backend.Error{Op: "InsertFacts", Err: errClosed}
	}
	rel, ok := h.facts[relName]
	if !ok {
		rel = newRelation()
		h.facts[relName] = rel
	}
	for _, row := range rows {
		rel.add([]string(row))
	}
	return nil
}

// Materialize evaluates program to a fixpoint and leaves every derived
// predicate's tuples in h's fact store — in particular predicate's, which
// a later Evaluate or Materialize call can then join against as if it
// were base data. This is what makes a "materialized" view's rules only
// need to run once per write, not once per read (spec.md §4.7).
func (h *handle) Materialize(ctx context.Context, program *ir.Program, predicate string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &backend.Error{Op: "Materialize", Err: errClosed}
	}
	evaluateProgram(h.facts, program, h.skolems)
	if _, ok := h.facts[predicate]; !ok {
		h.facts[predicate] = newRelation()
	}
	return nil
}

// Evaluate runs program to a fixpoint and returns every tuple of
// goalPredicate, sorted for deterministic iteration order (spec.md §4.9).
func (h *handle) Evaluate(ctx context.Context, program *ir.Program, goalPredicate string) ([]backend.Tuple, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &backend.Error{Op: "Evaluate", Err: errClosed}
	}
	evaluateProgram(h.facts, program, h.skolems)
	rel, ok := h.facts[goalPredicate]
	if !ok {
		return nil, nil
	}
	tuples := rel.all()
	sort.Slice(tuples, func(i, j int) bool {
		return tupleKey(tuples[i]) < tupleKey(tuples[j])
	})
	out := make([]backend.Tuple, len(tuples))
	for i, t := range tuples {
		out[i] = backend.Tuple(t)
	}
	return out, nil
}
