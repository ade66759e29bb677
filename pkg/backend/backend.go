// Package backend defines the Backend Adapter interface (C9, spec.md
// §4.9): the boundary between the backend-independent compiler/rewriter/
// assembler pipeline and a concrete storage and evaluation engine.
// pkg/backend/memdb and pkg/backend/postgres provide implementations.
package backend

import (
	"context"

	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/pkg/schema"
)

// Row is one tuple of a relation, in column order. Node rows are
// (id, label); edge rows are (id, src, dst, label); property rows are
// (id, key, value).
type Row []string

// Tuple is one binding of a goal predicate's arguments, in the order
// RETURN listed them.
type Tuple []string

// Backend is the storage/evaluation engine a Handle is bound to. All
// methods are safe to call only on an open Handle; Open returns the
// Handle and Close releases it (spec.md §4.9, §5 resource discipline).
type Backend interface {
	// Open establishes a handle using config (backend-specific key/value
	// pairs from internal/config). Returns ConnectError on failure.
	Open(ctx context.Context, config map[string]string) (Handle, error)
}

// Handle is a live connection to one backend instance.
type Handle interface {
	// Close releases the handle. Idempotent.
	Close(ctx context.Context) error

	// ApplySchema persists sc for the current graph. Backends that store
	// facts in typed tables use this to create them; memdb is a no-op
	// beyond bookkeeping.
	ApplySchema(ctx context.Context, sc *schema.Schema) error

	// InsertFacts appends rows to relName ("N", "E", "NP", or "EP"),
	// de-duplicating against existing facts (set semantics, spec.md
	// §4.9).
	InsertFacts(ctx context.Context, relName string, rows []Row) error

	// Materialize evaluates program and persists every tuple of
	// predicate as an extensional fact, for later reference by
	// materialized-view queries.
	Materialize(ctx context.Context, program *ir.Program, predicate string) error

	// Evaluate runs program and returns every tuple of goalPredicate.
	// Iteration order is backend-defined but must be deterministic for a
	// fixed (backend, program) pair (spec.md §4.9).
	Evaluate(ctx context.Context, program *ir.Program, goalPredicate string) ([]Tuple, error)
}
