// Package postgres is a pkg/backend.Backend that stores every predicate
// (base relations and every view's derived N_v/E_v/NP_v/EP_v/TC_...) as a
// real table in a dedicated PostgreSQL schema, one table per predicate with
// a TEXT column per argument and a full-column primary key for set
// semantics. It evaluates a program stratum by stratum with the same naive
// run-to-fixpoint loop as pkg/backend/memdb (see DESIGN.md for why a loop
// of plain SELECT and INSERT statements was chosen over generating
// WITH RECURSIVE SQL): each rule's body runs as a SELECT, any Skolem term
// in the head is resolved in Go via pkg/skolem, mirroring memdb's
// resolveArgs, and the head rows are written back with
// INSERT ... VALUES ... ON CONFLICT DO NOTHING.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/ir"
	"github.com/pgview/pgview/pkg/schema"
	"github.com/pgview/pgview/pkg/skolem"
)

// Postgres is a backend.Backend that connects to a real PostgreSQL
// database via database/sql and github.com/jackc/pgx/v5/stdlib.
type Postgres struct{}

// New returns a Postgres backend.
func New() *Postgres { return &Postgres{} }

// Open connects using config["dsn"] (a libpq/pgx connection string) and
// creates (if needed) the schema named by config["schema"], defaulting to
// "pgview". One handle owns one schema: every predicate table it creates
// or reads lives there, so two graphs can share a database by using
// different schema names.
func (b *Postgres) Open(ctx context.Context, config map[string]string) (backend.Handle, error) {
	dsn, ok := config["dsn"]
	if !ok || dsn == "" {
		return nil, &backend.ConnectError{Backend: "postgres", Err: fmt.Errorf("config %q is required", "dsn")}
	}
	schemaName := config["schema"]
	if schemaName == "" {
		schemaName = "pgview"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &backend.ConnectError{Backend: "postgres", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &backend.ConnectError{Backend: "postgres", Err: err}
	}
	if err := ensureSchema(ctx, db, schemaName); err != nil {
		_ = db.Close()
		return nil, &backend.ConnectError{Backend: "postgres", Err: err}
	}

	return &handle{
		db:      db,
		schema:  schemaName,
		skolems: skolem.New(),
		arities: make(map[string]int),
	}, nil
}

// handle is one open Postgres connection, scoped to a single schema.
type handle struct {
	mu      sync.RWMutex
	db      *sql.DB
	schema  string
	skolems *skolem.Registry
	arities map[string]int // predicate -> column count, for tables this handle has already ensured exist
	closed  bool
}

func (h *handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.db.Close()
}

// ApplySchema ensures the four base relation tables exist. Node/edge
// labels themselves are not reflected into separate tables — N and E carry
// a label column like every other engine-level detail of this predicate
// layout, matching the generic Row shape backend.Row already commits to.
func (h *handle) ApplySchema(ctx context.Context, sc *schema.Schema) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &backend.Error{Op: "ApplySchema", Err: errClosed}
	}
	base := map[string]int{"N": 2, "E": 4, "NP": 3, "EP": 3}
	for pred, arity := range base {
		if err := h.ensureTableLocked(ctx, pred, arity); err != nil {
			return &backend.Error{Op: "ApplySchema", Err: err}
		}
	}
	return nil
}

// InsertFacts appends rows to relName's table inside one transaction,
// de-duplicating via ON CONFLICT DO NOTHING against the table's
// full-column primary key.
func (h *handle) InsertFacts(ctx context.Context, relName string, rows []backend.Row) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &backend.Error{Op: "InsertFacts", Err: errClosed}
	}
	if len(rows) == 0 {
		return nil
	}
	arity := len(rows[0])
	if err := h.ensureTableLocked(ctx, relName, arity); err != nil {
		return &backend.Error{Op: "InsertFacts", Err: err}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return &backend.Error{Op: "InsertFacts", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertStmt(h.schema, relName, arity))
	if err != nil {
		return &backend.Error{Op: "InsertFacts", Err: err}
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return &backend.Error{Op: "InsertFacts", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &backend.Error{Op: "InsertFacts", Err: err}
	}
	return nil
}

// Materialize evaluates program to a fixpoint, leaving every predicate it
// derives persisted in this handle's schema, then makes sure predicate's
// own table exists even if program never derives a tuple for it.
func (h *handle) Materialize(ctx context.Context, program *ir.Program, predicate string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &backend.Error{Op: "Materialize", Err: errClosed}
	}
	if err := h.evaluateProgram(ctx, program); err != nil {
		return &backend.Error{Op: "Materialize", Err: err}
	}
	if arity, ok := programArities(program)[predicate]; ok {
		if err := h.ensureTableLocked(ctx, predicate, arity); err != nil {
			return &backend.Error{Op: "Materialize", Err: err}
		}
	}
	return nil
}

// Evaluate runs program to a fixpoint and returns every tuple of
// goalPredicate, ordered by column for deterministic iteration (spec.md
// §4.9).
func (h *handle) Evaluate(ctx context.Context, program *ir.Program, goalPredicate string) ([]backend.Tuple, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &backend.Error{Op: "Evaluate", Err: errClosed}
	}
	if err := h.evaluateProgram(ctx, program); err != nil {
		return nil, &backend.Error{Op: "Evaluate", Err: err}
	}
	arity, ok := h.arities[goalPredicate]
	if !ok {
		return nil, nil
	}
	tuples, err := h.selectAll(ctx, goalPredicate, arity)
	if err != nil {
		return nil, &backend.Error{Op: "Evaluate", Err: err}
	}
	return tuples, nil
}
