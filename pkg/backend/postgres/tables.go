package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgview/pgview/internal/sqlgen"
)

// colName returns the generic column name for a predicate's i-th argument.
// Predicate tables have no typed schema beyond TEXT columns; the label
// carried by a column (node, key, value, ...) exists only in the rule that
// produced it, not in the table itself — the same layout memdb's relation
// uses for every predicate regardless of what it represents.
func colName(i int) string {
	return fmt.Sprintf("c%d", i)
}

// ensureSchema creates the namespace a handle's tables live under, if it
// does not already exist.
func ensureSchema(ctx context.Context, db *sql.DB, schemaName string) error {
	_, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+sqlgen.QuoteIdent(schemaName))
	return err
}

// ensureTable creates pred's table if it does not already exist: arity TEXT
// columns with a full-column primary key, giving INSERT ... ON CONFLICT DO
// NOTHING the set semantics spec.md §4.9 requires of every relation.
func ensureTable(ctx context.Context, db *sql.DB, schemaName, pred string, arity int) error {
	cols := make([]string, arity)
	for i := range cols {
		cols[i] = sqlgen.QuoteIdent(colName(i)) + " TEXT NOT NULL"
	}
	pk := make([]string, arity)
	for i := range pk {
		pk[i] = sqlgen.QuoteIdent(colName(i))
	}
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (%s))",
		sqlgen.QualifyTable(schemaName, pred),
		strings.Join(cols, ", "),
		strings.Join(pk, ", "),
	)
	_, err := db.ExecContext(ctx, stmt)
	return err
}

// truncateTable empties pred's table, used before recomputing every
// predicate a Materialize/Evaluate call's program derives (eval.go mirrors
// memdb's evaluateProgram: every head predicate starts empty on each run).
func truncateTable(ctx context.Context, db *sql.DB, schemaName, pred string) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE "+sqlgen.QualifyTable(schemaName, pred))
	return err
}

// insertStmt renders a parameterized "INSERT ... VALUES ($1, ...) ON
// CONFLICT DO NOTHING" for pred, reused across every row of one batch.
func insertStmt(schemaName, pred string, arity int) string {
	cols := make([]string, arity)
	params := make([]string, arity)
	for i := range cols {
		cols[i] = sqlgen.QuoteIdent(colName(i))
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		sqlgen.QualifyTable(schemaName, pred),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
}

// ensureTableLocked ensures pred's table exists and records its arity in
// h.arities, skipping the round-trip if this handle has already ensured it.
// Callers must hold h.mu.
func (h *handle) ensureTableLocked(ctx context.Context, pred string, arity int) error {
	if existing, ok := h.arities[pred]; ok && existing == arity {
		return nil
	}
	if err := ensureTable(ctx, h.db, h.schema, pred, arity); err != nil {
		return err
	}
	h.arities[pred] = arity
	return nil
}
