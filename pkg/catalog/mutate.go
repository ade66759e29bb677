package catalog

import (
	"context"

	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/backend"
)

// InsertNode appends one N fact.
func (g *Graph) InsertNode(ctx context.Context, h backend.Handle, id uint64, label string) error {
	return h.InsertFacts(ctx, "N", []backend.Row{{formatID(id), label}})
}

// InsertEdge appends one E fact.
func (g *Graph) InsertEdge(ctx context.Context, h backend.Handle, id, src, dst uint64, label string) error {
	return h.InsertFacts(ctx, "E", []backend.Row{{formatID(id), formatID(src), formatID(dst), label}})
}

// InsertNodeProp appends one NP fact.
func (g *Graph) InsertNodeProp(ctx context.Context, h backend.Handle, id uint64, key, val string) error {
	return h.InsertFacts(ctx, "NP", []backend.Row{{formatID(id), key, val}})
}

// InsertEdgeProp appends one EP fact.
func (g *Graph) InsertEdgeProp(ctx context.Context, h backend.Handle, id uint64, key, val string) error {
	return h.InsertFacts(ctx, "EP", []backend.Row{{formatID(id), key, val}})
}

// registerView records v on g. Callers (Session.dispatch) must already
// have validated it — typechecked and compiled every rule block — so
// that registration is the one step that can't fail, keeping the whole
// CREATE VIEW command atomic (spec.md §7).
func (g *Graph) registerView(v *ast.View) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.views[v.Name] = v
}

// DropView removes a view by name. A no-op if it does not exist.
func (g *Graph) DropView(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.views, name)
}
