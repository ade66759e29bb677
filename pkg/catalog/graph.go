package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pgview/pgview"
	"github.com/pgview/pgview/pkg/ast"
	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/schema"
	"github.com/pgview/pgview/pkg/skolem"
)

// Graph owns one property graph's schema, Skolem registry, and view
// catalog. mu guards all three plus the typecheck/prunequery/answer
// options; handleMu independently guards the lazily-opened backend
// handle, so opening a handle never nests inside a mu.Lock (spec.md §5:
// writes are exclusive, reads shared, and the backend call itself must
// be free to block on I/O without holding an unrelated lock longer than
// necessary).
type Graph struct {
	Name string

	mu           sync.RWMutex
	schema       *schema.Schema
	skolems      *skolem.Registry
	views        map[string]*ast.View
	typecheckOn  bool
	prunequeryOn bool
	answerOn     bool

	handleMu   sync.Mutex
	handle     backend.Handle
	handleFrom string
}

func newGraph(name string) *Graph {
	return &Graph{
		Name:     name,
		schema:   schema.New(),
		skolems:  skolem.New(),
		views:    make(map[string]*ast.View),
		answerOn: true,
	}
}

func (g *Graph) closeHandle(ctx context.Context) error {
	g.handleMu.Lock()
	defer g.handleMu.Unlock()
	if g.handle == nil {
		return nil
	}
	err := g.handle.Close(ctx)
	g.handle = nil
	g.handleFrom = ""
	return err
}

// ensureHandle opens g's backend.Handle against active if none is open,
// or reopens it if the session switched to a different backend since
// the last open (which starts g over with an empty fact store, same as
// a fresh connect).
func (g *Graph) ensureHandle(ctx context.Context, active backend.Backend, name string) (backend.Handle, error) {
	g.handleMu.Lock()
	defer g.handleMu.Unlock()
	if g.handle != nil && g.handleFrom == name {
		return g.handle, nil
	}
	if g.handle != nil {
		_ = g.handle.Close(ctx)
		g.handle = nil
	}
	h, err := active.Open(ctx, nil)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	sc := g.schema
	g.mu.RUnlock()
	if err := h.ApplySchema(ctx, sc); err != nil {
		return nil, err
	}
	g.handle = h
	g.handleFrom = name
	return h, nil
}

// LookupView implements pkg/rewriter.ViewResolver.
func (g *Graph) LookupView(name string) (*ast.View, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.views[name]
	return v, ok
}

// CreateNodeLabel declares a node label. Idempotent (spec.md §3).
func (g *Graph) CreateNodeLabel(label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.schema.AddNodeLabel(schema.NodeLabel(label))
}

// CreateEdgeLabel declares an edge label with its endpoint types.
// Returns a wrapped pgview.ErrSchemaConflict if label is already
// declared with different endpoints.
func (g *Graph) CreateEdgeLabel(label, src, dst string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.schema.AddEdgeLabel(schema.EdgeLabel(label), schema.NodeLabel(src), schema.NodeLabel(dst)); err != nil {
		return fmt.Errorf("catalog: %w", pgview.ErrSchemaConflict)
	}
	return nil
}

// SchemaText renders g's declared labels for the "schema" introspection
// command.
func (g *Graph) SchemaText() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out string
	nodeLabels := g.schema.NodeLabels()
	sort.Slice(nodeLabels, func(i, j int) bool { return nodeLabels[i] < nodeLabels[j] })
	for _, l := range nodeLabels {
		out += fmt.Sprintf("node %s\n", l)
	}
	edgeLabels := g.schema.EdgeLabels()
	sort.Slice(edgeLabels, func(i, j int) bool { return edgeLabels[i] < edgeLabels[j] })
	for _, l := range edgeLabels {
		ep, _ := g.schema.Endpoints(l)
		out += fmt.Sprintf("edge %s(%s -> %s)\n", l, ep.Src, ep.Dst)
	}
	return out
}

// SetOption applies one "option <name> (on|off)" command.
func (g *Graph) SetOption(name string, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch name {
	case "typecheck":
		g.typecheckOn = on
	case "prunequery":
		g.prunequeryOn = on
	case "answer":
		g.answerOn = on
	default:
		return fmt.Errorf("catalog: unrecognized option %q", name)
	}
	return nil
}

// ListViews returns every view name defined on g, sorted.
func (g *Graph) ListViews() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.views))
	for name := range g.views {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
