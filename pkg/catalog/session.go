// Package catalog implements Session/Graph ownership (spec.md §5, §9):
// a Session owns one or more Graphs; each Graph owns its schema, Skolem
// registry, and view catalog, and lazily opens a backend.Handle against
// whichever backend the session is connected to. Command dispatch
// (Session.Execute) wires pkg/parser's Command straight through the
// schema/typecheck/compiler/rewriter/assembler/backend pipeline.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pgview/pgview"
	"github.com/pgview/pgview/pkg/backend"
)

// Session owns a set of named Graphs plus the single backend connection
// they share. Creating, dropping, and selecting graphs are serialized by
// mu; each Graph then guards its own schema/view state independently
// (spec.md §5: writes are serialized by one exclusive lock per command,
// reads take a shared lock, and a write to one graph must not block
// activity on another).
type Session struct {
	mu      sync.RWMutex
	graphs  map[string]*Graph
	current string

	backends   map[string]backend.Backend
	active     backend.Backend
	activeName string
}

// NewSession returns an empty Session with backends registered under the
// names "connect <backend>" will accept (e.g. "mem", "pg").
func NewSession(backends map[string]backend.Backend) *Session {
	return &Session{
		graphs:   make(map[string]*Graph),
		backends: backends,
	}
}

// Connect selects name as the backend new Graph handles will open
// against. Already-open handles from a different backend are left alone
// until a graph next needs one (ensureHandle reopens at that point).
func (s *Session) Connect(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[name]
	if !ok {
		return &backend.ConnectError{Backend: name, Err: fmt.Errorf("no backend registered under this name: %w", pgview.ErrBackend)}
	}
	s.active = b
	s.activeName = name
	return nil
}

// Disconnect closes every graph's open handle and clears the active
// backend. Graphs, schemas, and view catalogs are untouched — only
// backend-held facts are released (spec.md §5 resource discipline).
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, g := range s.graphs {
		if err := g.closeHandle(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.active = nil
	s.activeName = ""
	return firstErr
}

// CreateGraph registers a new, empty Graph under name.
func (s *Session) CreateGraph(ctx context.Context, name string) (*Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[name]; ok {
		return nil, fmt.Errorf("catalog: graph %q already exists: %w", name, pgview.ErrSchemaConflict)
	}
	g := newGraph(name)
	s.graphs[name] = g
	return g, nil
}

// DropGraph closes name's backend handle (if any) and removes it from
// the session. If name was the current graph, no graph is selected
// afterward.
func (s *Session) DropGraph(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[name]
	if !ok {
		return fmt.Errorf("catalog: %w: %q", pgview.ErrUnknownGraph, name)
	}
	if err := g.closeHandle(ctx); err != nil {
		return err
	}
	delete(s.graphs, name)
	if s.current == name {
		s.current = ""
	}
	return nil
}

// UseGraph selects name as the current graph for subsequent commands.
func (s *Session) UseGraph(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[name]; !ok {
		return fmt.Errorf("catalog: %w: %q", pgview.ErrUnknownGraph, name)
	}
	s.current = name
	return nil
}

// ListGraphs returns every graph name in the session, sorted.
func (s *Session) ListGraphs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.graphs))
	for name := range s.graphs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Current returns the currently selected Graph. Returns ErrUnknownGraph
// if no graph has been selected with "use".
func (s *Session) Current() (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return nil, fmt.Errorf(`catalog: %w: no graph selected, run "use <name>" first`, pgview.ErrUnknownGraph)
	}
	return s.graphs[s.current], nil
}

// Status summarizes the session, supplementing the CLI surface's
// introspection commands with a single health/status view (SPEC_FULL.md
// §2, grounded on the original implementation's Console status report).
type Status struct {
	CurrentGraph string
	Backend      string
	GraphCount   int
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{CurrentGraph: s.current, Backend: s.activeName, GraphCount: len(s.graphs)}
}

// handleFor returns g's open backend.Handle, opening one against the
// session's active backend if necessary.
func (s *Session) handleFor(ctx context.Context, g *Graph) (backend.Handle, error) {
	s.mu.RLock()
	active, name := s.active, s.activeName
	s.mu.RUnlock()
	if active == nil {
		return nil, fmt.Errorf(`catalog: %w: no backend connected, run "connect <backend>" first`, pgview.ErrBackend)
	}
	return g.ensureHandle(ctx, active, name)
}
