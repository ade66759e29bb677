package parser

import "github.com/pgview/pgview/pkg/ast"

// Command is one parsed top-level statement from the surface grammar in
// spec.md §6. Exactly one field is non-nil/true, except for the
// no-argument flag commands which are identified by the corresponding
// bool.
type Command struct {
	Connect     *ConnectCmd
	Disconnect  bool
	CreateGraph *CreateGraphCmd
	DropGraph   *DropGraphCmd
	UseGraph    *UseGraphCmd
	ListGraphs  bool

	CreateNodeLabel *CreateNodeLabelCmd
	CreateEdgeLabel *CreateEdgeLabelCmd
	ShowSchema      bool

	InsertNode  *InsertNodeCmd
	InsertEdge  *InsertEdgeCmd
	InsertNProp *InsertPropCmd
	InsertEProp *InsertPropCmd
	Import      *ImportCmd

	CreateView *ast.View
	Query      *ast.Query

	ListViews   bool
	ShowProgram bool
	ShowEGDs    bool

	Option *OptionCmd
	Quit   bool
}

// ConnectCmd is "connect <backend>".
type ConnectCmd struct {
	Backend string
}

// CreateGraphCmd is "create graph <name>".
type CreateGraphCmd struct {
	Name string
}

// DropGraphCmd is "drop graph <name>".
type DropGraphCmd struct {
	Name string
}

// UseGraphCmd is "use <name>".
type UseGraphCmd struct {
	Name string
}

// CreateNodeLabelCmd is "create node <L>".
type CreateNodeLabelCmd struct {
	Label string
}

// CreateEdgeLabelCmd is "create edge <L>(<L1> -> <L2>)".
type CreateEdgeLabelCmd struct {
	Label    string
	Src, Dst string
}

// InsertNodeCmd is `insert N(id, "L")`.
type InsertNodeCmd struct {
	ID    uint64
	Label string
}

// InsertEdgeCmd is `insert E(id, s, d, "L")`.
type InsertEdgeCmd struct {
	ID       uint64
	Src, Dst uint64
	Label    string
}

// InsertPropCmd is `insert NP(id, "k", "v")` or `insert EP(id, "k", "v")`.
type InsertPropCmd struct {
	ID       uint64
	Key, Val string
}

// ImportRelation names which relation an import command targets.
type ImportRelation int

const (
	ImportN ImportRelation = iota
	ImportE
	ImportNP
	ImportEP
)

// ImportCmd is `import {N|E|NP|EP} from "<path>"`.
type ImportCmd struct {
	Relation ImportRelation
	Path     string
}

// OptionCmd is `option <name> (on|off)`.
type OptionCmd struct {
	Name string
	On   bool
}
