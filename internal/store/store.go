// Package store keeps an analysis result as a queryable graph of
// functions, ADTs, call edges, access edges and navigation nodes.
package store

import (
	"context"
	"io"
)

// Store is the interface for the propagation graph backend.
// Implementations: KuzuStore (persistent), MemStore (default and tests).
// Missing rows are reported as nil results with a nil error.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations. Edges require both endpoints to exist.
	AddFunction(ctx context.Context, node FunctionNode) error
	AddAdt(ctx context.Context, node AdtNode) error
	AddCall(ctx context.Context, edge CallEdge) error
	AddAccess(ctx context.Context, edge AccessEdge) error
	AddNaviNode(ctx context.Context, node NaviNode) error

	// Read operations.
	GetFunction(ctx context.Context, name string) (*FunctionNode, error)
	QueryFunctions(ctx context.Context, q FunctionQuery) ([]FunctionNode, error)

	// Graph traversal.
	GetPropagation(ctx context.Context, name string, direction Direction, maxDepth int) ([]PropagationChain, error)
	GetAccessors(ctx context.Context, adt string) ([]AccessEdge, error)
	GetAllCalls(ctx context.Context) ([]CallEdge, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Direction controls propagation traversal direction.
type Direction string

const (
	DirectionCallees Direction = "callees" // what does this call?
	DirectionCallers Direction = "callers" // what calls this?
)

// DefaultDepth bounds traversals when the caller passes no depth.
const DefaultDepth = 10
