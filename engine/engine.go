// Package engine defines the storage contract the query layer is built on.
// An engine owns node and edge records, interned type and key dictionaries,
// adjacency lists, and the shortest-path primitives; the query layer never
// touches storage except through these interfaces.
//
// Implementations live in the subpackages memory, badger and postgres.
package engine

import (
	"context"

	"github.com/trellisdb/trellis/value"
)

// Reader is the read-only storage surface the query layer depends on.
//
// Lookup methods use a (value, ok, error) convention: ok=false with a nil
// error means the node does not exist or the property is unset; a non-nil
// error means the read itself failed. Neighbor lists are returned in a
// deterministic order (edge insertion order for the memory engine, key order
// for persistent engines) and calling them on an absent node yields an empty
// list, not an error.
type Reader interface {
	// OutNeighbors returns the targets of edges leaving id, optionally
	// restricted to one edge type.
	OutNeighbors(ctx context.Context, id NodeID, edgeType *EdgeTypeID) ([]NodeID, error)

	// InNeighbors returns the sources of edges arriving at id, optionally
	// restricted to one edge type.
	InNeighbors(ctx context.Context, id NodeID, edgeType *EdgeTypeID) ([]NodeID, error)

	// NodeKey returns the application key of a node. ok=false means the node
	// does not exist.
	NodeKey(ctx context.Context, id NodeID) (string, bool, error)

	// NodeType returns the interned type of a node. ok=false means the node
	// does not exist.
	NodeType(ctx context.Context, id NodeID) (NodeTypeID, bool, error)

	// NodeProp returns one property value of a node. ok=false means the node
	// does not exist or the property is unset.
	NodeProp(ctx context.Context, id NodeID, key PropKeyID) (value.Value, bool, error)

	// FindPathBFS finds a shortest path by hop count. TotalWeight of the
	// result is the number of edges on the path.
	FindPathBFS(ctx context.Context, req PathRequest) (RawPath, error)

	// FindPathDijkstra finds a minimum-weight path using stored edge weights.
	FindPathDijkstra(ctx context.Context, req PathRequest) (RawPath, error)

	// HasPath reports whether target is reachable from source following
	// outgoing edges, optionally restricted to one edge type and bounded by
	// maxDepth hops (zero or negative means unbounded).
	HasPath(ctx context.Context, source, target NodeID, edgeType *EdgeTypeID, maxDepth int) (bool, error)
}

// Engine is the full storage surface: reads plus dictionary interning and
// graph mutation. All methods are safe for concurrent use.
type Engine interface {
	Reader

	// InternNodeType returns the stable ID for a node type name, creating it
	// on first use.
	InternNodeType(ctx context.Context, name string) (NodeTypeID, error)

	// InternEdgeType returns the stable ID for an edge type name, creating it
	// on first use.
	InternEdgeType(ctx context.Context, name string) (EdgeTypeID, error)

	// InternPropKey returns the stable ID for a property key name, creating
	// it on first use.
	InternPropKey(ctx context.Context, name string) (PropKeyID, error)

	// CreateNode stores a new node and returns its assigned ID. A non-empty
	// key must be unique within the node type; violations return
	// ErrDuplicateKey.
	CreateNode(ctx context.Context, typeID NodeTypeID, key string, props map[PropKeyID]value.Value) (NodeID, error)

	// SetNodeProp sets or replaces one property on an existing node.
	SetNodeProp(ctx context.Context, id NodeID, key PropKeyID, v value.Value) error

	// DeleteNodeProp removes one property from a node. Removing an unset
	// property is a no-op.
	DeleteNodeProp(ctx context.Context, id NodeID, key PropKeyID) error

	// CreateEdge stores a directed edge. Creating an edge that already exists
	// (same source, target and type) replaces its weight.
	CreateEdge(ctx context.Context, source, target NodeID, edgeType EdgeTypeID, weight float64) error

	// DeleteEdge removes a directed edge. Missing edges return
	// ErrEdgeNotFound.
	DeleteEdge(ctx context.Context, source, target NodeID, edgeType EdgeTypeID) error

	// DeleteNode removes a node together with all edges touching it.
	DeleteNode(ctx context.Context, id NodeID) error

	// NodeByKey finds a node by type and application key. ok=false means no
	// such node.
	NodeByKey(ctx context.Context, typeID NodeTypeID, key string) (NodeID, bool, error)

	// Stats reports store sizes.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the engine's resources. Operations after Close return
	// ErrClosed.
	Close() error
}
