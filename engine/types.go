package engine

// NodeID identifies a node within a single graph store. IDs are assigned by
// the engine at node creation and are never reused.
type NodeID uint64

// NodeTypeID identifies an interned node type.
type NodeTypeID uint32

// EdgeTypeID identifies an interned edge type.
type EdgeTypeID uint32

// PropKeyID identifies an interned property key.
type PropKeyID uint32

// DefaultWeight is the weight assigned to edges created without an explicit
// weight. Engines store it like any other weight; only weighted path search
// interprets it.
const DefaultWeight = 1.0

// Direction selects which adjacency lists a path search follows.
type Direction string

// Edge directions for path requests.
const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// Valid reports whether d is a recognized direction.
func (d Direction) Valid() bool {
	return d == DirectionOut || d == DirectionIn || d == DirectionBoth
}

// PathRequest describes a shortest-path search between two nodes.
type PathRequest struct {
	Source NodeID
	Target NodeID

	// EdgeType restricts the search to edges of one type. Nil means any type.
	EdgeType *EdgeTypeID

	// MaxDepth bounds the number of hops considered. Zero or negative means
	// unbounded.
	MaxDepth int

	// Direction selects which adjacency to follow. The zero value is treated
	// as DirectionOut.
	Direction Direction
}

// RawPath is the engine-level result of a shortest-path search. Path holds
// node IDs from source to target inclusive; it is nil when no path exists.
type RawPath struct {
	Found       bool
	Path        []NodeID
	TotalWeight float64
}

// Stats summarizes the size of a graph store.
type Stats struct {
	Nodes     uint64
	Edges     uint64
	NodeTypes uint64
	EdgeTypes uint64
	PropKeys  uint64
}
