package memory

import (
	"context"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/engine/search"
)

// FindPathBFS implements engine.Reader. A missing source or target yields a
// not-found result, not an error.
func (e *Engine) FindPathBFS(ctx context.Context, req engine.PathRequest) (engine.RawPath, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return engine.RawPath{}, engine.ErrClosed
	}
	if !e.hasNodes(req.Source, req.Target) {
		return engine.RawPath{}, nil
	}

	return search.BFS(ctx, e.stepper(req.EdgeType, direction(req)), req.Source, req.Target, req.MaxDepth)
}

// FindPathDijkstra implements engine.Reader using stored edge weights.
// Weights are assumed non-negative.
func (e *Engine) FindPathDijkstra(ctx context.Context, req engine.PathRequest) (engine.RawPath, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return engine.RawPath{}, engine.ErrClosed
	}
	if !e.hasNodes(req.Source, req.Target) {
		return engine.RawPath{}, nil
	}

	return search.Dijkstra(ctx, e.weightedStepper(req.EdgeType, direction(req)), req.Source, req.Target, req.MaxDepth)
}

// HasPath implements engine.Reader. Reachability always follows outgoing
// edges.
func (e *Engine) HasPath(ctx context.Context, source, target engine.NodeID, edgeType *engine.EdgeTypeID, maxDepth int) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return false, engine.ErrClosed
	}
	if !e.hasNodes(source, target) {
		return false, nil
	}

	return search.Reachable(ctx, e.stepper(edgeType, engine.DirectionOut), source, target, maxDepth)
}

// hasNodes reports whether every listed node exists. Callers must hold e.mu.
func (e *Engine) hasNodes(ids ...engine.NodeID) bool {
	for _, id := range ids {
		if _, ok := e.nodes[id]; !ok {
			return false
		}
	}
	return true
}

func direction(req engine.PathRequest) engine.Direction {
	if req.Direction == "" {
		return engine.DirectionOut
	}
	return req.Direction
}

// stepper returns a neighbor callback over the adjacency maps. The callback
// reads without locking; the search runs entirely under the lock held by the
// calling method.
func (e *Engine) stepper(edgeType *engine.EdgeTypeID, dir engine.Direction) search.NeighborFunc {
	return func(_ context.Context, id engine.NodeID) ([]engine.NodeID, error) {
		edges := e.adjacent(id, edgeType, dir)
		peers := make([]engine.NodeID, len(edges))
		for i, ed := range edges {
			peers[i] = ed.peer
		}
		return peers, nil
	}
}

func (e *Engine) weightedStepper(edgeType *engine.EdgeTypeID, dir engine.Direction) search.WeightedNeighborFunc {
	return func(_ context.Context, id engine.NodeID) ([]search.Edge, error) {
		edges := e.adjacent(id, edgeType, dir)
		out := make([]search.Edge, len(edges))
		for i, ed := range edges {
			out[i] = search.Edge{To: ed.peer, Weight: ed.weight}
		}
		return out, nil
	}
}

// adjacent returns the edges leaving id in the requested direction, filtered
// by edge type. Callers must hold e.mu.
func (e *Engine) adjacent(id engine.NodeID, edgeType *engine.EdgeTypeID, dir engine.Direction) []edge {
	var list []edge
	if dir == engine.DirectionOut || dir == engine.DirectionBoth {
		list = appendFiltered(list, e.out[id], edgeType)
	}
	if dir == engine.DirectionIn || dir == engine.DirectionBoth {
		list = appendFiltered(list, e.in[id], edgeType)
	}
	return list
}

func appendFiltered(dst, src []edge, edgeType *engine.EdgeTypeID) []edge {
	for _, ed := range src {
		if edgeType != nil && ed.typ != *edgeType {
			continue
		}
		dst = append(dst, ed)
	}
	return dst
}
