// Package search implements the path-finding cores shared by the storage
// engines. An engine binds direction and edge-type filtering into a neighbor
// callback and hands it to a search; the searches never touch storage, so
// BFS and Dijkstra behave identically over the memory, badger and postgres
// backends.
//
// All searches assume the caller has already verified that both endpoints
// exist. They report not-found rather than erroring when a path does not.
package search

import (
	"container/heap"
	"context"

	"github.com/trellisdb/trellis/engine"
)

// Edge is one weighted step out of a node.
type Edge struct {
	To     engine.NodeID
	Weight float64
}

// NeighborFunc returns the nodes adjacent to id, in the engine's neighbor
// order. Direction and edge-type filtering are bound before the search
// starts.
type NeighborFunc func(ctx context.Context, id engine.NodeID) ([]engine.NodeID, error)

// WeightedNeighborFunc is NeighborFunc with edge weights attached, for
// weighted searches.
type WeightedNeighborFunc func(ctx context.Context, id engine.NodeID) ([]Edge, error)

// BFS finds a shortest path from source to target by hop count, bounded by
// maxDepth hops when positive. TotalWeight of the result is the number of
// edges on the path.
func BFS(ctx context.Context, neighbors NeighborFunc, source, target engine.NodeID, maxDepth int) (engine.RawPath, error) {
	if source == target {
		return engine.RawPath{Found: true, Path: []engine.NodeID{source}}, nil
	}

	visited := map[engine.NodeID]bool{source: true}
	parent := map[engine.NodeID]engine.NodeID{}
	frontier := []engine.NodeID{source}
	found := false

	for hop := 0; !found && len(frontier) > 0; hop++ {
		if maxDepth > 0 && hop >= maxDepth {
			break
		}
		if err := ctx.Err(); err != nil {
			return engine.RawPath{}, err
		}

		var next []engine.NodeID

		for _, id := range frontier {
			peers, err := neighbors(ctx, id)
			if err != nil {
				return engine.RawPath{}, err
			}

			for _, peer := range peers {
				if visited[peer] {
					continue
				}
				visited[peer] = true
				parent[peer] = id
				next = append(next, peer)

				if peer == target {
					found = true
				}
			}
		}

		frontier = next
	}

	if !found {
		return engine.RawPath{}, nil
	}

	path := trail(parent, source, target)
	return engine.RawPath{Found: true, Path: path, TotalWeight: float64(len(path) - 1)}, nil
}

// pathState identifies a node at a hop count. An unbounded search collapses
// all states to hop 0, which is plain Dijkstra; a depth-bounded search keeps
// hop layers distinct so a lighter-but-longer route cannot shadow a route
// that fits the bound.
type pathState struct {
	id   engine.NodeID
	hops int
}

type pqItem struct {
	state pathState
	dist  float64
}

type pathQueue []pqItem

func (q pathQueue) Len() int           { return len(q) }
func (q pathQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q pathQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *pathQueue) Push(x any) { *q = append(*q, x.(pqItem)) }

func (q *pathQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Dijkstra finds a minimum-weight path from source to target using the edge
// weights reported by neighbors. Weights are assumed non-negative.
func Dijkstra(ctx context.Context, neighbors WeightedNeighborFunc, source, target engine.NodeID, maxDepth int) (engine.RawPath, error) {
	if source == target {
		return engine.RawPath{Found: true, Path: []engine.NodeID{source}}, nil
	}

	bounded := maxDepth > 0
	layer := func(hops int) int {
		if bounded {
			return hops
		}
		return 0
	}

	start := pathState{id: source}
	dist := map[pathState]float64{start: 0}
	parent := map[pathState]pathState{}
	settled := map[pathState]bool{}

	q := &pathQueue{{state: start}}
	heap.Init(q)

	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return engine.RawPath{}, err
		}

		it := heap.Pop(q).(pqItem)
		if settled[it.state] {
			continue
		}
		settled[it.state] = true

		if it.state.id == target {
			return engine.RawPath{Found: true, Path: stateTrail(parent, it.state), TotalWeight: it.dist}, nil
		}

		if bounded && it.state.hops >= maxDepth {
			continue
		}

		edges, err := neighbors(ctx, it.state.id)
		if err != nil {
			return engine.RawPath{}, err
		}

		for _, ed := range edges {
			next := pathState{id: ed.To, hops: layer(it.state.hops + 1)}
			nd := it.dist + ed.Weight

			if best, ok := dist[next]; ok && best <= nd {
				continue
			}

			dist[next] = nd
			parent[next] = it.state
			heap.Push(q, pqItem{state: next, dist: nd})
		}
	}

	return engine.RawPath{}, nil
}

// Reachable reports whether target can be reached from source within maxDepth
// hops (zero or negative means unbounded). It stops as soon as target is
// seen.
func Reachable(ctx context.Context, neighbors NeighborFunc, source, target engine.NodeID, maxDepth int) (bool, error) {
	if source == target {
		return true, nil
	}

	visited := map[engine.NodeID]bool{source: true}
	frontier := []engine.NodeID{source}

	for hop := 0; len(frontier) > 0; hop++ {
		if maxDepth > 0 && hop >= maxDepth {
			break
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		var next []engine.NodeID

		for _, id := range frontier {
			peers, err := neighbors(ctx, id)
			if err != nil {
				return false, err
			}

			for _, peer := range peers {
				if peer == target {
					return true, nil
				}
				if visited[peer] {
					continue
				}
				visited[peer] = true
				next = append(next, peer)
			}
		}

		frontier = next
	}

	return false, nil
}

// trail reconstructs the source-to-target path from the BFS parent map.
func trail(parent map[engine.NodeID]engine.NodeID, source, target engine.NodeID) []engine.NodeID {
	path := []engine.NodeID{target}
	for current := target; current != source; {
		p, ok := parent[current]
		if !ok {
			break
		}

		path = append(path, p)
		current = p
	}

	reverse(path)
	return path
}

// stateTrail reconstructs the path ending at the settled target state. The
// start state has no parent entry, which terminates the walk.
func stateTrail(parent map[pathState]pathState, last pathState) []engine.NodeID {
	path := []engine.NodeID{last.id}
	for current := last; ; {
		p, ok := parent[current]
		if !ok {
			break
		}

		path = append(path, p.id)
		current = p
	}

	reverse(path)
	return path
}

func reverse(path []engine.NodeID) {
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
}
