package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/engine/search"
)

// FindPathBFS implements engine.Reader. The whole search runs on one read
// transaction, so it sees a consistent snapshot of the graph. A missing
// source or target yields a not-found result, not an error.
func (e *Engine) FindPathBFS(ctx context.Context, req engine.PathRequest) (engine.RawPath, error) {
	if e.closed.Load() {
		return engine.RawPath{}, engine.ErrClosed
	}

	var raw engine.RawPath
	err := e.view(ctx, func(txn *badger.Txn) error {
		ok, err := bothExist(txn, req.Source, req.Target)
		if err != nil || !ok {
			return err
		}

		raw, err = search.BFS(ctx, stepper(txn, req.EdgeType, direction(req)), req.Source, req.Target, req.MaxDepth)
		return err
	})
	if err != nil {
		return engine.RawPath{}, err
	}
	return raw, nil
}

// FindPathDijkstra implements engine.Reader using stored edge weights.
// Weights are assumed non-negative.
func (e *Engine) FindPathDijkstra(ctx context.Context, req engine.PathRequest) (engine.RawPath, error) {
	if e.closed.Load() {
		return engine.RawPath{}, engine.ErrClosed
	}

	var raw engine.RawPath
	err := e.view(ctx, func(txn *badger.Txn) error {
		ok, err := bothExist(txn, req.Source, req.Target)
		if err != nil || !ok {
			return err
		}

		raw, err = search.Dijkstra(ctx, weightedStepper(txn, req.EdgeType, direction(req)), req.Source, req.Target, req.MaxDepth)
		return err
	})
	if err != nil {
		return engine.RawPath{}, err
	}
	return raw, nil
}

// HasPath implements engine.Reader. Reachability always follows outgoing
// edges.
func (e *Engine) HasPath(ctx context.Context, source, target engine.NodeID, edgeType *engine.EdgeTypeID, maxDepth int) (bool, error) {
	if e.closed.Load() {
		return false, engine.ErrClosed
	}

	var reachable bool
	err := e.view(ctx, func(txn *badger.Txn) error {
		ok, err := bothExist(txn, source, target)
		if err != nil || !ok {
			return err
		}

		reachable, err = search.Reachable(ctx, stepper(txn, edgeType, engine.DirectionOut), source, target, maxDepth)
		return err
	})
	if err != nil {
		return false, err
	}
	return reachable, nil
}

func bothExist(txn *badger.Txn, a, b engine.NodeID) (bool, error) {
	ok, err := nodeExists(txn, a)
	if err != nil || !ok {
		return false, err
	}
	return nodeExists(txn, b)
}

func direction(req engine.PathRequest) engine.Direction {
	if req.Direction == "" {
		return engine.DirectionOut
	}
	return req.Direction
}

// stepper returns a neighbor callback over adjacency keys in txn. Only keys
// are scanned.
func stepper(txn *badger.Txn, edgeType *engine.EdgeTypeID, dir engine.Direction) search.NeighborFunc {
	return func(_ context.Context, id engine.NodeID) ([]engine.NodeID, error) {
		var peers []engine.NodeID
		if dir == engine.DirectionOut || dir == engine.DirectionBoth {
			peers = appendPeers(peers, txn, prefixOut, id, edgeType)
		}
		if dir == engine.DirectionIn || dir == engine.DirectionBoth {
			peers = appendPeers(peers, txn, prefixIn, id, edgeType)
		}
		return peers, nil
	}
}

// weightedStepper is stepper with edge weights loaded from the adjacency
// values.
func weightedStepper(txn *badger.Txn, edgeType *engine.EdgeTypeID, dir engine.Direction) search.WeightedNeighborFunc {
	return func(_ context.Context, id engine.NodeID) ([]search.Edge, error) {
		var (
			edges []search.Edge
			err   error
		)
		if dir == engine.DirectionOut || dir == engine.DirectionBoth {
			edges, err = appendWeighted(edges, txn, prefixOut, id, edgeType)
			if err != nil {
				return nil, err
			}
		}
		if dir == engine.DirectionIn || dir == engine.DirectionBoth {
			edges, err = appendWeighted(edges, txn, prefixIn, id, edgeType)
			if err != nil {
				return nil, err
			}
		}
		return edges, nil
	}
}

func appendWeighted(dst []search.Edge, txn *badger.Txn, prefix string, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]search.Edge, error) {
	p := edgePrefix(prefix, id)
	if edgeType != nil {
		p = edgeTypePrefix(prefix, id, *edgeType)
	}

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		peer := peerID(item.Key())

		var w float64
		if err := item.Value(func(val []byte) error {
			w = decodeWeight(val)
			return nil
		}); err != nil {
			return nil, err
		}

		dst = append(dst, search.Edge{To: peer, Weight: w})
	}
	return dst, nil
}
