package memory

import (
	"context"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

// OutNeighbors implements engine.Reader. Neighbors are returned in edge
// insertion order.
func (e *Engine) OutNeighbors(_ context.Context, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, engine.ErrClosed
	}

	return collectPeers(e.out[id], edgeType), nil
}

// InNeighbors implements engine.Reader. Neighbors are returned in edge
// insertion order.
func (e *Engine) InNeighbors(_ context.Context, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, engine.ErrClosed
	}

	return collectPeers(e.in[id], edgeType), nil
}

func collectPeers(list []edge, edgeType *engine.EdgeTypeID) []engine.NodeID {
	peers := make([]engine.NodeID, 0, len(list))
	for _, ed := range list {
		if edgeType != nil && ed.typ != *edgeType {
			continue
		}
		peers = append(peers, ed.peer)
	}
	return peers
}

// NodeKey implements engine.Reader.
func (e *Engine) NodeKey(_ context.Context, id engine.NodeID) (string, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return "", false, engine.ErrClosed
	}

	n, ok := e.nodes[id]
	if !ok {
		return "", false, nil
	}
	return n.key, true, nil
}

// NodeType implements engine.Reader.
func (e *Engine) NodeType(_ context.Context, id engine.NodeID) (engine.NodeTypeID, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return 0, false, engine.ErrClosed
	}

	n, ok := e.nodes[id]
	if !ok {
		return 0, false, nil
	}
	return n.typ, true, nil
}

// NodeProp implements engine.Reader.
func (e *Engine) NodeProp(_ context.Context, id engine.NodeID, key engine.PropKeyID) (value.Value, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return value.Value{}, false, engine.ErrClosed
	}

	n, ok := e.nodes[id]
	if !ok {
		return value.Value{}, false, nil
	}

	v, ok := n.props[key]
	if !ok {
		return value.Value{}, false, nil
	}
	return v, true, nil
}
