package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

// OutNeighbors implements engine.Reader. Neighbors are returned in key order:
// sorted by edge type, then by neighbor id.
func (e *Engine) OutNeighbors(ctx context.Context, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	return e.neighbors(ctx, prefixOut, id, edgeType)
}

// InNeighbors implements engine.Reader. Neighbors are returned in key order:
// sorted by edge type, then by neighbor id.
func (e *Engine) InNeighbors(ctx context.Context, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	return e.neighbors(ctx, prefixIn, id, edgeType)
}

func (e *Engine) neighbors(ctx context.Context, prefix string, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}

	var peers []engine.NodeID
	err := e.view(ctx, func(txn *badger.Txn) error {
		peers = appendPeers(peers, txn, prefix, id, edgeType)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return peers, nil
}

// appendPeers collects the neighbor ids under one adjacency prefix without
// loading values.
func appendPeers(dst []engine.NodeID, txn *badger.Txn, prefix string, id engine.NodeID, edgeType *engine.EdgeTypeID) []engine.NodeID {
	p := edgePrefix(prefix, id)
	if edgeType != nil {
		p = edgeTypePrefix(prefix, id, *edgeType)
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		dst = append(dst, peerID(it.Item().Key()))
	}
	return dst
}

// NodeKey implements engine.Reader.
func (e *Engine) NodeKey(ctx context.Context, id engine.NodeID) (string, bool, error) {
	rec, ok, err := e.record(ctx, id)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Key, true, nil
}

// NodeType implements engine.Reader.
func (e *Engine) NodeType(ctx context.Context, id engine.NodeID) (engine.NodeTypeID, bool, error) {
	rec, ok, err := e.record(ctx, id)
	if err != nil || !ok {
		return 0, false, err
	}
	return engine.NodeTypeID(rec.Type), true, nil
}

func (e *Engine) record(ctx context.Context, id engine.NodeID) (nodeRecord, bool, error) {
	if e.closed.Load() {
		return nodeRecord{}, false, engine.ErrClosed
	}

	var (
		rec nodeRecord
		ok  bool
	)
	err := e.view(ctx, func(txn *badger.Txn) error {
		var err error
		rec, ok, err = readRecord(txn, id)
		return err
	})
	if err != nil {
		return nodeRecord{}, false, err
	}
	return rec, ok, nil
}

// NodeProp implements engine.Reader.
func (e *Engine) NodeProp(ctx context.Context, id engine.NodeID, key engine.PropKeyID) (value.Value, bool, error) {
	if e.closed.Load() {
		return value.Value{}, false, engine.ErrClosed
	}

	var (
		v  value.Value
		ok bool
	)
	err := e.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(propKey(id, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			decoded, derr := value.Unmarshal(val)
			if derr != nil {
				return derr
			}
			v, ok = decoded, true
			return nil
		})
	})
	if err != nil {
		return value.Value{}, false, err
	}
	return v, ok, nil
}

// NodeByKey implements engine.Engine.
func (e *Engine) NodeByKey(ctx context.Context, typeID engine.NodeTypeID, key string) (engine.NodeID, bool, error) {
	if e.closed.Load() {
		return 0, false, engine.ErrClosed
	}

	var (
		id engine.NodeID
		ok bool
	)
	err := e.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(keyIndexKey(typeID, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			id, ok = engine.NodeID(decodeUint64(val)), true
			return nil
		})
	})
	if err != nil {
		return 0, false, err
	}
	return id, ok, nil
}

// Stats implements engine.Engine.
func (e *Engine) Stats(ctx context.Context) (engine.Stats, error) {
	if e.closed.Load() {
		return engine.Stats{}, engine.ErrClosed
	}

	var s engine.Stats
	err := e.view(ctx, func(txn *badger.Txn) error {
		counters := []struct {
			name string
			dst  *uint64
		}{
			{cntNodes, &s.Nodes},
			{cntEdges, &s.Edges},
			{seqNodeType, &s.NodeTypes},
			{seqEdgeType, &s.EdgeTypes},
			{seqPropKey, &s.PropKeys},
		}
		for _, c := range counters {
			v, err := readCounter(txn, c.name)
			if err != nil {
				return err
			}
			*c.dst = v
		}
		return nil
	})
	if err != nil {
		return engine.Stats{}, err
	}
	return s, nil
}

// readRecord loads a node record within txn. ok=false means the node does
// not exist.
func readRecord(txn *badger.Txn, id engine.NodeID) (nodeRecord, bool, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nodeRecord{}, false, nil
	}
	if err != nil {
		return nodeRecord{}, false, err
	}

	var rec nodeRecord
	err = item.Value(func(val []byte) error {
		var derr error
		rec, derr = decodeRecord(val)
		return derr
	})
	if err != nil {
		return nodeRecord{}, false, err
	}
	return rec, true, nil
}

// nodeExists reports whether a node record is present without decoding it.
func nodeExists(txn *badger.Txn, id engine.NodeID) (bool, error) {
	_, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
