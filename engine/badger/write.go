package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

// InternNodeType implements engine.Engine.
func (e *Engine) InternNodeType(ctx context.Context, name string) (engine.NodeTypeID, error) {
	id, err := e.intern(ctx, dictNodeType, seqNodeType, name)
	if err != nil {
		return 0, fmt.Errorf("interning node type %q: %w", name, err)
	}
	return engine.NodeTypeID(id), nil
}

// InternEdgeType implements engine.Engine.
func (e *Engine) InternEdgeType(ctx context.Context, name string) (engine.EdgeTypeID, error) {
	id, err := e.intern(ctx, dictEdgeType, seqEdgeType, name)
	if err != nil {
		return 0, fmt.Errorf("interning edge type %q: %w", name, err)
	}
	return engine.EdgeTypeID(id), nil
}

// InternPropKey implements engine.Engine.
func (e *Engine) InternPropKey(ctx context.Context, name string) (engine.PropKeyID, error) {
	id, err := e.intern(ctx, dictPropKey, seqPropKey, name)
	if err != nil {
		return 0, fmt.Errorf("interning property key %q: %w", name, err)
	}
	return engine.PropKeyID(id), nil
}

func (e *Engine) intern(ctx context.Context, kind byte, seq, name string) (uint32, error) {
	if e.closed.Load() {
		return 0, engine.ErrClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var id uint32
	err := e.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(dictKey(kind, name))
		if err == nil {
			return item.Value(func(val []byte) error {
				id = decodeUint32(val)
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		next, err := nextSeq(txn, seq)
		if err != nil {
			return err
		}
		id = uint32(next)
		return txn.Set(dictKey(kind, name), encodeUint32(id))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateNode implements engine.Engine.
func (e *Engine) CreateNode(ctx context.Context, typeID engine.NodeTypeID, key string, props map[engine.PropKeyID]value.Value) (engine.NodeID, error) {
	if e.closed.Load() {
		return 0, engine.ErrClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var id engine.NodeID
	err := e.update(ctx, func(txn *badger.Txn) error {
		ok, err := validID(txn, seqNodeType, uint32(typeID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown node type id %d", typeID)
		}

		if key != "" {
			_, err := txn.Get(keyIndexKey(typeID, key))
			if err == nil {
				return fmt.Errorf("creating node %q: %w", key, engine.ErrDuplicateKey)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}

		next, err := nextSeq(txn, seqNode)
		if err != nil {
			return err
		}
		id = engine.NodeID(next)

		rec, err := encodeRecord(nodeRecord{Type: uint32(typeID), Key: key})
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(id), rec); err != nil {
			return err
		}

		for k, v := range props {
			ok, err := validID(txn, seqPropKey, uint32(k))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("unknown property key id %d", k)
			}

			data, err := value.Marshal(v)
			if err != nil {
				return err
			}
			if err := txn.Set(propKey(id, k), data); err != nil {
				return err
			}
		}

		if key != "" {
			if err := txn.Set(keyIndexKey(typeID, key), encodeUint64(uint64(id))); err != nil {
				return err
			}
		}

		return addCounter(txn, cntNodes, 1)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetNodeProp implements engine.Engine.
func (e *Engine) SetNodeProp(ctx context.Context, id engine.NodeID, key engine.PropKeyID, v value.Value) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.update(ctx, func(txn *badger.Txn) error {
		ok, err := nodeExists(txn, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("setting property on node %d: %w", id, engine.ErrNodeNotFound)
		}

		ok, err = validID(txn, seqPropKey, uint32(key))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown property key id %d", key)
		}

		data, err := value.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set(propKey(id, key), data)
	})
}

// DeleteNodeProp implements engine.Engine. Removing an unset property is a
// no-op.
func (e *Engine) DeleteNodeProp(ctx context.Context, id engine.NodeID, key engine.PropKeyID) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.update(ctx, func(txn *badger.Txn) error {
		ok, err := nodeExists(txn, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("deleting property on node %d: %w", id, engine.ErrNodeNotFound)
		}

		return txn.Delete(propKey(id, key))
	})
}

// CreateEdge implements engine.Engine. Recreating an existing edge updates
// its weight in place.
func (e *Engine) CreateEdge(ctx context.Context, source, target engine.NodeID, edgeType engine.EdgeTypeID, weight float64) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.update(ctx, func(txn *badger.Txn) error {
		ok, err := validID(txn, seqEdgeType, uint32(edgeType))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown edge type id %d", edgeType)
		}

		ok, err = nodeExists(txn, source)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("creating edge from node %d: %w", source, engine.ErrNodeNotFound)
		}

		ok, err = nodeExists(txn, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("creating edge to node %d: %w", target, engine.ErrNodeNotFound)
		}

		_, err = txn.Get(edgeKey(prefixOut, source, edgeType, target))
		isNew := errors.Is(err, badger.ErrKeyNotFound)
		if err != nil && !isNew {
			return err
		}

		w := encodeWeight(weight)
		if err := txn.Set(edgeKey(prefixOut, source, edgeType, target), w); err != nil {
			return err
		}
		if err := txn.Set(edgeKey(prefixIn, target, edgeType, source), w); err != nil {
			return err
		}

		if isNew {
			return addCounter(txn, cntEdges, 1)
		}
		return nil
	})
}

// DeleteEdge implements engine.Engine.
func (e *Engine) DeleteEdge(ctx context.Context, source, target engine.NodeID, edgeType engine.EdgeTypeID) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(edgeKey(prefixOut, source, edgeType, target))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("deleting edge %d->%d: %w", source, target, engine.ErrEdgeNotFound)
		}
		if err != nil {
			return err
		}

		if err := txn.Delete(edgeKey(prefixOut, source, edgeType, target)); err != nil {
			return err
		}
		if err := txn.Delete(edgeKey(prefixIn, target, edgeType, source)); err != nil {
			return err
		}
		return addCounter(txn, cntEdges, -1)
	})
}

// edgeRef identifies one adjacency entry of a node.
type edgeRef struct {
	typ  engine.EdgeTypeID
	peer engine.NodeID
}

// DeleteNode implements engine.Engine. The node's properties, key index
// entry and every edge touching it are removed in the same transaction.
func (e *Engine) DeleteNode(ctx context.Context, id engine.NodeID) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.update(ctx, func(txn *badger.Txn) error {
		rec, ok, err := readRecord(txn, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("deleting node %d: %w", id, engine.ErrNodeNotFound)
		}

		// Collect before deleting so the scans see a stable view.
		outs, err := scanEdges(txn, prefixOut, id)
		if err != nil {
			return err
		}
		ins, err := scanEdges(txn, prefixIn, id)
		if err != nil {
			return err
		}

		removed := int64(0)
		for _, ed := range outs {
			if err := txn.Delete(edgeKey(prefixOut, id, ed.typ, ed.peer)); err != nil {
				return err
			}
			if err := txn.Delete(edgeKey(prefixIn, ed.peer, ed.typ, id)); err != nil {
				return err
			}
			removed++
		}
		for _, ed := range ins {
			if ed.peer == id {
				// Self-loop, already removed with the out edges.
				continue
			}
			if err := txn.Delete(edgeKey(prefixIn, id, ed.typ, ed.peer)); err != nil {
				return err
			}
			if err := txn.Delete(edgeKey(prefixOut, ed.peer, ed.typ, id)); err != nil {
				return err
			}
			removed++
		}

		props, err := scanKeys(txn, propPrefix(id))
		if err != nil {
			return err
		}
		for _, k := range props {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}

		if err := txn.Delete(nodeKey(id)); err != nil {
			return err
		}
		if rec.Key != "" {
			if err := txn.Delete(keyIndexKey(engine.NodeTypeID(rec.Type), rec.Key)); err != nil {
				return err
			}
		}

		if err := addCounter(txn, cntEdges, -removed); err != nil {
			return err
		}
		return addCounter(txn, cntNodes, -1)
	})
}

// scanEdges lists the (type, peer) pairs under one adjacency prefix without
// loading values.
func scanEdges(txn *badger.Txn, prefix string, id engine.NodeID) ([]edgeRef, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	p := edgePrefix(prefix, id)
	var refs []edgeRef
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		key := it.Item().Key()
		refs = append(refs, edgeRef{
			typ:  engine.EdgeTypeID(decodeUint32(key[len(p) : len(p)+4])),
			peer: peerID(key),
		})
	}
	return refs, nil
}

// scanKeys returns copies of every key under prefix.
func scanKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
