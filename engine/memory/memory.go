// Package memory implements the storage engine on in-process maps. It is the
// default engine for tests and for graphs that fit in memory; every operation
// is safe for concurrent use behind a single RWMutex.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

// dict interns names to dense uint32 IDs starting at 1.
type dict struct {
	byName map[string]uint32
	names  []string
}

func newDict() dict {
	return dict{byName: make(map[string]uint32)}
}

func (d *dict) intern(name string) uint32 {
	if id, ok := d.byName[name]; ok {
		return id
	}
	d.names = append(d.names, name)
	id := uint32(len(d.names))
	d.byName[name] = id
	return id
}

func (d *dict) has(id uint32) bool {
	return id >= 1 && int(id) <= len(d.names)
}

type edge struct {
	peer   engine.NodeID
	typ    engine.EdgeTypeID
	weight float64
}

type node struct {
	typ   engine.NodeTypeID
	key   string
	props map[engine.PropKeyID]value.Value
}

// Engine is the in-memory storage engine.
type Engine struct {
	mu sync.RWMutex

	nodeTypes dict
	edgeTypes dict
	propKeys  dict

	nodes map[engine.NodeID]*node
	out   map[engine.NodeID][]edge
	in    map[engine.NodeID][]edge

	// keys indexes nodes with a non-empty key, per node type.
	keys map[engine.NodeTypeID]map[string]engine.NodeID

	nextID    engine.NodeID
	edgeCount uint64
	closed    bool
}

var _ engine.Engine = (*Engine)(nil)

// New returns an empty in-memory engine.
func New() *Engine {
	return &Engine{
		nodeTypes: newDict(),
		edgeTypes: newDict(),
		propKeys:  newDict(),
		nodes:     make(map[engine.NodeID]*node),
		out:       make(map[engine.NodeID][]edge),
		in:        make(map[engine.NodeID][]edge),
		keys:      make(map[engine.NodeTypeID]map[string]engine.NodeID),
		nextID:    1,
	}
}

// InternNodeType implements engine.Engine.
func (e *Engine) InternNodeType(_ context.Context, name string) (engine.NodeTypeID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, engine.ErrClosed
	}

	return engine.NodeTypeID(e.nodeTypes.intern(name)), nil
}

// InternEdgeType implements engine.Engine.
func (e *Engine) InternEdgeType(_ context.Context, name string) (engine.EdgeTypeID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, engine.ErrClosed
	}

	return engine.EdgeTypeID(e.edgeTypes.intern(name)), nil
}

// InternPropKey implements engine.Engine.
func (e *Engine) InternPropKey(_ context.Context, name string) (engine.PropKeyID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, engine.ErrClosed
	}

	return engine.PropKeyID(e.propKeys.intern(name)), nil
}

// CreateNode implements engine.Engine.
func (e *Engine) CreateNode(_ context.Context, typeID engine.NodeTypeID, key string, props map[engine.PropKeyID]value.Value) (engine.NodeID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, engine.ErrClosed
	}
	if !e.nodeTypes.has(uint32(typeID)) {
		return 0, fmt.Errorf("unknown node type id %d", typeID)
	}

	if key != "" {
		if _, taken := e.keys[typeID][key]; taken {
			return 0, fmt.Errorf("creating node %q: %w", key, engine.ErrDuplicateKey)
		}
	}

	n := &node{typ: typeID, key: key, props: make(map[engine.PropKeyID]value.Value, len(props))}
	for k, v := range props {
		if !e.propKeys.has(uint32(k)) {
			return 0, fmt.Errorf("unknown property key id %d", k)
		}
		n.props[k] = v
	}

	id := e.nextID
	e.nextID++
	e.nodes[id] = n

	if key != "" {
		if e.keys[typeID] == nil {
			e.keys[typeID] = make(map[string]engine.NodeID)
		}
		e.keys[typeID][key] = id
	}

	return id, nil
}

// SetNodeProp implements engine.Engine.
func (e *Engine) SetNodeProp(_ context.Context, id engine.NodeID, key engine.PropKeyID, v value.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}

	n, ok := e.nodes[id]
	if !ok {
		return fmt.Errorf("setting property on node %d: %w", id, engine.ErrNodeNotFound)
	}
	if !e.propKeys.has(uint32(key)) {
		return fmt.Errorf("unknown property key id %d", key)
	}

	n.props[key] = v
	return nil
}

// DeleteNodeProp implements engine.Engine.
func (e *Engine) DeleteNodeProp(_ context.Context, id engine.NodeID, key engine.PropKeyID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}

	n, ok := e.nodes[id]
	if !ok {
		return fmt.Errorf("deleting property on node %d: %w", id, engine.ErrNodeNotFound)
	}

	delete(n.props, key)
	return nil
}

// CreateEdge implements engine.Engine.
func (e *Engine) CreateEdge(_ context.Context, source, target engine.NodeID, edgeType engine.EdgeTypeID, weight float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}
	if !e.edgeTypes.has(uint32(edgeType)) {
		return fmt.Errorf("unknown edge type id %d", edgeType)
	}
	if _, ok := e.nodes[source]; !ok {
		return fmt.Errorf("creating edge from node %d: %w", source, engine.ErrNodeNotFound)
	}
	if _, ok := e.nodes[target]; !ok {
		return fmt.Errorf("creating edge to node %d: %w", target, engine.ErrNodeNotFound)
	}

	// Recreating an existing edge updates its weight in place.
	for i, out := range e.out[source] {
		if out.peer == target && out.typ == edgeType {
			e.out[source][i].weight = weight
			for j, in := range e.in[target] {
				if in.peer == source && in.typ == edgeType {
					e.in[target][j].weight = weight
					break
				}
			}
			return nil
		}
	}

	e.out[source] = append(e.out[source], edge{peer: target, typ: edgeType, weight: weight})
	e.in[target] = append(e.in[target], edge{peer: source, typ: edgeType, weight: weight})
	e.edgeCount++

	return nil
}

// DeleteEdge implements engine.Engine.
func (e *Engine) DeleteEdge(_ context.Context, source, target engine.NodeID, edgeType engine.EdgeTypeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}

	if !removeEdge(e.out, source, target, edgeType) {
		return fmt.Errorf("deleting edge %d->%d: %w", source, target, engine.ErrEdgeNotFound)
	}
	removeEdge(e.in, target, source, edgeType)
	e.edgeCount--

	return nil
}

// DeleteNode implements engine.Engine.
func (e *Engine) DeleteNode(_ context.Context, id engine.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrClosed
	}

	n, ok := e.nodes[id]
	if !ok {
		return fmt.Errorf("deleting node %d: %w", id, engine.ErrNodeNotFound)
	}

	for _, out := range e.out[id] {
		removeEdge(e.in, out.peer, id, out.typ)
		e.edgeCount--
	}
	for _, in := range e.in[id] {
		removeEdge(e.out, in.peer, id, in.typ)
		e.edgeCount--
	}

	delete(e.out, id)
	delete(e.in, id)
	delete(e.nodes, id)

	if n.key != "" {
		delete(e.keys[n.typ], n.key)
	}

	return nil
}

// removeEdge deletes the entry for (from, to, typ) from one adjacency map,
// preserving the order of the remaining entries.
func removeEdge(adj map[engine.NodeID][]edge, from, to engine.NodeID, typ engine.EdgeTypeID) bool {
	list := adj[from]
	for i, ed := range list {
		if ed.peer == to && ed.typ == typ {
			adj[from] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// NodeByKey implements engine.Engine.
func (e *Engine) NodeByKey(_ context.Context, typeID engine.NodeTypeID, key string) (engine.NodeID, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return 0, false, engine.ErrClosed
	}

	id, ok := e.keys[typeID][key]
	return id, ok, nil
}

// Stats implements engine.Engine.
func (e *Engine) Stats(_ context.Context) (engine.Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return engine.Stats{}, engine.ErrClosed
	}

	return engine.Stats{
		Nodes:     uint64(len(e.nodes)),
		Edges:     e.edgeCount,
		NodeTypes: uint64(len(e.nodeTypes.names)),
		EdgeTypes: uint64(len(e.edgeTypes.names)),
		PropKeys:  uint64(len(e.propKeys.names)),
	}, nil
}

// Close implements engine.Engine. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	return nil
}
