package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

// OutNeighbors returns the targets of edges leaving id, optionally
// restricted to one edge type. Neighbors are ordered by edge type, then by
// neighbor id.
func (e *Engine) OutNeighbors(ctx context.Context, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	if edgeType != nil {
		return e.neighbors(ctx,
			`SELECT target FROM graph_edges WHERE source = $1 AND type_id = $2 ORDER BY type_id, target`,
			int64(id), int32(*edgeType))
	}

	return e.neighbors(ctx,
		`SELECT target FROM graph_edges WHERE source = $1 ORDER BY type_id, target`,
		int64(id))
}

// InNeighbors returns the sources of edges arriving at id, optionally
// restricted to one edge type. Neighbors are ordered by edge type, then by
// neighbor id.
func (e *Engine) InNeighbors(ctx context.Context, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	if edgeType != nil {
		return e.neighbors(ctx,
			`SELECT source FROM graph_edges WHERE target = $1 AND type_id = $2 ORDER BY type_id, source`,
			int64(id), int32(*edgeType))
	}

	return e.neighbors(ctx,
		`SELECT source FROM graph_edges WHERE target = $1 ORDER BY type_id, source`,
		int64(id))
}

// neighbors runs one adjacency query and collects the peer column.
func (e *Engine) neighbors(ctx context.Context, query string, args ...any) ([]engine.NodeID, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := e.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	defer rows.Close()

	var ids []engine.NodeID

	for rows.Next() {
		var peer int64
		if err := rows.Scan(&peer); err != nil {
			return nil, fmt.Errorf("scanning neighbor row: %w", err)
		}

		ids = append(ids, engine.NodeID(peer))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating neighbor rows: %w", err)
	}

	return ids, nil
}

// NodeKey returns the application key of a node.
func (e *Engine) NodeKey(ctx context.Context, id engine.NodeID) (string, bool, error) {
	_, key, ok, err := e.record(ctx, id)

	return key, ok, err
}

// NodeType returns the interned type of a node.
func (e *Engine) NodeType(ctx context.Context, id engine.NodeID) (engine.NodeTypeID, bool, error) {
	typeID, _, ok, err := e.record(ctx, id)

	return engine.NodeTypeID(typeID), ok, err
}

// record fetches the type and key columns of one node. ok=false means the
// node does not exist.
func (e *Engine) record(ctx context.Context, id engine.NodeID) (int32, string, bool, error) {
	if e.closed.Load() {
		return 0, "", false, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		typeID int32
		key    string
	)

	err := e.pool.QueryRow(ctx,
		`SELECT type_id, key FROM graph_nodes WHERE id = $1`, int64(id)).Scan(&typeID, &key)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", false, nil
	}

	if err != nil {
		return 0, "", false, fmt.Errorf("reading node %d: %w", id, err)
	}

	return typeID, key, true, nil
}

// NodeProp returns one property value of a node. ok=false covers both a
// missing node and an unset property.
func (e *Engine) NodeProp(ctx context.Context, id engine.NodeID, key engine.PropKeyID) (value.Value, bool, error) {
	if e.closed.Load() {
		return value.Value{}, false, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var data []byte

	err := e.pool.QueryRow(ctx,
		`SELECT value FROM graph_props WHERE node_id = $1 AND key_id = $2`,
		int64(id), int32(key)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return value.Value{}, false, nil
	}

	if err != nil {
		return value.Value{}, false, fmt.Errorf("reading property: %w", err)
	}

	v, err := value.Unmarshal(data)
	if err != nil {
		return value.Value{}, false, err
	}

	return v, true, nil
}

// NodeByKey finds a node by type and application key.
func (e *Engine) NodeByKey(ctx context.Context, typeID engine.NodeTypeID, key string) (engine.NodeID, bool, error) {
	if e.closed.Load() {
		return 0, false, engine.ErrClosed
	}

	// Empty keys are never indexed.
	if key == "" {
		return 0, false, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var id int64

	err := e.pool.QueryRow(ctx,
		`SELECT id FROM graph_nodes WHERE type_id = $1 AND key = $2`,
		int32(typeID), key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("looking up node by key: %w", err)
	}

	return engine.NodeID(id), true, nil
}

// Stats reports store sizes.
func (e *Engine) Stats(ctx context.Context) (engine.Stats, error) {
	if e.closed.Load() {
		return engine.Stats{}, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var nodes, edges, nodeTypes, edgeTypes, propKeys int64

	err := e.pool.QueryRow(ctx,
		`SELECT
			(SELECT count(*) FROM graph_nodes),
			(SELECT count(*) FROM graph_edges),
			(SELECT count(*) FROM graph_node_types),
			(SELECT count(*) FROM graph_edge_types),
			(SELECT count(*) FROM graph_prop_keys)`).
		Scan(&nodes, &edges, &nodeTypes, &edgeTypes, &propKeys)
	if err != nil {
		return engine.Stats{}, fmt.Errorf("reading stats: %w", err)
	}

	return engine.Stats{
		Nodes:     uint64(nodes),
		Edges:     uint64(edges),
		NodeTypes: uint64(nodeTypes),
		EdgeTypes: uint64(edgeTypes),
		PropKeys:  uint64(propKeys),
	}, nil
}
