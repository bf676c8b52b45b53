package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

// InternNodeType returns the stable ID for a node type name, creating it on
// first use.
func (e *Engine) InternNodeType(ctx context.Context, name string) (engine.NodeTypeID, error) {
	id, err := e.intern(ctx, "graph_node_types", name)
	if err != nil {
		return 0, fmt.Errorf("interning node type %q: %w", name, err)
	}

	return engine.NodeTypeID(id), nil
}

// InternEdgeType returns the stable ID for an edge type name, creating it on
// first use.
func (e *Engine) InternEdgeType(ctx context.Context, name string) (engine.EdgeTypeID, error) {
	id, err := e.intern(ctx, "graph_edge_types", name)
	if err != nil {
		return 0, fmt.Errorf("interning edge type %q: %w", name, err)
	}

	return engine.EdgeTypeID(id), nil
}

// InternPropKey returns the stable ID for a property key name, creating it
// on first use.
func (e *Engine) InternPropKey(ctx context.Context, name string) (engine.PropKeyID, error) {
	id, err := e.intern(ctx, "graph_prop_keys", name)
	if err != nil {
		return 0, fmt.Errorf("interning property key %q: %w", name, err)
	}

	return engine.PropKeyID(id), nil
}

// intern resolves name in one of the dictionary tables, inserting it on
// first use. Concurrent interns of the same name converge on one row.
func (e *Engine) intern(ctx context.Context, table, name string) (uint32, error) {
	if e.closed.Load() {
		return 0, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var id int32

	err := e.pool.QueryRow(ctx, `SELECT id FROM `+table+` WHERE name = $1`, name).Scan(&id)
	if err == nil {
		return uint32(id), nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	err = e.pool.QueryRow(ctx,
		`INSERT INTO `+table+` (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`,
		name).Scan(&id)
	if err == nil {
		return uint32(id), nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Lost an insert race; the winner's row is committed and visible now.
	if err := e.pool.QueryRow(ctx, `SELECT id FROM `+table+` WHERE name = $1`, name).Scan(&id); err != nil {
		return 0, err
	}

	return uint32(id), nil
}

// CreateNode stores a new node with its initial properties and returns the
// assigned ID. A non-empty key must be unique within the node type.
func (e *Engine) CreateNode(ctx context.Context, typeID engine.NodeTypeID, key string, props map[engine.PropKeyID]value.Value) (engine.NodeID, error) {
	if e.closed.Load() {
		return 0, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	var id int64

	err = tx.QueryRow(ctx,
		`INSERT INTO graph_nodes (type_id, key) VALUES ($1, $2) RETURNING id`,
		int32(typeID), key).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return 0, fmt.Errorf("creating node %q: %w", key, engine.ErrDuplicateKey)
			case "23503":
				return 0, fmt.Errorf("unknown node type id %d", typeID)
			}
		}

		return 0, fmt.Errorf("inserting node: %w", err)
	}

	for k, v := range props {
		if err := upsertProp(ctx, tx, id, k, v); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing node: %w", err)
	}

	return engine.NodeID(id), nil
}

// SetNodeProp sets or replaces one property on an existing node.
func (e *Engine) SetNodeProp(ctx context.Context, id engine.NodeID, key engine.PropKeyID, v value.Value) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	ok, err := nodeExists(ctx, tx, id)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("setting property on node %d: %w", id, engine.ErrNodeNotFound)
	}

	if err := upsertProp(ctx, tx, int64(id), key, v); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing property: %w", err)
	}

	return nil
}

// DeleteNodeProp removes one property from a node. Removing an unset
// property is a no-op.
func (e *Engine) DeleteNodeProp(ctx context.Context, id engine.NodeID, key engine.PropKeyID) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	ok, err := nodeExists(ctx, tx, id)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("deleting property on node %d: %w", id, engine.ErrNodeNotFound)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM graph_props WHERE node_id = $1 AND key_id = $2`,
		int64(id), int32(key))
	if err != nil {
		return fmt.Errorf("deleting property: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing property delete: %w", err)
	}

	return nil
}

// CreateEdge stores a directed edge. Recreating an existing edge updates its
// weight in place.
func (e *Engine) CreateEdge(ctx context.Context, source, target engine.NodeID, edgeType engine.EdgeTypeID, weight float64) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := e.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	var typeOK, sourceOK, targetOK bool

	err = tx.QueryRow(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM graph_edge_types WHERE id = $1),
			EXISTS (SELECT 1 FROM graph_nodes WHERE id = $2),
			EXISTS (SELECT 1 FROM graph_nodes WHERE id = $3)`,
		int32(edgeType), int64(source), int64(target)).Scan(&typeOK, &sourceOK, &targetOK)
	if err != nil {
		return fmt.Errorf("checking edge endpoints: %w", err)
	}

	if !typeOK {
		return fmt.Errorf("unknown edge type id %d", edgeType)
	}

	if !sourceOK {
		return fmt.Errorf("creating edge from node %d: %w", source, engine.ErrNodeNotFound)
	}

	if !targetOK {
		return fmt.Errorf("creating edge to node %d: %w", target, engine.ErrNodeNotFound)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO graph_edges (source, type_id, target, weight) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source, type_id, target) DO UPDATE SET weight = EXCLUDED.weight`,
		int64(source), int32(edgeType), int64(target), weight)
	if err != nil {
		return fmt.Errorf("upserting edge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing edge: %w", err)
	}

	return nil
}

// DeleteEdge removes a directed edge.
func (e *Engine) DeleteEdge(ctx context.Context, source, target engine.NodeID, edgeType engine.EdgeTypeID) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := e.pool.Exec(ctx,
		`DELETE FROM graph_edges WHERE source = $1 AND type_id = $2 AND target = $3`,
		int64(source), int32(edgeType), int64(target))
	if err != nil {
		return fmt.Errorf("deleting edge: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting edge %d->%d: %w", source, target, engine.ErrEdgeNotFound)
	}

	return nil
}

// DeleteNode removes a node. Its properties and every edge touching it
// cascade away with it.
func (e *Engine) DeleteNode(ctx context.Context, id engine.NodeID) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := e.pool.Exec(ctx, `DELETE FROM graph_nodes WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting node: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting node %d: %w", id, engine.ErrNodeNotFound)
	}

	return nil
}

// upsertProp writes one property row inside tx, replacing any prior value.
func upsertProp(ctx context.Context, tx pgx.Tx, nodeID int64, key engine.PropKeyID, v value.Value) error {
	data, err := value.Marshal(v)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO graph_props (node_id, key_id, value) VALUES ($1, $2, $3)
		 ON CONFLICT (node_id, key_id) DO UPDATE SET value = EXCLUDED.value`,
		nodeID, int32(key), data)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("unknown property key id %d", key)
		}

		return fmt.Errorf("upserting property: %w", err)
	}

	return nil
}

// nodeExists reports whether a node row exists inside tx.
func nodeExists(ctx context.Context, tx pgx.Tx, id engine.NodeID) (bool, error) {
	var ok bool

	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM graph_nodes WHERE id = $1)`, int64(id)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking node %d: %w", id, err)
	}

	return ok, nil
}
