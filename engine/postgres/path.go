package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/engine/search"
)

// FindPathBFS finds a shortest path by hop count. The whole search runs on
// one read-only transaction, so it sees a consistent snapshot.
func (e *Engine) FindPathBFS(ctx context.Context, req engine.PathRequest) (engine.RawPath, error) {
	if e.closed.Load() {
		return engine.RawPath{}, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := e.beginReadTx(ctx)
	if err != nil {
		return engine.RawPath{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	ok, err := bothExist(ctx, tx, req.Source, req.Target)
	if err != nil {
		return engine.RawPath{}, err
	}

	if !ok {
		return engine.RawPath{}, nil
	}

	path, err := search.BFS(ctx, stepper(tx, req.EdgeType, direction(req)), req.Source, req.Target, req.MaxDepth)
	if err != nil {
		return engine.RawPath{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return engine.RawPath{}, fmt.Errorf("committing path read: %w", err)
	}

	return path, nil
}

// FindPathDijkstra finds a minimum-weight path using stored edge weights.
func (e *Engine) FindPathDijkstra(ctx context.Context, req engine.PathRequest) (engine.RawPath, error) {
	if e.closed.Load() {
		return engine.RawPath{}, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := e.beginReadTx(ctx)
	if err != nil {
		return engine.RawPath{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	ok, err := bothExist(ctx, tx, req.Source, req.Target)
	if err != nil {
		return engine.RawPath{}, err
	}

	if !ok {
		return engine.RawPath{}, nil
	}

	path, err := search.Dijkstra(ctx, weightedStepper(tx, req.EdgeType, direction(req)), req.Source, req.Target, req.MaxDepth)
	if err != nil {
		return engine.RawPath{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return engine.RawPath{}, fmt.Errorf("committing path read: %w", err)
	}

	return path, nil
}

// HasPath reports whether target is reachable from source following
// outgoing edges.
func (e *Engine) HasPath(ctx context.Context, source, target engine.NodeID, edgeType *engine.EdgeTypeID, maxDepth int) (bool, error) {
	if e.closed.Load() {
		return false, engine.ErrClosed
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := e.beginReadTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	ok, err := bothExist(ctx, tx, source, target)
	if err != nil {
		return false, err
	}

	if !ok {
		return false, nil
	}

	reachable, err := search.Reachable(ctx, stepper(tx, edgeType, engine.DirectionOut), source, target, maxDepth)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing path read: %w", err)
	}

	return reachable, nil
}

// bothExist checks the two search endpoints in one query.
func bothExist(ctx context.Context, tx pgx.Tx, a, b engine.NodeID) (bool, error) {
	var aOK, bOK bool

	err := tx.QueryRow(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM graph_nodes WHERE id = $1),
			EXISTS (SELECT 1 FROM graph_nodes WHERE id = $2)`,
		int64(a), int64(b)).Scan(&aOK, &bOK)
	if err != nil {
		return false, fmt.Errorf("checking path endpoints: %w", err)
	}

	return aOK && bOK, nil
}

// direction returns the requested direction, defaulting to outgoing.
func direction(req engine.PathRequest) engine.Direction {
	if req.Direction == "" {
		return engine.DirectionOut
	}

	return req.Direction
}

// stepper binds the direction and edge-type filter into a neighbor callback
// for the search package. Every call queries on the surrounding read
// transaction.
func stepper(tx pgx.Tx, edgeType *engine.EdgeTypeID, dir engine.Direction) search.NeighborFunc {
	return func(ctx context.Context, id engine.NodeID) ([]engine.NodeID, error) {
		var ids []engine.NodeID

		if dir == engine.DirectionOut || dir == engine.DirectionBoth {
			got, err := stepPeers(ctx, tx, "source", "target", id, edgeType)
			if err != nil {
				return nil, err
			}

			ids = append(ids, got...)
		}

		if dir == engine.DirectionIn || dir == engine.DirectionBoth {
			got, err := stepPeers(ctx, tx, "target", "source", id, edgeType)
			if err != nil {
				return nil, err
			}

			ids = append(ids, got...)
		}

		return ids, nil
	}
}

// weightedStepper is stepper with edge weights, feeding Dijkstra searches.
func weightedStepper(tx pgx.Tx, edgeType *engine.EdgeTypeID, dir engine.Direction) search.WeightedNeighborFunc {
	return func(ctx context.Context, id engine.NodeID) ([]search.Edge, error) {
		var edges []search.Edge

		if dir == engine.DirectionOut || dir == engine.DirectionBoth {
			got, err := stepWeighted(ctx, tx, "source", "target", id, edgeType)
			if err != nil {
				return nil, err
			}

			edges = append(edges, got...)
		}

		if dir == engine.DirectionIn || dir == engine.DirectionBoth {
			got, err := stepWeighted(ctx, tx, "target", "source", id, edgeType)
			if err != nil {
				return nil, err
			}

			edges = append(edges, got...)
		}

		return edges, nil
	}
}

// stepPeers scans one adjacency direction: from is the column matched
// against id, peer the column returned.
func stepPeers(ctx context.Context, tx pgx.Tx, from, peer string, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]engine.NodeID, error) {
	query := `SELECT ` + peer + ` FROM graph_edges WHERE ` + from + ` = $1 ORDER BY type_id, ` + peer
	args := []any{int64(id)}

	if edgeType != nil {
		query = `SELECT ` + peer + ` FROM graph_edges WHERE ` + from + ` = $1 AND type_id = $2 ORDER BY type_id, ` + peer
		args = append(args, int32(*edgeType))
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying step: %w", err)
	}
	defer rows.Close()

	var ids []engine.NodeID

	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning step row: %w", err)
		}

		ids = append(ids, engine.NodeID(p))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating step rows: %w", err)
	}

	return ids, nil
}

// stepWeighted is stepPeers carrying the weight column.
func stepWeighted(ctx context.Context, tx pgx.Tx, from, peer string, id engine.NodeID, edgeType *engine.EdgeTypeID) ([]search.Edge, error) {
	query := `SELECT ` + peer + `, weight FROM graph_edges WHERE ` + from + ` = $1 ORDER BY type_id, ` + peer
	args := []any{int64(id)}

	if edgeType != nil {
		query = `SELECT ` + peer + `, weight FROM graph_edges WHERE ` + from + ` = $1 AND type_id = $2 ORDER BY type_id, ` + peer
		args = append(args, int32(*edgeType))
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying step: %w", err)
	}
	defer rows.Close()

	var edges []search.Edge

	for rows.Next() {
		var (
			p int64
			w float64
		)

		if err := rows.Scan(&p, &w); err != nil {
			return nil, fmt.Errorf("scanning step row: %w", err)
		}

		edges = append(edges, search.Edge{To: engine.NodeID(p), Weight: w})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating step rows: %w", err)
	}

	return edges, nil
}
