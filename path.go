package trellis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/internal/metrics"
	"github.com/trellisdb/trellis/schema"
)

// Path is a materialized shortest-path result. Nodes holds every id of the
// raw path that materialized successfully, in path order; ids without a
// resolvable type are dropped, so Nodes can be shorter than the raw path
// while Found stays true. TotalWeight is the hop count for unweighted
// search and the weight sum for weighted search.
type Path struct {
	Nodes       []*Node
	Found       bool
	TotalWeight float64
}

// PathQuery is a fluent single-target shortest-path query. Like Traversal,
// a builder belongs to one query construction and is not safe for
// concurrent use.
type PathQuery struct {
	db        *DB
	source    engine.NodeID
	target    engine.NodeID
	hasTarget bool
	edge      *schema.EdgeDef
	maxDepth  int
	dir       engine.Direction
	err       error
}

// ShortestPath starts a path query at the given node.
func (db *DB) ShortestPath(source *Node) *PathQuery {
	q := &PathQuery{db: db, dir: engine.DirectionOut}
	if source == nil {
		q.err = fmt.Errorf("path query: nil source node")
		return q
	}
	q.source = source.id
	return q
}

// ShortestPathID starts a path query at a raw node id.
func (db *DB) ShortestPathID(source engine.NodeID) *PathQuery {
	return &PathQuery{db: db, source: source, dir: engine.DirectionOut}
}

// To sets the target node. Required before Find, FindWeighted or Exists.
func (q *PathQuery) To(target *Node) *PathQuery {
	if q.err != nil {
		return q
	}
	if target == nil {
		q.err = fmt.Errorf("path query: nil target node")
		return q
	}
	q.target = target.id
	q.hasTarget = true
	return q
}

// ToID sets the target by raw node id.
func (q *PathQuery) ToID(target engine.NodeID) *PathQuery {
	if q.err != nil {
		return q
	}
	q.target = target
	q.hasTarget = true
	return q
}

// Via restricts the search to edges of one type. Nil means any type.
func (q *PathQuery) Via(edge *schema.EdgeDef) *PathQuery {
	if q.err != nil {
		return q
	}
	q.edge = edge
	return q
}

// MaxDepth bounds the number of hops considered. Zero or negative means
// unbounded.
func (q *PathQuery) MaxDepth(n int) *PathQuery {
	if q.err != nil {
		return q
	}
	q.maxDepth = n
	return q
}

// Direction selects which adjacency the search follows. The default is
// DirectionOut.
func (q *PathQuery) Direction(d engine.Direction) *PathQuery {
	if q.err != nil {
		return q
	}
	if !d.Valid() {
		q.err = fmt.Errorf("path query: invalid direction %q", d)
		return q
	}
	q.dir = d
	return q
}

// check surfaces construction errors. It runs before any resolver or engine
// call, so an invalid query never touches storage.
func (q *PathQuery) check() error {
	if q.err != nil {
		return q.err
	}
	if !q.hasTarget {
		return ErrNoTarget
	}
	return nil
}

// Find searches for the path with the fewest edges. TotalWeight of the
// result is the edge count, zero when source equals target.
func (q *PathQuery) Find(ctx context.Context) (*Path, error) {
	defer q.observe("find", time.Now())
	return q.find(ctx, "path.find", q.db.eng.FindPathBFS)
}

// FindWeighted searches for the path minimizing the sum of stored edge
// weights.
func (q *PathQuery) FindWeighted(ctx context.Context) (*Path, error) {
	defer q.observe("find_weighted", time.Now())
	return q.find(ctx, "path.find_weighted", q.db.eng.FindPathDijkstra)
}

type searchFunc func(context.Context, engine.PathRequest) (engine.RawPath, error)

func (q *PathQuery) find(ctx context.Context, op string, search searchFunc) (*Path, error) {
	if err := q.check(); err != nil {
		return nil, err
	}

	q.logQuery(op)

	etype, err := q.db.res.optionalEdgeTypeID(ctx, q.edge)
	if err != nil {
		return nil, err
	}

	raw, err := search(ctx, engine.PathRequest{
		Source:    q.source,
		Target:    q.target,
		EdgeType:  etype,
		MaxDepth:  q.maxDepth,
		Direction: q.dir,
	})
	if err != nil {
		return nil, fmt.Errorf("searching path: %w", err)
	}

	if !raw.Found {
		return &Path{}, nil
	}

	nodes := make([]*Node, 0, len(raw.Path))
	for _, id := range raw.Path {
		n, err := q.db.materialize(ctx, id, "path")
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		nodes = append(nodes, n)
	}

	return &Path{Nodes: nodes, Found: true, TotalWeight: raw.TotalWeight}, nil
}

// Exists reports whether the target is reachable from the source following
// outgoing edges. It never materializes nodes.
func (q *PathQuery) Exists(ctx context.Context) (bool, error) {
	defer q.observe("exists", time.Now())

	if err := q.check(); err != nil {
		return false, err
	}

	q.logQuery("path.exists")

	etype, err := q.db.res.optionalEdgeTypeID(ctx, q.edge)
	if err != nil {
		return false, err
	}

	ok, err := q.db.eng.HasPath(ctx, q.source, q.target, etype, q.maxDepth)
	if err != nil {
		return false, fmt.Errorf("checking path existence: %w", err)
	}
	return ok, nil
}

func (q *PathQuery) observe(kind string, start time.Time) {
	metrics.QueriesTotal.WithLabelValues(kind).Inc()
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (q *PathQuery) logQuery(op string) {
	fields := logrus.Fields{
		"source":    q.source,
		"target":    q.target,
		"direction": string(q.dir),
	}
	if q.edge != nil {
		fields["edge_type"] = q.edge.Name
	}
	if q.maxDepth > 0 {
		fields["max_depth"] = q.maxDepth
	}
	q.db.logQuery(op, fields)
}
