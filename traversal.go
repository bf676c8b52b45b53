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

// hopDir selects which adjacency a hop follows.
type hopDir uint8

const (
	hopOut hopDir = iota
	hopIn
	hopBoth
)

func (d hopDir) String() string {
	switch d {
	case hopIn:
		return "in"
	case hopBoth:
		return "both"
	default:
		return "out"
	}
}

// hopSpec is one neighbor-expansion step: a direction plus an optional edge
// type filter. A nil edge matches any type.
type hopSpec struct {
	dir  hopDir
	edge *schema.EdgeDef
}

// Traversal is a fluent multi-hop neighbor query. Chaining calls mutate the
// builder and return it, so a builder belongs to a single query construction
// and is not safe for concurrent use.
type Traversal struct {
	db    *DB
	start []engine.NodeID
	hops  []hopSpec
	pred  func(*Node) bool
	err   error
}

// From starts a traversal at the given nodes.
func (db *DB) From(nodes ...*Node) *Traversal {
	t := &Traversal{db: db, start: make([]engine.NodeID, 0, len(nodes))}
	for _, n := range nodes {
		if n == nil {
			t.err = fmt.Errorf("traversal: nil start node")
			return t
		}
		t.start = append(t.start, n.id)
	}
	return t
}

// FromIDs starts a traversal at the given raw node ids. Ids that do not
// resolve to a known node are dropped when the traversal runs.
func (db *DB) FromIDs(ids ...engine.NodeID) *Traversal {
	return &Traversal{db: db, start: append([]engine.NodeID(nil), ids...)}
}

// Out appends a hop following outgoing edges. At most one edge type may be
// given; none (or nil) matches any type.
func (t *Traversal) Out(edge ...*schema.EdgeDef) *Traversal { return t.hop(hopOut, edge) }

// In appends a hop following incoming edges.
func (t *Traversal) In(edge ...*schema.EdgeDef) *Traversal { return t.hop(hopIn, edge) }

// Both appends a hop following edges in either direction. A neighbor
// reachable both ways appears once.
func (t *Traversal) Both(edge ...*schema.EdgeDef) *Traversal { return t.hop(hopBoth, edge) }

func (t *Traversal) hop(dir hopDir, edges []*schema.EdgeDef) *Traversal {
	if t.err != nil {
		return t
	}

	switch len(edges) {
	case 0:
		t.hops = append(t.hops, hopSpec{dir: dir})
	case 1:
		t.hops = append(t.hops, hopSpec{dir: dir, edge: edges[0]})
	default:
		t.err = fmt.Errorf("traversal hop %d: at most one edge type per hop", len(t.hops))
	}
	return t
}

// Where sets the terminal filter, replacing any previous one. The predicate
// runs once per node that survives all hops.
func (t *Traversal) Where(pred func(*Node) bool) *Traversal {
	t.pred = pred
	return t
}

// Nodes finalizes the traversal into an executable sequence. The sequence
// snapshots the start set and hops; later builder calls do not affect it.
func (t *Traversal) Nodes() *NodeSeq {
	return &NodeSeq{
		db:    t.db,
		start: append([]engine.NodeID(nil), t.start...),
		hops:  append([]hopSpec(nil), t.hops...),
		pred:  t.pred,
		err:   t.err,
	}
}

// ToList is shorthand for Nodes().ToList.
func (t *Traversal) ToList(ctx context.Context) ([]*Node, error) { return t.Nodes().ToList(ctx) }

// First is shorthand for Nodes().First.
func (t *Traversal) First(ctx context.Context) (*Node, error) { return t.Nodes().First(ctx) }

// Count is shorthand for Nodes().Count.
func (t *Traversal) Count(ctx context.Context) (int, error) { return t.Nodes().Count(ctx) }

// NodeSeq is a finalized traversal. Every terminal call and every Iter
// re-executes the traversal from the start set; results are never cached
// between calls, so repeated terminals observe live graph state.
type NodeSeq struct {
	db    *DB
	start []engine.NodeID
	hops  []hopSpec
	pred  func(*Node) bool
	err   error
}

// pullFunc produces the next node of a stage. It returns nil, nil when the
// stage is exhausted.
type pullFunc func() (*Node, error)

// pipeline assembles the lazy evaluation chain: start materialization, one
// stage per hop, then the terminal filter. Each stage pulls from its
// upstream on demand, so consuming only the first result performs only the
// work that result needs.
func (s *NodeSeq) pipeline(ctx context.Context) pullFunc {
	next := s.db.startStage(ctx, s.start)
	for _, hop := range s.hops {
		next = s.db.hopStage(ctx, next, hop)
	}
	if s.pred != nil {
		next = filterStage(next, s.pred)
	}
	return next
}

// startStage materializes the starting ids in order, dropping ids without a
// resolvable type.
func (db *DB) startStage(ctx context.Context, ids []engine.NodeID) pullFunc {
	i := 0
	return func() (*Node, error) {
		for i < len(ids) {
			id := ids[i]
			i++

			n, err := db.materialize(ctx, id, "traversal")
			if err != nil {
				return nil, err
			}
			if n == nil {
				continue
			}
			return n, nil
		}
		return nil, nil
	}
}

// hopStage expands one hop. It keeps a deduplication set scoped to this hop
// alone: a neighbor id is expanded at most once per hop, but the same id may
// reappear at a later hop (revisits across hops are intentional). For a
// both-direction hop, outgoing neighbors are scanned before incoming ones
// and the dedup set collapses ids reachable both ways.
func (db *DB) hopStage(ctx context.Context, upstream pullFunc, hop hopSpec) pullFunc {
	seen := make(map[engine.NodeID]bool)
	var pending []engine.NodeID

	var etype *engine.EdgeTypeID
	resolved := false

	return func() (*Node, error) {
		for {
			for len(pending) > 0 {
				id := pending[0]
				pending = pending[1:]

				n, err := db.materialize(ctx, id, "traversal")
				if err != nil {
					return nil, err
				}
				if n == nil {
					continue
				}
				return n, nil
			}

			cur, err := upstream()
			if err != nil {
				return nil, err
			}
			if cur == nil {
				return nil, nil
			}

			if !resolved {
				etype, err = db.res.optionalEdgeTypeID(ctx, hop.edge)
				if err != nil {
					return nil, err
				}
				resolved = true
			}

			ids, err := db.neighborIDs(ctx, cur.id, etype, hop.dir)
			if err != nil {
				return nil, err
			}

			for _, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				pending = append(pending, id)
			}
		}
	}
}

// filterStage keeps nodes the predicate accepts, in upstream order.
func filterStage(upstream pullFunc, pred func(*Node) bool) pullFunc {
	return func() (*Node, error) {
		for {
			n, err := upstream()
			if err != nil || n == nil {
				return nil, err
			}
			if pred(n) {
				return n, nil
			}
		}
	}
}

// neighborIDs returns one node's neighbors for a hop, as the engine orders
// them. The engine may return duplicates; the hop's dedup set collapses
// them.
func (db *DB) neighborIDs(ctx context.Context, id engine.NodeID, etype *engine.EdgeTypeID, dir hopDir) ([]engine.NodeID, error) {
	switch dir {
	case hopIn:
		ids, err := db.eng.InNeighbors(ctx, id, etype)
		if err != nil {
			return nil, fmt.Errorf("listing in neighbors of node %d: %w", id, err)
		}
		return ids, nil
	case hopBoth:
		out, err := db.eng.OutNeighbors(ctx, id, etype)
		if err != nil {
			return nil, fmt.Errorf("listing out neighbors of node %d: %w", id, err)
		}
		in, err := db.eng.InNeighbors(ctx, id, etype)
		if err != nil {
			return nil, fmt.Errorf("listing in neighbors of node %d: %w", id, err)
		}
		return append(out, in...), nil
	default:
		ids, err := db.eng.OutNeighbors(ctx, id, etype)
		if err != nil {
			return nil, fmt.Errorf("listing out neighbors of node %d: %w", id, err)
		}
		return ids, nil
	}
}

// iter builds a fresh iterator without logging; terminals wrap it.
func (s *NodeSeq) iter(ctx context.Context) *NodeIter {
	if s.err != nil {
		return &NodeIter{err: s.err}
	}
	return &NodeIter{next: s.pipeline(ctx)}
}

// Iter returns an iterator over the traversal results. Each call starts a
// fresh execution.
func (s *NodeSeq) Iter(ctx context.Context) *NodeIter {
	metrics.QueriesTotal.WithLabelValues("iter").Inc()
	s.logQuery("traversal.iter")
	return s.iter(ctx)
}

// ToList runs the traversal and collects all results in order.
func (s *NodeSeq) ToList(ctx context.Context) ([]*Node, error) {
	defer s.observe("to_list", time.Now())
	s.logQuery("traversal.to_list")

	it := s.iter(ctx)

	var out []*Node
	for it.Next() {
		out = append(out, it.Node())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// First runs the traversal only as far as its first result. It returns nil,
// nil when the traversal is empty.
func (s *NodeSeq) First(ctx context.Context) (*Node, error) {
	defer s.observe("first", time.Now())
	s.logQuery("traversal.first")

	it := s.iter(ctx)
	if it.Next() {
		return it.Node(), nil
	}
	return nil, it.Err()
}

// Count runs the traversal to completion and returns the number of results.
func (s *NodeSeq) Count(ctx context.Context) (int, error) {
	defer s.observe("count", time.Now())
	s.logQuery("traversal.count")

	it := s.iter(ctx)

	n := 0
	for it.Next() {
		n++
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *NodeSeq) observe(kind string, start time.Time) {
	metrics.QueriesTotal.WithLabelValues(kind).Inc()
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (s *NodeSeq) logQuery(op string) {
	s.db.logQuery(op, logrus.Fields{
		"start_nodes": len(s.start),
		"hops":        len(s.hops),
		"filtered":    s.pred != nil,
	})
}

// NodeIter walks traversal results one node at a time:
//
//	it := seq.Iter(ctx)
//	for it.Next() {
//		use(it.Node())
//	}
//	if err := it.Err(); err != nil { ... }
type NodeIter struct {
	next pullFunc
	cur  *Node
	err  error
	done bool
}

// Next advances to the next node. It returns false when the sequence is
// exhausted or a storage error occurred; check Err afterwards.
func (it *NodeIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	n, err := it.next()
	if err != nil {
		it.err = err
		it.cur = nil
		return false
	}
	if n == nil {
		it.done = true
		it.cur = nil
		return false
	}

	it.cur = n
	return true
}

// Node returns the current node. Valid only after a true Next.
func (it *NodeIter) Node() *Node { return it.cur }

// Err returns the first storage error encountered, if any.
func (it *NodeIter) Err() error { return it.err }
