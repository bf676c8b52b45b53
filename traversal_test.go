package trellis

import (
	"context"
	"errors"
	"testing"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

func TestTraversalTwoHops(t *testing.T) {
	g := newTestGraph(t)

	got, err := g.db.From(g.alice).Out(g.knows).Out(g.knows).Nodes().ToList(context.Background())
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "carol") {
		t.Errorf("two knows hops = %v, want [carol]", keysOf(got))
	}
}

func TestTraversalBothAnyType(t *testing.T) {
	g := newTestGraph(t)

	got, err := g.db.From(g.alice).Both().ToList(context.Background())
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeySet(got, "bob", "carol") {
		t.Errorf("both() = %v, want {bob, carol}", keysOf(got))
	}
}

func TestTraversalZeroHops(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	got, err := g.db.From(g.alice, g.bob).ToList(ctx)
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "alice", "bob") {
		t.Errorf("zero hops = %v, want starting set in order", keysOf(got))
	}

	got, err = g.db.From(g.alice, g.bob).
		Where(func(n *Node) bool { return n.Key() == "bob" }).
		ToList(ctx)
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "bob") {
		t.Errorf("zero hops filtered = %v, want [bob]", keysOf(got))
	}
}

func TestTraversalEmptyStart(t *testing.T) {
	g := newTestGraph(t)

	got, err := g.db.From().Out(g.knows).ToList(context.Background())
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty start = %v, want empty", keysOf(got))
	}
}

func TestPerHopDedup(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	// Two edges of different types from alice to carol: carol must appear
	// once in the hop's output.
	g.link(t, g.alice, g.carol, g.knows)

	got, err := g.db.From(g.alice).Out().ToList(ctx)
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeySet(got, "bob", "carol") {
		t.Errorf("out() = %v, want carol exactly once", keysOf(got))
	}
}

func TestBothCollapsesDirections(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	// carol -> alice closes a two-way connection between them.
	g.link(t, g.carol, g.alice, g.works)

	got, err := g.db.From(g.alice).Both(g.works).ToList(ctx)
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "carol") {
		t.Errorf("both(works) = %v, want carol exactly once", keysOf(got))
	}
}

func TestRevisitAcrossHops(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	// bob -> alice: two knows hops from alice lead back to her. Dedup is
	// scoped per hop, so the revisit must not be suppressed.
	if err := g.db.RemoveEdge(ctx, g.bob, g.carol, g.knows); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	g.link(t, g.bob, g.alice, g.knows)

	got, err := g.db.From(g.alice).Out(g.knows).Out(g.knows).ToList(ctx)
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "alice") {
		t.Errorf("cycle walk = %v, want [alice] (revisit allowed)", keysOf(got))
	}
}

func TestTraversalRecomputesPerTerminal(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	seq := g.db.From(g.alice).Out().Nodes()

	first, err := seq.ToList(ctx)
	if err != nil {
		t.Fatalf("first ToList: %v", err)
	}
	callsAfterFirst := g.eng.primitiveCalls()

	// A second terminal re-runs the whole traversal.
	second, err := seq.ToList(ctx)
	if err != nil {
		t.Fatalf("second ToList: %v", err)
	}
	if g.eng.primitiveCalls() != 2*callsAfterFirst {
		t.Errorf("primitive calls = %d after second run, want %d (no memoization)",
			g.eng.primitiveCalls(), 2*callsAfterFirst)
	}
	if len(first) != len(second) {
		t.Errorf("runs disagree: %v vs %v", keysOf(first), keysOf(second))
	}

	// And therefore observes live graph state.
	dave := g.addPerson(t, "dave", nil)
	g.link(t, g.alice, dave, g.knows)

	third, err := seq.ToList(ctx)
	if err != nil {
		t.Fatalf("third ToList: %v", err)
	}
	if !sameKeySet(third, "bob", "carol", "dave") {
		t.Errorf("after mutation = %v, want dave included", keysOf(third))
	}
}

func TestFirstStopsEarly(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	// alice -> {bob, dave, erin} via knows.
	dave := g.addPerson(t, "dave", nil)
	erin := g.addPerson(t, "erin", nil)
	g.link(t, g.alice, dave, g.knows)
	g.link(t, g.alice, erin, g.knows)
	g.eng.reset()

	n, err := g.db.From(g.alice).Out(g.knows).First(ctx)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if n == nil || n.Key() != "bob" {
		t.Fatalf("First = %v, want bob", n)
	}

	// Exactly two materializations: alice (start) and bob (first result).
	// The remaining frontier stays untouched.
	if g.eng.typeCalls != 2 {
		t.Errorf("typeCalls = %d, want 2 (no materialization beyond first result)", g.eng.typeCalls)
	}

	g.eng.reset()
	if _, err := g.db.From(g.alice).Out(g.knows).ToList(ctx); err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if g.eng.typeCalls != 4 {
		t.Errorf("typeCalls = %d for full list, want 4", g.eng.typeCalls)
	}
}

func TestFirstEmpty(t *testing.T) {
	g := newTestGraph(t)

	n, err := g.db.From(g.carol).Out(g.knows).First(context.Background())
	if err != nil || n != nil {
		t.Errorf("First on empty = %v, %v; want nil, nil", n, err)
	}
}

func TestCount(t *testing.T) {
	g := newTestGraph(t)

	n, err := g.db.From(g.alice).Out().Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestWhereFiltersFinalFrontier(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	got, err := g.db.From(g.alice).Out().
		Where(func(n *Node) bool {
			v, ok := n.Prop("name")
			if !ok {
				return false
			}
			s, _ := v.AsString()
			return s == "Carol"
		}).
		ToList(ctx)
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "carol") {
		t.Errorf("filtered = %v, want [carol]", keysOf(got))
	}
}

func TestWhereOverwrites(t *testing.T) {
	g := newTestGraph(t)

	got, err := g.db.From(g.alice, g.bob).
		Where(func(n *Node) bool { return false }).
		Where(func(n *Node) bool { return n.Key() == "alice" }).
		ToList(context.Background())
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "alice") {
		t.Errorf("got %v, want the second predicate to win", keysOf(got))
	}
}

func TestIter(t *testing.T) {
	g := newTestGraph(t)

	it := g.db.From(g.alice).Out().Nodes().Iter(context.Background())

	var got []string
	for it.Next() {
		got = append(got, it.Node().Key())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("iterated %v, want 2 nodes", got)
	}

	// Exhausted iterators stay exhausted.
	if it.Next() {
		t.Error("Next returned true after exhaustion")
	}
}

func TestFromIDsDropsUnknown(t *testing.T) {
	g := newTestGraph(t)

	got, err := g.db.FromIDs(g.alice.ID(), 9999, g.bob.ID()).ToList(context.Background())
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "alice", "bob") {
		t.Errorf("got %v, want unknown id dropped silently", keysOf(got))
	}
}

func TestGhostNeighborDropped(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	// An edge to a node of an undeclared type: the neighbor is dropped
	// from the frontier, not surfaced as an error.
	ghost := g.ghostNode(t)
	etype, err := g.eng.InternEdgeType(ctx, "knows")
	if err != nil {
		t.Fatalf("InternEdgeType: %v", err)
	}
	if err := g.eng.CreateEdge(ctx, g.alice.ID(), ghost, etype, 1); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}

	got, err := g.db.From(g.alice).Out(g.knows).ToList(ctx)
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if !sameKeys(got, "bob") {
		t.Errorf("got %v, want ghost dropped", keysOf(got))
	}
}

func TestHopArgumentError(t *testing.T) {
	g := newTestGraph(t)

	_, err := g.db.From(g.alice).Out(g.knows, g.works).ToList(context.Background())
	if err == nil {
		t.Error("expected error for two edge types in one hop, got nil")
	}
}

func TestNilStartNode(t *testing.T) {
	g := newTestGraph(t)

	_, err := g.db.From(g.alice, nil).ToList(context.Background())
	if err == nil {
		t.Error("expected error for nil start node, got nil")
	}
}

// brokenEngine fails neighbor enumeration with a sentinel error.
type brokenEngine struct {
	engine.Engine
	fail error
}

func (b *brokenEngine) OutNeighbors(ctx context.Context, id engine.NodeID, et *engine.EdgeTypeID) ([]engine.NodeID, error) {
	return nil, b.fail
}

func TestEngineErrorPropagates(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	errDown := errors.New("storage down")
	db, err := Open(ctx, &brokenEngine{Engine: g.eng.Engine, fail: errDown}, g.db.Schema())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := db.From(g.alice).Out().ToList(ctx); !errors.Is(err, errDown) {
		t.Errorf("ToList error = %v, want wrapped storage error", err)
	}

	it := db.From(g.alice).Out().Nodes().Iter(ctx)
	if it.Next() {
		t.Error("Next returned true on failing engine")
	}
	if !errors.Is(it.Err(), errDown) {
		t.Errorf("Iter error = %v, want wrapped storage error", it.Err())
	}
}

func TestTraversalStringProps(t *testing.T) {
	g := newTestGraph(t)

	// Full round trip through builder, engine and materializer keeps typed
	// values intact.
	got, err := g.db.From(g.alice).Out(g.knows).ToList(context.Background())
	if err != nil {
		t.Fatalf("ToList: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v, want [bob]", keysOf(got))
	}

	name, ok := got[0].Prop("name")
	if !ok {
		t.Fatal("name prop missing on traversed node")
	}
	if s, _ := name.AsString(); s != "Bob" {
		t.Errorf("name = %v, want Bob", name)
	}
	if name.Kind() != value.KindString {
		t.Errorf("kind = %v, want string", name.Kind())
	}
}
