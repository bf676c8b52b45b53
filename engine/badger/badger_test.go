package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func mustNodeType(t *testing.T, e *Engine, name string) engine.NodeTypeID {
	t.Helper()
	id, err := e.InternNodeType(context.Background(), name)
	if err != nil {
		t.Fatalf("InternNodeType(%q): %v", name, err)
	}
	return id
}

func mustEdgeType(t *testing.T, e *Engine, name string) engine.EdgeTypeID {
	t.Helper()
	id, err := e.InternEdgeType(context.Background(), name)
	if err != nil {
		t.Fatalf("InternEdgeType(%q): %v", name, err)
	}
	return id
}

func mustPropKey(t *testing.T, e *Engine, name string) engine.PropKeyID {
	t.Helper()
	id, err := e.InternPropKey(context.Background(), name)
	if err != nil {
		t.Fatalf("InternPropKey(%q): %v", name, err)
	}
	return id
}

func mustNode(t *testing.T, e *Engine, typ engine.NodeTypeID, key string) engine.NodeID {
	t.Helper()
	id, err := e.CreateNode(context.Background(), typ, key, nil)
	if err != nil {
		t.Fatalf("CreateNode(%q): %v", key, err)
	}
	return id
}

func mustEdge(t *testing.T, e *Engine, src, dst engine.NodeID, typ engine.EdgeTypeID, weight float64) {
	t.Helper()
	if err := e.CreateEdge(context.Background(), src, dst, typ, weight); err != nil {
		t.Fatalf("CreateEdge(%d->%d): %v", src, dst, err)
	}
}

func mustValue(t *testing.T, v any) value.Value {
	t.Helper()
	val, err := value.From(v)
	if err != nil {
		t.Fatalf("value.From(%v): %v", v, err)
	}
	return val
}

func TestInternStable(t *testing.T) {
	e := newTestEngine(t)

	a := mustNodeType(t, e, "person")
	b := mustNodeType(t, e, "doc")
	again := mustNodeType(t, e, "person")

	if a == b {
		t.Errorf("distinct names share id %d", a)
	}
	if a != again {
		t.Errorf("re-interning changed id: %d != %d", a, again)
	}
	if a == 0 || b == 0 {
		t.Error("interned ids must start at 1")
	}
}

func TestCreateNodeAndRead(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "person")
	name := mustPropKey(t, e, "name")
	age := mustPropKey(t, e, "age")

	id, err := e.CreateNode(ctx, typ, "ada", map[engine.PropKeyID]value.Value{
		name: mustValue(t, "Ada"),
		age:  mustValue(t, 36),
	})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	gotType, ok, err := e.NodeType(ctx, id)
	if err != nil || !ok || gotType != typ {
		t.Errorf("NodeType = %v, %v, %v; want %v, true, nil", gotType, ok, err, typ)
	}

	gotKey, ok, err := e.NodeKey(ctx, id)
	if err != nil || !ok || gotKey != "ada" {
		t.Errorf("NodeKey = %q, %v, %v; want \"ada\", true, nil", gotKey, ok, err)
	}

	v, ok, err := e.NodeProp(ctx, id, name)
	if err != nil || !ok {
		t.Fatalf("NodeProp(name) = _, %v, %v; want true, nil", ok, err)
	}
	if s, _ := v.AsString(); s != "Ada" {
		t.Errorf("name = %q, want \"Ada\"", s)
	}

	v, ok, err = e.NodeProp(ctx, id, age)
	if err != nil || !ok {
		t.Fatalf("NodeProp(age) = _, %v, %v; want true, nil", ok, err)
	}
	if n, _ := v.AsInt(); n != 36 {
		t.Errorf("age = %d, want 36", n)
	}

	unset := mustPropKey(t, e, "email")
	if _, ok, err := e.NodeProp(ctx, id, unset); ok || err != nil {
		t.Errorf("unset prop: ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestReadsOnMissingNode(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	const missing = engine.NodeID(42)

	if _, ok, err := e.NodeKey(ctx, missing); ok || err != nil {
		t.Errorf("NodeKey: ok=%v err=%v, want false, nil", ok, err)
	}
	if _, ok, err := e.NodeType(ctx, missing); ok || err != nil {
		t.Errorf("NodeType: ok=%v err=%v, want false, nil", ok, err)
	}
	if _, ok, err := e.NodeProp(ctx, missing, 1); ok || err != nil {
		t.Errorf("NodeProp: ok=%v err=%v, want false, nil", ok, err)
	}

	peers, err := e.OutNeighbors(ctx, missing, nil)
	if err != nil || len(peers) != 0 {
		t.Errorf("OutNeighbors = %v, %v; want empty, nil", peers, err)
	}
	peers, err = e.InNeighbors(ctx, missing, nil)
	if err != nil || len(peers) != 0 {
		t.Errorf("InNeighbors = %v, %v; want empty, nil", peers, err)
	}
}

func TestDuplicateKey(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	person := mustNodeType(t, e, "person")
	doc := mustNodeType(t, e, "doc")

	mustNode(t, e, person, "ada")

	if _, err := e.CreateNode(ctx, person, "ada", nil); !errors.Is(err, engine.ErrDuplicateKey) {
		t.Errorf("duplicate key err = %v, want ErrDuplicateKey", err)
	}

	// Keys are scoped per node type.
	if _, err := e.CreateNode(ctx, doc, "ada", nil); err != nil {
		t.Errorf("same key on another type: %v", err)
	}

	// Empty keys never collide.
	if _, err := e.CreateNode(ctx, person, "", nil); err != nil {
		t.Errorf("first empty key: %v", err)
	}
	if _, err := e.CreateNode(ctx, person, "", nil); err != nil {
		t.Errorf("second empty key: %v", err)
	}
}

func TestUnknownIDsRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "person")

	if _, err := e.CreateNode(ctx, 99, "x", nil); err == nil {
		t.Error("unknown node type accepted")
	}

	props := map[engine.PropKeyID]value.Value{99: mustValue(t, "x")}
	if _, err := e.CreateNode(ctx, typ, "", props); err == nil {
		t.Error("unknown property key accepted")
	}

	a := mustNode(t, e, typ, "a")
	b := mustNode(t, e, typ, "b")
	if err := e.CreateEdge(ctx, a, b, 99, 1); err == nil {
		t.Error("unknown edge type accepted")
	}
}

func TestSetAndDeleteProp(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "person")
	name := mustPropKey(t, e, "name")
	id := mustNode(t, e, typ, "ada")

	if err := e.SetNodeProp(ctx, id, name, mustValue(t, "Ada")); err != nil {
		t.Fatalf("SetNodeProp: %v", err)
	}
	if err := e.SetNodeProp(ctx, id, name, mustValue(t, "Ada L")); err != nil {
		t.Fatalf("SetNodeProp overwrite: %v", err)
	}

	v, ok, err := e.NodeProp(ctx, id, name)
	if err != nil || !ok {
		t.Fatalf("NodeProp = _, %v, %v", ok, err)
	}
	if s, _ := v.AsString(); s != "Ada L" {
		t.Errorf("name = %q, want \"Ada L\"", s)
	}

	if err := e.DeleteNodeProp(ctx, id, name); err != nil {
		t.Fatalf("DeleteNodeProp: %v", err)
	}
	if _, ok, _ := e.NodeProp(ctx, id, name); ok {
		t.Error("property survived delete")
	}

	// Deleting an unset property is a no-op.
	if err := e.DeleteNodeProp(ctx, id, name); err != nil {
		t.Errorf("second delete: %v", err)
	}

	if err := e.SetNodeProp(ctx, 999, name, mustValue(t, "x")); !errors.Is(err, engine.ErrNodeNotFound) {
		t.Errorf("set on missing node err = %v, want ErrNodeNotFound", err)
	}
	if err := e.DeleteNodeProp(ctx, 999, name); !errors.Is(err, engine.ErrNodeNotFound) {
		t.Errorf("delete on missing node err = %v, want ErrNodeNotFound", err)
	}
}

func TestNeighborKeyOrder(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "n")
	rel1 := mustEdgeType(t, e, "rel1")
	rel2 := mustEdgeType(t, e, "rel2")

	a := mustNode(t, e, typ, "a")
	b := mustNode(t, e, typ, "b")
	c := mustNode(t, e, typ, "c")

	// Insertion order deliberately disagrees with key order.
	mustEdge(t, e, a, c, rel2, 1)
	mustEdge(t, e, a, b, rel2, 1)
	mustEdge(t, e, a, c, rel1, 1)

	// Unfiltered scans walk (type, id) order; c appears once per edge type.
	peers, err := e.OutNeighbors(ctx, a, nil)
	if err != nil {
		t.Fatalf("OutNeighbors: %v", err)
	}
	want := []engine.NodeID{c, b, c}
	if len(peers) != len(want) {
		t.Fatalf("OutNeighbors = %v, want %v", peers, want)
	}
	for i := range want {
		if peers[i] != want[i] {
			t.Fatalf("OutNeighbors = %v, want %v", peers, want)
		}
	}

	peers, err = e.OutNeighbors(ctx, a, &rel2)
	if err != nil {
		t.Fatalf("OutNeighbors(rel2): %v", err)
	}
	if len(peers) != 2 || peers[0] != b || peers[1] != c {
		t.Errorf("OutNeighbors(rel2) = %v, want [b c]", peers)
	}

	peers, err = e.InNeighbors(ctx, c, nil)
	if err != nil {
		t.Fatalf("InNeighbors: %v", err)
	}
	if len(peers) != 2 || peers[0] != a || peers[1] != a {
		t.Errorf("InNeighbors(c) = %v, want [a a]", peers)
	}
}

func TestCreateEdgeReplacesWeight(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "n")
	rel := mustEdgeType(t, e, "rel")
	a := mustNode(t, e, typ, "a")
	b := mustNode(t, e, typ, "b")

	mustEdge(t, e, a, b, rel, 1)
	mustEdge(t, e, a, b, rel, 7)

	s, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Edges != 1 {
		t.Errorf("edge count after recreate = %d, want 1", s.Edges)
	}

	res, err := e.FindPathDijkstra(ctx, engine.PathRequest{Source: a, Target: b})
	if err != nil {
		t.Fatalf("FindPathDijkstra: %v", err)
	}
	if !res.Found || res.TotalWeight != 7 {
		t.Errorf("path = %+v, want found with weight 7", res)
	}
}

func TestDeleteEdge(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "n")
	rel := mustEdgeType(t, e, "rel")
	a := mustNode(t, e, typ, "a")
	b := mustNode(t, e, typ, "b")
	mustEdge(t, e, a, b, rel, 1)

	if err := e.DeleteEdge(ctx, a, b, rel); err != nil {
		t.Fatalf("DeleteEdge: %v", err)
	}

	if peers, _ := e.OutNeighbors(ctx, a, nil); len(peers) != 0 {
		t.Errorf("out neighbors after delete = %v", peers)
	}
	if peers, _ := e.InNeighbors(ctx, b, nil); len(peers) != 0 {
		t.Errorf("in neighbors after delete = %v", peers)
	}

	if err := e.DeleteEdge(ctx, a, b, rel); !errors.Is(err, engine.ErrEdgeNotFound) {
		t.Errorf("second delete err = %v, want ErrEdgeNotFound", err)
	}

	s, _ := e.Stats(ctx)
	if s.Edges != 0 {
		t.Errorf("edge count = %d, want 0", s.Edges)
	}
}

func TestDeleteNodeCleansUp(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "n")
	rel := mustEdgeType(t, e, "rel")
	name := mustPropKey(t, e, "name")

	a := mustNode(t, e, typ, "a")
	b := mustNode(t, e, typ, "b")
	c := mustNode(t, e, typ, "c")

	mustEdge(t, e, a, b, rel, 1)
	mustEdge(t, e, c, a, rel, 1)
	mustEdge(t, e, a, a, rel, 1) // self-loop

	if err := e.SetNodeProp(ctx, a, name, mustValue(t, "A")); err != nil {
		t.Fatalf("SetNodeProp: %v", err)
	}

	if err := e.DeleteNode(ctx, a); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	if peers, _ := e.InNeighbors(ctx, b, nil); len(peers) != 0 {
		t.Errorf("b still has in neighbors %v", peers)
	}
	if peers, _ := e.OutNeighbors(ctx, c, nil); len(peers) != 0 {
		t.Errorf("c still has out neighbors %v", peers)
	}
	if _, ok, _ := e.NodeKey(ctx, a); ok {
		t.Error("node record survived delete")
	}
	if _, ok, _ := e.NodeProp(ctx, a, name); ok {
		t.Error("property survived delete")
	}
	if _, ok, _ := e.NodeByKey(ctx, typ, "a"); ok {
		t.Error("key index entry survived delete")
	}

	s, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Nodes != 2 || s.Edges != 0 {
		t.Errorf("stats = %+v, want 2 nodes, 0 edges", s)
	}

	// The key is free for reuse.
	if _, err := e.CreateNode(ctx, typ, "a", nil); err != nil {
		t.Errorf("recreating key after delete: %v", err)
	}

	if err := e.DeleteNode(ctx, a); !errors.Is(err, engine.ErrNodeNotFound) {
		t.Errorf("second delete err = %v, want ErrNodeNotFound", err)
	}
}

func TestNodeByKey(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "person")
	id := mustNode(t, e, typ, "ada")

	got, ok, err := e.NodeByKey(ctx, typ, "ada")
	if err != nil || !ok || got != id {
		t.Errorf("NodeByKey = %v, %v, %v; want %v, true, nil", got, ok, err, id)
	}

	if _, ok, err := e.NodeByKey(ctx, typ, "nobody"); ok || err != nil {
		t.Errorf("missing key: ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "person")
	rel := mustEdgeType(t, e, "knows")
	mustPropKey(t, e, "name")
	mustPropKey(t, e, "age")

	a := mustNode(t, e, typ, "a")
	b := mustNode(t, e, typ, "b")
	mustEdge(t, e, a, b, rel, 1)

	s, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	want := engine.Stats{Nodes: 2, Edges: 1, NodeTypes: 1, EdgeTypes: 1, PropKeys: 2}
	if s != want {
		t.Errorf("Stats = %+v, want %+v", s, want)
	}
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := Config{Dir: dir}

	e, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	person := mustNodeType(t, e, "person")
	rel := mustEdgeType(t, e, "knows")
	name := mustPropKey(t, e, "name")

	alice, err := e.CreateNode(ctx, person, "alice", map[engine.PropKeyID]value.Value{name: mustValue(t, "Alice")})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	bob := mustNode(t, e, person, "bob")
	mustEdge(t, e, alice, bob, rel, 2)

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e.Close()

	// Interned ids are stable across sessions.
	if got := mustNodeType(t, e, "person"); got != person {
		t.Errorf("person id after reopen = %d, want %d", got, person)
	}
	if got := mustPropKey(t, e, "name"); got != name {
		t.Errorf("name id after reopen = %d, want %d", got, name)
	}

	got, ok, err := e.NodeByKey(ctx, person, "alice")
	if err != nil || !ok || got != alice {
		t.Fatalf("NodeByKey(alice) = %v, %v, %v; want %v, true, nil", got, ok, err, alice)
	}

	v, ok, err := e.NodeProp(ctx, alice, name)
	if err != nil || !ok {
		t.Fatalf("NodeProp = _, %v, %v", ok, err)
	}
	if s, _ := v.AsString(); s != "Alice" {
		t.Errorf("name = %q, want \"Alice\"", s)
	}

	peers, err := e.OutNeighbors(ctx, alice, nil)
	if err != nil || len(peers) != 1 || peers[0] != bob {
		t.Errorf("OutNeighbors = %v, %v; want [bob]", peers, err)
	}

	s, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := engine.Stats{Nodes: 2, Edges: 1, NodeTypes: 1, EdgeTypes: 1, PropKeys: 1}
	if s != want {
		t.Errorf("Stats = %+v, want %+v", s, want)
	}

	// The node sequence continues where it left off.
	next := mustNode(t, e, person, "carol")
	if next != bob+1 {
		t.Errorf("next id after reopen = %d, want %d", next, bob+1)
	}
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	typ := mustNodeType(t, e, "n")
	id := mustNode(t, e, typ, "a")

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := e.InternNodeType(ctx, "x"); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("InternNodeType err = %v, want ErrClosed", err)
	}
	if _, err := e.CreateNode(ctx, typ, "", nil); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("CreateNode err = %v, want ErrClosed", err)
	}
	if _, _, err := e.NodeKey(ctx, id); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("NodeKey err = %v, want ErrClosed", err)
	}
	if _, err := e.OutNeighbors(ctx, id, nil); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("OutNeighbors err = %v, want ErrClosed", err)
	}
	if _, err := e.FindPathBFS(ctx, engine.PathRequest{Source: id, Target: id}); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("FindPathBFS err = %v, want ErrClosed", err)
	}
	if _, err := e.Stats(ctx); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("Stats err = %v, want ErrClosed", err)
	}

	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	e := newTestEngine(t)
	typ := mustNodeType(t, e, "n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.CreateNode(ctx, typ, "", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("CreateNode err = %v, want context.Canceled", err)
	}
	if _, err := e.OutNeighbors(ctx, 1, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("OutNeighbors err = %v, want context.Canceled", err)
	}
}
