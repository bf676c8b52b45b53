package postgres_test

import (
	"context"
	"testing"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/engine/postgres"
)

// chainGraph builds a -> b -> c -> d plus a direct heavy edge a -> d.
type chainGraph struct {
	e          *postgres.Engine
	rel        engine.EdgeTypeID
	a, b, c, d engine.NodeID
}

func buildChain(t *testing.T) chainGraph {
	t.Helper()

	e := getTestEngine(t)

	typ := mustNodeType(t, e, "city")
	rel := mustEdgeType(t, e, "road")

	g := chainGraph{
		e:   e,
		rel: rel,
		a:   mustNode(t, e, typ, testKey("a")),
		b:   mustNode(t, e, typ, testKey("b")),
		c:   mustNode(t, e, typ, testKey("c")),
		d:   mustNode(t, e, typ, testKey("d")),
	}

	mustEdge(t, e, g.a, g.b, rel, 1)
	mustEdge(t, e, g.b, g.c, rel, 1)
	mustEdge(t, e, g.c, g.d, rel, 1)
	mustEdge(t, e, g.a, g.d, rel, 10)

	return g
}

func pathEquals(got []engine.NodeID, want ...engine.NodeID) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFindPathBFS(t *testing.T) {
	g := buildChain(t)

	res, err := g.e.FindPathBFS(context.Background(), engine.PathRequest{Source: g.a, Target: g.d})
	if err != nil {
		t.Fatalf("FindPathBFS: %v", err)
	}
	if !res.Found || !pathEquals(res.Path, g.a, g.d) || res.TotalWeight != 1 {
		t.Errorf("path = %+v, want [a d] with weight 1", res)
	}
}

func TestFindPathBFSSourceEqualsTarget(t *testing.T) {
	g := buildChain(t)

	res, err := g.e.FindPathBFS(context.Background(), engine.PathRequest{Source: g.b, Target: g.b})
	if err != nil {
		t.Fatalf("FindPathBFS: %v", err)
	}
	if !res.Found || !pathEquals(res.Path, g.b) || res.TotalWeight != 0 {
		t.Errorf("self path = %+v, want found single-node path with weight 0", res)
	}
}

func TestFindPathBFSMissingEndpoint(t *testing.T) {
	g := buildChain(t)
	ctx := context.Background()

	res, err := g.e.FindPathBFS(ctx, engine.PathRequest{Source: missingID, Target: g.a})
	if err != nil || res.Found {
		t.Errorf("missing source: res=%+v err=%v, want not found, nil", res, err)
	}

	res, err = g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.a, Target: missingID})
	if err != nil || res.Found {
		t.Errorf("missing target: res=%+v err=%v, want not found, nil", res, err)
	}
}

func TestFindPathBFSDirection(t *testing.T) {
	g := buildChain(t)
	ctx := context.Background()

	res, err := g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.d, Target: g.a})
	if err != nil {
		t.Fatalf("FindPathBFS: %v", err)
	}
	if res.Found {
		t.Errorf("out-direction d->a unexpectedly found: %v", res.Path)
	}

	res, err = g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.d, Target: g.a, Direction: engine.DirectionIn})
	if err != nil {
		t.Fatalf("FindPathBFS(in): %v", err)
	}
	if !res.Found || !pathEquals(res.Path, g.d, g.a) {
		t.Errorf("in-direction path = %+v, want [d a]", res)
	}

	res, err = g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.d, Target: g.a, Direction: engine.DirectionBoth})
	if err != nil {
		t.Fatalf("FindPathBFS(both): %v", err)
	}
	if !res.Found {
		t.Error("both-direction d->a not found")
	}
}

func TestFindPathBFSEdgeTypeFilter(t *testing.T) {
	g := buildChain(t)
	ctx := context.Background()

	rail := mustEdgeType(t, g.e, "rail")

	res, err := g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.a, Target: g.d, EdgeType: &rail})
	if err != nil {
		t.Fatalf("FindPathBFS(rail): %v", err)
	}
	if res.Found {
		t.Errorf("rail path unexpectedly found: %v", res.Path)
	}

	res, err = g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.a, Target: g.d, EdgeType: &g.rel})
	if err != nil {
		t.Fatalf("FindPathBFS(road): %v", err)
	}
	if !res.Found {
		t.Error("road path not found")
	}
}

func TestFindPathBFSMaxDepth(t *testing.T) {
	g := buildChain(t)
	ctx := context.Background()

	res, err := g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.a, Target: g.c, MaxDepth: 1})
	if err != nil {
		t.Fatalf("FindPathBFS(depth 1): %v", err)
	}
	if res.Found {
		t.Errorf("depth-1 path unexpectedly found: %v", res.Path)
	}

	res, err = g.e.FindPathBFS(ctx, engine.PathRequest{Source: g.a, Target: g.c, MaxDepth: 2})
	if err != nil {
		t.Fatalf("FindPathBFS(depth 2): %v", err)
	}
	if !res.Found || !pathEquals(res.Path, g.a, g.b, g.c) {
		t.Errorf("depth-2 path = %+v, want [a b c]", res)
	}
}

func TestFindPathDijkstra(t *testing.T) {
	g := buildChain(t)

	res, err := g.e.FindPathDijkstra(context.Background(), engine.PathRequest{Source: g.a, Target: g.d})
	if err != nil {
		t.Fatalf("FindPathDijkstra: %v", err)
	}
	if !res.Found || !pathEquals(res.Path, g.a, g.b, g.c, g.d) || res.TotalWeight != 3 {
		t.Errorf("path = %+v, want [a b c d] with weight 3", res)
	}
}

func TestFindPathDijkstraDepthBound(t *testing.T) {
	g := buildChain(t)

	res, err := g.e.FindPathDijkstra(context.Background(), engine.PathRequest{Source: g.a, Target: g.d, MaxDepth: 1})
	if err != nil {
		t.Fatalf("FindPathDijkstra(depth 1): %v", err)
	}
	if !res.Found || !pathEquals(res.Path, g.a, g.d) || res.TotalWeight != 10 {
		t.Errorf("depth-1 path = %+v, want [a d] with weight 10", res)
	}
}

func TestHasPath(t *testing.T) {
	g := buildChain(t)
	ctx := context.Background()

	ok, err := g.e.HasPath(ctx, g.a, g.d, nil, 0)
	if err != nil || !ok {
		t.Errorf("HasPath(a, d) = %v, %v; want true, nil", ok, err)
	}

	// Reachability follows outgoing edges only.
	ok, err = g.e.HasPath(ctx, g.d, g.a, nil, 0)
	if err != nil || ok {
		t.Errorf("HasPath(d, a) = %v, %v; want false, nil", ok, err)
	}

	ok, err = g.e.HasPath(ctx, g.b, g.b, nil, 0)
	if err != nil || !ok {
		t.Errorf("HasPath(b, b) = %v, %v; want true, nil", ok, err)
	}

	ok, err = g.e.HasPath(ctx, g.a, missingID, nil, 0)
	if err != nil || ok {
		t.Errorf("HasPath(a, missing) = %v, %v; want false, nil", ok, err)
	}

	ok, err = g.e.HasPath(ctx, g.a, g.c, nil, 1)
	if err != nil || ok {
		t.Errorf("HasPath(a, c, depth 1) = %v, %v; want false, nil", ok, err)
	}

	ok, err = g.e.HasPath(ctx, g.a, g.c, nil, 2)
	if err != nil || !ok {
		t.Errorf("HasPath(a, c, depth 2) = %v, %v; want true, nil", ok, err)
	}
}

func TestHasPathEdgeTypeFilter(t *testing.T) {
	g := buildChain(t)
	ctx := context.Background()

	rail := mustEdgeType(t, g.e, "rail")

	ok, err := g.e.HasPath(ctx, g.a, g.d, &rail, 0)
	if err != nil || ok {
		t.Errorf("HasPath(rail) = %v, %v; want false, nil", ok, err)
	}

	ok, err = g.e.HasPath(ctx, g.a, g.d, &g.rel, 0)
	if err != nil || !ok {
		t.Errorf("HasPath(road) = %v, %v; want true, nil", ok, err)
	}
}
