package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trellisdb/trellis/engine"
)

// foundEdge is one edge discovered in the source graph. Weight starts at
// zero; resolveWeights fills it in, because adjacency lists do not carry
// weights.
type foundEdge struct {
	Source engine.NodeID
	Target engine.NodeID
	Type   engine.EdgeTypeID
	Weight float64
}

// resolveWeights reads each edge's stored weight back with a one-hop weighted
// search. A search from a node to itself succeeds without touching the edge,
// so self-loop weights cannot be read back; those edges are copied at the
// default weight. Returns how many were defaulted.
func resolveWeights(ctx context.Context, src engine.Engine, d *dict, edges []foundEdge) (int, error) {
	defaulted := 0
	for i := range edges {
		e := &edges[i]
		if e.Source == e.Target {
			slog.Warn("self-loop weight cannot be read back, copying at default weight",
				"node", uint64(e.Source), "type", d.edgeNames[e.Type])
			e.Weight = engine.DefaultWeight
			defaulted++
			continue
		}

		et := e.Type
		raw, err := src.FindPathDijkstra(ctx, engine.PathRequest{
			Source:   e.Source,
			Target:   e.Target,
			EdgeType: &et,
			MaxDepth: 1,
		})
		if err != nil {
			return defaulted, fmt.Errorf("edge %d->%d weight: %w", e.Source, e.Target, err)
		}
		if !raw.Found {
			return defaulted, fmt.Errorf("edge %d->%d disappeared during the walk", e.Source, e.Target)
		}
		e.Weight = raw.TotalWeight
	}
	return defaulted, nil
}

// copyEdges writes the collected edges to the target. Recreating an existing
// edge replaces its weight, so reruns converge instead of failing.
func copyEdges(ctx context.Context, tgt engine.Engine, srcDict, tgtDict *dict, idMap map[engine.NodeID]engine.NodeID, byID map[engine.NodeID]discovered, edges []foundEdge) (int, []skippedEdge) {
	var skipped []skippedEdge
	copied := 0

	for _, e := range edges {
		name := srcDict.edgeNames[e.Type]
		err := tgt.CreateEdge(ctx, idMap[e.Source], idMap[e.Target], tgtDict.edgeTypes[name], e.Weight)
		if err != nil {
			slog.Warn("edge insert failed, skipping",
				"source", refOf(byID, srcDict, e.Source),
				"target", refOf(byID, srcDict, e.Target),
				"type", name,
				"error", err)
			skipped = append(skipped, skippedEdge{
				Source: refOf(byID, srcDict, e.Source),
				Target: refOf(byID, srcDict, e.Target),
				Reason: err.Error(),
			})
			continue
		}
		copied++
	}
	return copied, skipped
}

// verifyEdges confirms each copied edge by scanning the target's adjacency.
func verifyEdges(ctx context.Context, tgt engine.Engine, srcDict, tgtDict *dict, idMap map[engine.NodeID]engine.NodeID, edges []foundEdge) (int, error) {
	verified := 0
	for _, e := range edges {
		et := tgtDict.edgeTypes[srcDict.edgeNames[e.Type]]
		targets, err := tgt.OutNeighbors(ctx, idMap[e.Source], &et)
		if err != nil {
			return verified, fmt.Errorf("verify edge %d->%d: %w", e.Source, e.Target, err)
		}
		for _, target := range targets {
			if target == idMap[e.Target] {
				verified++
				break
			}
		}
	}
	return verified, nil
}
