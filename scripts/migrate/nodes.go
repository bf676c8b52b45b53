package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/value"
)

// discovered is one node read from the source graph. Key is empty when the
// node was created without an application key.
type discovered struct {
	ID    engine.NodeID
	Type  engine.NodeTypeID
	Key   string
	Props map[engine.PropKeyID]value.Value
}

// discover walks the source graph outward from the roots, following edges of
// every declared type in both directions, and returns the nodes of the
// enclosed subgraph in visit order together with every edge between them.
// Edge types missing from the schema file are not followed.
func discover(ctx context.Context, src engine.Engine, d *dict, roots []engine.NodeID) ([]discovered, []foundEdge, error) {
	seen := make(map[engine.NodeID]bool, len(roots))
	queue := make([]engine.NodeID, 0, len(roots))
	for _, id := range roots {
		if !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}

	var nodes []discovered
	var edges []foundEdge
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n, err := readNode(ctx, src, d, id)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)

		for _, et := range d.edgeTypeIDs {
			out, err := src.OutNeighbors(ctx, id, &et)
			if err != nil {
				return nil, nil, fmt.Errorf("node %d out-neighbors: %w", id, err)
			}
			for _, target := range out {
				edges = append(edges, foundEdge{Source: id, Target: target, Type: et})
				if !seen[target] {
					seen[target] = true
					queue = append(queue, target)
				}
			}

			in, err := src.InNeighbors(ctx, id, &et)
			if err != nil {
				return nil, nil, fmt.Errorf("node %d in-neighbors: %w", id, err)
			}
			for _, source := range in {
				if !seen[source] {
					seen[source] = true
					queue = append(queue, source)
				}
			}
		}
	}
	return nodes, edges, nil
}

// readNode loads one node's type, key and declared properties.
func readNode(ctx context.Context, src engine.Engine, d *dict, id engine.NodeID) (discovered, error) {
	typeID, ok, err := src.NodeType(ctx, id)
	if err != nil {
		return discovered{}, fmt.Errorf("node %d type: %w", id, err)
	}
	if !ok {
		return discovered{}, fmt.Errorf("node %d vanished during the walk", id)
	}
	if _, known := d.typeNames[typeID]; !known {
		return discovered{}, fmt.Errorf("node %d has a type that is not in the schema file", id)
	}

	key, _, err := src.NodeKey(ctx, id)
	if err != nil {
		return discovered{}, fmt.Errorf("node %d key: %w", id, err)
	}

	props := make(map[engine.PropKeyID]value.Value)
	for _, pk := range d.propKeyIDs {
		v, ok, err := src.NodeProp(ctx, id, pk)
		if err != nil {
			return discovered{}, fmt.Errorf("node %d prop %q: %w", id, d.propNames[pk], err)
		}
		if ok {
			props[pk] = v
		}
	}
	return discovered{ID: id, Type: typeID, Key: key, Props: props}, nil
}

// indexByID builds a lookup table from source node id to its discovered record.
func indexByID(nodes []discovered) map[engine.NodeID]discovered {
	m := make(map[engine.NodeID]discovered, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

// copyNodes writes the discovered nodes to the target, translating interned
// ids through the two dictionaries. A node whose (type, key) already exists
// on the target is reused rather than duplicated, so reruns converge.
func copyNodes(ctx context.Context, tgt engine.Engine, srcDict, tgtDict *dict, nodes []discovered) (map[engine.NodeID]engine.NodeID, int, error) {
	idMap := make(map[engine.NodeID]engine.NodeID, len(nodes))
	reused := 0

	for _, n := range nodes {
		typeName := srcDict.typeNames[n.Type]
		props := make(map[engine.PropKeyID]value.Value, len(n.Props))
		for pk, v := range n.Props {
			props[tgtDict.propKeys[srcDict.propNames[pk]]] = v
		}

		id, err := tgt.CreateNode(ctx, tgtDict.nodeTypes[typeName], n.Key, props)
		switch {
		case errors.Is(err, engine.ErrDuplicateKey):
			existing, ok, lookupErr := tgt.NodeByKey(ctx, tgtDict.nodeTypes[typeName], n.Key)
			if lookupErr != nil {
				return nil, 0, fmt.Errorf("node %s:%s lookup after duplicate: %w", typeName, n.Key, lookupErr)
			}
			if !ok {
				return nil, 0, fmt.Errorf("node %s:%s reported duplicate but cannot be found", typeName, n.Key)
			}
			slog.Info("node already on target, reusing", "type", typeName, "key", n.Key)
			idMap[n.ID] = existing
			reused++
		case err != nil:
			return nil, 0, fmt.Errorf("create node %s:%s: %w", typeName, n.Key, err)
		default:
			idMap[n.ID] = id
		}
	}
	return idMap, reused, nil
}

// verifyNodes re-reads every mapped node on the target.
func verifyNodes(ctx context.Context, tgt engine.Engine, idMap map[engine.NodeID]engine.NodeID) (int, error) {
	verified := 0
	for _, id := range idMap {
		_, ok, err := tgt.NodeType(ctx, id)
		if err != nil {
			return verified, err
		}
		if ok {
			verified++
		}
	}
	return verified, nil
}
