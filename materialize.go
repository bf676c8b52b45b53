package trellis

import (
	"context"
	"fmt"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/internal/metrics"
	"github.com/trellisdb/trellis/value"
)

// materialize resolves a raw node id into a fully loaded view.
//
// A nil, nil return means the id has no type known to the opened schema;
// callers treat that as absence and drop the id, which is the engine's only
// existence check. Storage errors propagate. Every call performs the full
// key and property resolution; views are never cached.
//
// dropCtx labels the drop counter with where the absence was observed.
func (db *DB) materialize(ctx context.Context, id engine.NodeID, dropCtx string) (*Node, error) {
	typeID, ok, err := db.eng.NodeType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolving type of node %d: %w", id, err)
	}
	if !ok {
		metrics.MaterializeDrops.WithLabelValues(dropCtx).Inc()
		return nil, nil
	}

	def, ok := db.res.nodeDef(typeID)
	if !ok {
		metrics.MaterializeDrops.WithLabelValues(dropCtx).Inc()
		return nil, nil
	}

	key, ok, err := db.eng.NodeKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching key of node %d: %w", id, err)
	}
	if !ok || key == "" {
		key = fallbackKey(id)
	}

	// Properties load sparsely, in declaration order: a declared property
	// with no stored value gets no entry.
	props := make(map[string]value.Value, len(def.Props))
	for _, p := range def.Props {
		keyID, err := db.res.propKeyID(ctx, p.Name)
		if err != nil {
			return nil, err
		}

		v, present, err := db.eng.NodeProp(ctx, id, keyID)
		if err != nil {
			return nil, fmt.Errorf("fetching property %q of node %d: %w", p.Name, id, err)
		}
		if !present {
			continue
		}

		props[p.Name] = v
	}

	metrics.MaterializedNodes.Inc()

	return &Node{id: id, key: key, def: def, props: props}, nil
}

func fallbackKey(id engine.NodeID) string {
	return fmt.Sprintf("node:%d", id)
}
