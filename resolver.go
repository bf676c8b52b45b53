package trellis

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/schema"
)

// resolver maps schema definitions to the engine's interned dictionary ids.
//
// Node types are interned eagerly when the database opens, because
// materialization needs the reverse mapping (stored type id back to
// definition) before any query runs. Edge types and property keys resolve
// lazily on first use: those lookups sit on hot paths (once per hop, once per
// declared property per materialized node), so hits are served from sync.Map
// and concurrent misses collapse through singleflight before reaching the
// engine.
type resolver struct {
	eng engine.Engine

	nodeTypes   map[string]engine.NodeTypeID
	nodeDefByID map[engine.NodeTypeID]*schema.NodeDef

	edgeTypes sync.Map // edge type name -> engine.EdgeTypeID
	propKeys  sync.Map // property key name -> engine.PropKeyID
	group     singleflight.Group
}

func newResolver(ctx context.Context, eng engine.Engine, sch *schema.Schema) (*resolver, error) {
	r := &resolver{
		eng:         eng,
		nodeTypes:   make(map[string]engine.NodeTypeID),
		nodeDefByID: make(map[engine.NodeTypeID]*schema.NodeDef),
	}

	for _, def := range sch.NodeDefs() {
		id, err := eng.InternNodeType(ctx, def.Name)
		if err != nil {
			return nil, fmt.Errorf("interning node type %q: %w", def.Name, err)
		}
		r.nodeTypes[def.Name] = id
		r.nodeDefByID[id] = def
	}

	return r, nil
}

// nodeTypeID returns the interned id of a declared node type.
func (r *resolver) nodeTypeID(def *schema.NodeDef) (engine.NodeTypeID, bool) {
	if def == nil {
		return 0, false
	}
	id, ok := r.nodeTypes[def.Name]
	return id, ok
}

// nodeDef returns the declared definition for a stored node type id. A miss
// means the stored type is not part of the opened schema.
func (r *resolver) nodeDef(id engine.NodeTypeID) (*schema.NodeDef, bool) {
	def, ok := r.nodeDefByID[id]
	return def, ok
}

// edgeTypeID returns the interned id for an edge type, creating it in the
// engine's dictionary on first use.
func (r *resolver) edgeTypeID(ctx context.Context, def *schema.EdgeDef) (engine.EdgeTypeID, error) {
	if v, ok := r.edgeTypes.Load(def.Name); ok {
		return v.(engine.EdgeTypeID), nil
	}

	v, err, _ := r.group.Do("edge:"+def.Name, func() (any, error) {
		// Double-check after winning the singleflight race.
		if v, ok := r.edgeTypes.Load(def.Name); ok {
			return v.(engine.EdgeTypeID), nil
		}

		id, err := r.eng.InternEdgeType(ctx, def.Name)
		if err != nil {
			return nil, err
		}

		r.edgeTypes.Store(def.Name, id)
		return id, nil
	})
	if err != nil {
		return 0, fmt.Errorf("resolving edge type %q: %w", def.Name, err)
	}

	return v.(engine.EdgeTypeID), nil
}

// optionalEdgeTypeID resolves a hop's edge type filter. A nil definition
// means "any type" and resolves to nil.
func (r *resolver) optionalEdgeTypeID(ctx context.Context, def *schema.EdgeDef) (*engine.EdgeTypeID, error) {
	if def == nil {
		return nil, nil
	}

	id, err := r.edgeTypeID(ctx, def)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// propKeyID returns the interned id for a property key, creating it in the
// engine's dictionary on first use.
func (r *resolver) propKeyID(ctx context.Context, name string) (engine.PropKeyID, error) {
	if v, ok := r.propKeys.Load(name); ok {
		return v.(engine.PropKeyID), nil
	}

	v, err, _ := r.group.Do("prop:"+name, func() (any, error) {
		if v, ok := r.propKeys.Load(name); ok {
			return v.(engine.PropKeyID), nil
		}

		id, err := r.eng.InternPropKey(ctx, name)
		if err != nil {
			return nil, err
		}

		r.propKeys.Store(name, id)
		return id, nil
	})
	if err != nil {
		return 0, fmt.Errorf("resolving property key %q: %w", name, err)
	}

	return v.(engine.PropKeyID), nil
}
