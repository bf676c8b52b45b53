package trellis

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/schema"
	"github.com/trellisdb/trellis/value"
)

// AddNode creates a node of a declared type. Every property must be
// declared on the definition with a matching kind; a non-empty key must be
// unique within the type. The returned view reflects the stored node.
func (db *DB) AddNode(ctx context.Context, def *schema.NodeDef, key string, props map[string]any) (*Node, error) {
	typeID, ok := db.res.nodeTypeID(def)
	if !ok {
		return nil, fmt.Errorf("node type %q: %w", defName(def), ErrUnknownType)
	}

	stored := make(map[engine.PropKeyID]value.Value, len(props))
	decoded := make(map[string]value.Value, len(props))

	for name, raw := range props {
		p, declared := def.Prop(name)
		if !declared {
			return nil, fmt.Errorf("property %q on type %q: %w", name, def.Name, ErrUnknownProp)
		}

		v, err := value.From(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		if v.Kind() != p.Kind {
			return nil, fmt.Errorf("property %q: got %s, want %s: %w", name, v.Kind(), p.Kind, ErrKindMismatch)
		}

		keyID, err := db.res.propKeyID(ctx, name)
		if err != nil {
			return nil, err
		}

		stored[keyID] = v
		decoded[name] = v
	}

	id, err := db.eng.CreateNode(ctx, typeID, key, stored)
	if err != nil {
		return nil, fmt.Errorf("creating node %q: %w", key, err)
	}

	db.log.WithFields(logrus.Fields{
		"node_id": id,
		"type":    def.Name,
		"key":     key,
	}).Debug("node.create")

	display := key
	if display == "" {
		display = fallbackKey(id)
	}

	return &Node{id: id, key: display, def: def, props: decoded}, nil
}

// AddEdge creates a directed edge with the default weight.
func (db *DB) AddEdge(ctx context.Context, source, target *Node, edge *schema.EdgeDef) error {
	return db.AddEdgeWeighted(ctx, source, target, edge, engine.DefaultWeight)
}

// AddEdgeWeighted creates a directed edge carrying an explicit weight, used
// by weighted path search. Recreating an existing edge replaces its weight.
func (db *DB) AddEdgeWeighted(ctx context.Context, source, target *Node, edge *schema.EdgeDef, weight float64) error {
	if source == nil || target == nil {
		return fmt.Errorf("adding edge: nil endpoint")
	}
	if edge == nil {
		return fmt.Errorf("adding edge: nil edge type")
	}

	etype, err := db.res.edgeTypeID(ctx, edge)
	if err != nil {
		return err
	}

	if err := db.eng.CreateEdge(ctx, source.id, target.id, etype, weight); err != nil {
		return fmt.Errorf("creating edge %s->%s: %w", source.key, target.key, err)
	}

	db.log.WithFields(logrus.Fields{
		"source":    source.id,
		"target":    target.id,
		"edge_type": edge.Name,
		"weight":    weight,
	}).Debug("edge.create")

	return nil
}

// RemoveEdge deletes a directed edge.
func (db *DB) RemoveEdge(ctx context.Context, source, target *Node, edge *schema.EdgeDef) error {
	if source == nil || target == nil {
		return fmt.Errorf("removing edge: nil endpoint")
	}
	if edge == nil {
		return fmt.Errorf("removing edge: nil edge type")
	}

	etype, err := db.res.edgeTypeID(ctx, edge)
	if err != nil {
		return err
	}

	if err := db.eng.DeleteEdge(ctx, source.id, target.id, etype); err != nil {
		return fmt.Errorf("deleting edge %s->%s: %w", source.key, target.key, err)
	}
	return nil
}

// RemoveNode deletes a node together with all edges touching it. Existing
// views of the node keep their materialized state.
func (db *DB) RemoveNode(ctx context.Context, n *Node) error {
	if n == nil {
		return fmt.Errorf("removing node: nil node")
	}

	if err := db.eng.DeleteNode(ctx, n.id); err != nil {
		return fmt.Errorf("deleting node %s: %w", n.key, err)
	}

	db.log.WithFields(logrus.Fields{"node_id": n.id, "key": n.key}).Debug("node.delete")
	return nil
}

// SetNodeProp sets one declared property on a stored node. The view n is
// not updated; re-fetch the node to observe the change.
func (db *DB) SetNodeProp(ctx context.Context, n *Node, name string, raw any) error {
	if n == nil {
		return fmt.Errorf("setting property: nil node")
	}

	p, declared := n.def.Prop(name)
	if !declared {
		return fmt.Errorf("property %q on type %q: %w", name, n.def.Name, ErrUnknownProp)
	}

	v, err := value.From(raw)
	if err != nil {
		return fmt.Errorf("property %q: %w", name, err)
	}
	if v.Kind() != p.Kind {
		return fmt.Errorf("property %q: got %s, want %s: %w", name, v.Kind(), p.Kind, ErrKindMismatch)
	}

	keyID, err := db.res.propKeyID(ctx, name)
	if err != nil {
		return err
	}

	if err := db.eng.SetNodeProp(ctx, n.id, keyID, v); err != nil {
		return fmt.Errorf("setting property %q on node %s: %w", name, n.key, err)
	}
	return nil
}

// DeleteNodeProp removes one property from a stored node. Removing an unset
// property is a no-op.
func (db *DB) DeleteNodeProp(ctx context.Context, n *Node, name string) error {
	if n == nil {
		return fmt.Errorf("deleting property: nil node")
	}
	if _, declared := n.def.Prop(name); !declared {
		return fmt.Errorf("property %q on type %q: %w", name, n.def.Name, ErrUnknownProp)
	}

	keyID, err := db.res.propKeyID(ctx, name)
	if err != nil {
		return err
	}

	if err := db.eng.DeleteNodeProp(ctx, n.id, keyID); err != nil {
		return fmt.Errorf("deleting property %q on node %s: %w", name, n.key, err)
	}
	return nil
}
