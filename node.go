package trellis

import (
	"fmt"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/schema"
	"github.com/trellisdb/trellis/value"
)

// Node is an immutable materialized view of one graph node: its id, display
// key, type definition, and every declared property that had a stored value.
// Views are built fresh on every materialization and never updated in place;
// after a mutation, re-fetch the node to observe the change.
type Node struct {
	id    engine.NodeID
	key   string
	def   *schema.NodeDef
	props map[string]value.Value
}

// ID returns the node's storage id.
func (n *Node) ID() engine.NodeID { return n.id }

// Key returns the node's display key. Nodes stored without a key get a
// synthesized "node:<id>" key.
func (n *Node) Key() string { return n.key }

// Def returns the node's type definition.
func (n *Node) Def() *schema.NodeDef { return n.def }

// Prop returns one property value by name. ok=false means the property was
// not set when the view was materialized.
func (n *Node) Prop(name string) (value.Value, bool) {
	v, ok := n.props[name]
	return v, ok
}

// Props returns a copy of all set properties. Unset declared properties have
// no entry.
func (n *Node) Props() map[string]value.Value {
	out := make(map[string]value.Value, len(n.props))
	for k, v := range n.props {
		out[k] = v
	}
	return out
}

// String implements fmt.Stringer for logging.
func (n *Node) String() string {
	return fmt.Sprintf("%s/%s#%d", n.def.Name, n.key, n.id)
}
