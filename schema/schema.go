// Package schema declares the node and edge types of a graph. A Schema is
// built once at startup and handed to the database on open; declaration order
// of a node type's properties is the order materialized nodes expose them in.
package schema

import (
	"errors"
	"fmt"

	"github.com/trellisdb/trellis/value"
)

// Sentinel errors for schema construction.
var (
	ErrEmptyName     = errors.New("type name is required")
	ErrDuplicateType = errors.New("type already declared")
	ErrDuplicateProp = errors.New("property already declared")
)

// PropDef declares one typed property of a node type.
type PropDef struct {
	Name string
	Kind value.Kind
}

// Prop builds a property definition. It is the argument form used with
// Schema.Node.
func Prop(name string, kind value.Kind) PropDef {
	return PropDef{Name: name, Kind: kind}
}

// NodeDef is a declared node type. Props preserves declaration order.
type NodeDef struct {
	Name  string
	Props []PropDef

	byName map[string]int
}

// Prop looks up a property definition by name.
func (d *NodeDef) Prop(name string) (PropDef, bool) {
	i, ok := d.byName[name]
	if !ok {
		return PropDef{}, false
	}
	return d.Props[i], true
}

// EdgeDef is a declared edge type.
type EdgeDef struct {
	Name string
}

// Schema is a registry of declared node and edge types.
type Schema struct {
	nodes map[string]*NodeDef
	edges map[string]*EdgeDef

	nodeOrder []string
	edgeOrder []string
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{
		nodes: make(map[string]*NodeDef),
		edges: make(map[string]*EdgeDef),
	}
}

// Node declares a node type with its properties. Property order is preserved.
func (s *Schema) Node(name string, props ...PropDef) (*NodeDef, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if _, ok := s.nodes[name]; ok {
		return nil, fmt.Errorf("node type %q: %w", name, ErrDuplicateType)
	}

	def := &NodeDef{
		Name:   name,
		Props:  make([]PropDef, 0, len(props)),
		byName: make(map[string]int, len(props)),
	}

	for _, p := range props {
		if p.Name == "" {
			return nil, fmt.Errorf("node type %q: %w", name, ErrEmptyName)
		}
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("node type %q, property %q: invalid kind", name, p.Name)
		}
		if _, ok := def.byName[p.Name]; ok {
			return nil, fmt.Errorf("node type %q, property %q: %w", name, p.Name, ErrDuplicateProp)
		}
		def.byName[p.Name] = len(def.Props)
		def.Props = append(def.Props, p)
	}

	s.nodes[name] = def
	s.nodeOrder = append(s.nodeOrder, name)
	return def, nil
}

// MustNode is Node but panics on error. Intended for static schema setup.
func (s *Schema) MustNode(name string, props ...PropDef) *NodeDef {
	def, err := s.Node(name, props...)
	if err != nil {
		panic(err)
	}
	return def
}

// Edge declares an edge type.
func (s *Schema) Edge(name string) (*EdgeDef, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if _, ok := s.edges[name]; ok {
		return nil, fmt.Errorf("edge type %q: %w", name, ErrDuplicateType)
	}

	def := &EdgeDef{Name: name}
	s.edges[name] = def
	s.edgeOrder = append(s.edgeOrder, name)
	return def, nil
}

// MustEdge is Edge but panics on error. Intended for static schema setup.
func (s *Schema) MustEdge(name string) *EdgeDef {
	def, err := s.Edge(name)
	if err != nil {
		panic(err)
	}
	return def
}

// NodeDef looks up a declared node type by name.
func (s *Schema) NodeDef(name string) (*NodeDef, bool) {
	def, ok := s.nodes[name]
	return def, ok
}

// EdgeDef looks up a declared edge type by name.
func (s *Schema) EdgeDef(name string) (*EdgeDef, bool) {
	def, ok := s.edges[name]
	return def, ok
}

// NodeDefs returns all declared node types in declaration order.
func (s *Schema) NodeDefs() []*NodeDef {
	defs := make([]*NodeDef, 0, len(s.nodeOrder))
	for _, name := range s.nodeOrder {
		defs = append(defs, s.nodes[name])
	}
	return defs
}

// EdgeDefs returns all declared edge types in declaration order.
func (s *Schema) EdgeDefs() []*EdgeDef {
	defs := make([]*EdgeDef, 0, len(s.edgeOrder))
	for _, name := range s.edgeOrder {
		defs = append(defs, s.edges[name])
	}
	return defs
}
