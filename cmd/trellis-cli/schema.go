package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trellisdb/trellis/schema"
	"github.com/trellisdb/trellis/value"
)

// schemaFile is the YAML layout of a schema declaration:
//
//	nodes:
//	  - name: person
//	    props:
//	      - {name: name, kind: string}
//	      - {name: age, kind: int}
//	edges:
//	  - name: knows
type schemaFile struct {
	Nodes []schemaNode `yaml:"nodes"`
	Edges []schemaEdge `yaml:"edges"`
}

type schemaNode struct {
	Name  string       `yaml:"name" json:"name"`
	Props []schemaProp `yaml:"props" json:"props,omitempty"`
}

type schemaProp struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"`
}

type schemaEdge struct {
	Name string `yaml:"name"`
}

// parseSchema builds a schema from YAML. Property kinds use the names of
// value.Kind: string, int, float, bool, time, bytes.
func parseSchema(data []byte) (*schema.Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing schema yaml: %w", err)
	}

	sch := schema.New()
	for _, n := range f.Nodes {
		props := make([]schema.PropDef, 0, len(n.Props))
		for _, p := range n.Props {
			kind, err := value.KindOf(p.Kind)
			if err != nil {
				return nil, fmt.Errorf("node %q, prop %q: %w", n.Name, p.Name, err)
			}
			props = append(props, schema.Prop(p.Name, kind))
		}
		if _, err := sch.Node(n.Name, props...); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
	}
	for _, e := range f.Edges {
		if _, err := sch.Edge(e.Name); err != nil {
			return nil, fmt.Errorf("edge %q: %w", e.Name, err)
		}
	}
	return sch, nil
}

// loadSchema reads a schema declaration from path. An empty path yields an
// empty schema, which still allows stats and id-based reads.
func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return parseSchema(data)
}
