package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// schemaView is the JSON shape of the loaded schema.
type schemaView struct {
	Nodes []schemaNode `json:"nodes"`
	Edges []string     `json:"edges"`
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the declared node and edge types",
		Run: func(cmd *cobra.Command, args []string) {
			sch := db.Schema()

			if flagFmt == "table" {
				headers := []string{"KIND", "NAME", "PROPS"}
				var rows [][]string
				for _, def := range sch.NodeDefs() {
					parts := make([]string, 0, len(def.Props))
					for _, p := range def.Props {
						parts = append(parts, p.Name+":"+p.Kind.String())
					}
					rows = append(rows, []string{"node", def.Name, strings.Join(parts, " ")})
				}
				for _, def := range sch.EdgeDefs() {
					rows = append(rows, []string{"edge", def.Name, ""})
				}
				formatTable(headers, rows)
				return
			}
			if flagFmt == "quiet" {
				for _, def := range sch.NodeDefs() {
					fmt.Println(def.Name)
				}
				for _, def := range sch.EdgeDefs() {
					fmt.Println(def.Name)
				}
				return
			}

			view := schemaView{Nodes: []schemaNode{}, Edges: []string{}}
			for _, def := range sch.NodeDefs() {
				n := schemaNode{Name: def.Name}
				for _, p := range def.Props {
					n.Props = append(n.Props, schemaProp{Name: p.Name, Kind: p.Kind.String()})
				}
				view.Nodes = append(view.Nodes, n)
			}
			for _, def := range sch.EdgeDefs() {
				view.Edges = append(view.Edges, def.Name)
			}
			output(view, "")
		},
	}
}
