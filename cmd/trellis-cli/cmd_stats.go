package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

// statsView is the JSON shape of store statistics.
type statsView struct {
	Nodes     uint64 `json:"nodes"`
	Edges     uint64 `json:"edges"`
	NodeTypes uint64 `json:"node_types"`
	EdgeTypes uint64 `json:"edge_types"`
	PropKeys  uint64 `json:"prop_keys"`
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store sizes",
		Run: func(cmd *cobra.Command, args []string) {
			st, err := db.Stats(context.Background())
			if err != nil {
				fatal("read stats", err)
			}

			if flagFmt == "table" {
				u := strconv.FormatUint
				formatTable([]string{"METRIC", "COUNT"}, [][]string{
					{"nodes", u(st.Nodes, 10)},
					{"edges", u(st.Edges, 10)},
					{"node types", u(st.NodeTypes, 10)},
					{"edge types", u(st.EdgeTypes, 10)},
					{"prop keys", u(st.PropKeys, 10)},
				})
				return
			}

			view := statsView{
				Nodes:     st.Nodes,
				Edges:     st.Edges,
				NodeTypes: st.NodeTypes,
				EdgeTypes: st.EdgeTypes,
				PropKeys:  st.PropKeys,
			}
			output(view, strconv.FormatUint(st.Nodes, 10))
		},
	}
}
