package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trellisdb/trellis"
	"github.com/trellisdb/trellis/schema"
)

// edgeView is the JSON shape of an edge write.
type edgeView struct {
	Source uint64  `json:"source"`
	Target uint64  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight,omitempty"`
}

func newEdgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Manage edges",
	}
	cmd.AddCommand(edgeAddCmd())
	cmd.AddCommand(edgeDelCmd())
	return cmd
}

// edgeArgs resolves the shared <source> <target> --type triple.
func edgeArgs(ctx context.Context, args []string, edgeType string) (source, target *trellis.Node, def *schema.EdgeDef, err error) {
	if edgeType == "" {
		fmt.Fprintf(os.Stderr, "Error: --type is required\n")
		exit(1)
	}
	source, err = resolveNode(ctx, args[0])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("source: %w", err)
	}
	target, err = resolveNode(ctx, args[1])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("target: %w", err)
	}
	def, ok := db.Schema().EdgeDef(edgeType)
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown edge type %q", edgeType)
	}
	return source, target, def, nil
}

func edgeAddCmd() *cobra.Command {
	var edgeType string
	var weight float64
	cmd := &cobra.Command{
		Use:   "add <source> <target>",
		Short: "Create or reweight an edge",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			src, dst, def, err := edgeArgs(ctx, args, edgeType)
			if err != nil {
				fatal("add edge", err)
			}
			if err := db.AddEdgeWeighted(ctx, src, dst, def, weight); err != nil {
				fatal("add edge", err)
			}
			view := edgeView{
				Source: uint64(src.ID()),
				Target: uint64(dst.ID()),
				Type:   def.Name,
				Weight: weight,
			}
			output(view, fmt.Sprintf("%d->%d", src.ID(), dst.ID()))
		},
	}
	cmd.Flags().StringVar(&edgeType, "type", "", "Edge type (required)")
	cmd.Flags().Float64Var(&weight, "weight", 1.0, "Edge weight")
	return cmd
}

func edgeDelCmd() *cobra.Command {
	var edgeType string
	cmd := &cobra.Command{
		Use:   "del <source> <target>",
		Short: "Delete an edge",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			src, dst, def, err := edgeArgs(ctx, args, edgeType)
			if err != nil {
				fatal("delete edge", err)
			}
			if err := db.RemoveEdge(ctx, src, dst, def); err != nil {
				fatal("delete edge", err)
			}
			fmt.Println("deleted")
		},
	}
	cmd.Flags().StringVar(&edgeType, "type", "", "Edge type (required)")
	return cmd
}
