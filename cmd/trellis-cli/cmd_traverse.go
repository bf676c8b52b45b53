package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newTraverseCmd() *cobra.Command {
	var (
		countOnly bool
		firstOnly bool
		hopOut    []string
		hopIn     []string
		hopBoth   []string
	)

	cmd := &cobra.Command{
		Use:   "traverse <node>... [--out[=type]] [--in[=type]] [--both[=type]]",
		Short: "Walk hops out from a set of start nodes",
		Long: `Walks the graph hop by hop from one or more start nodes. Each --out, --in
or --both flag adds one hop, applied in the order the flags appear on the
command line; a bare flag follows every edge type, =knows restricts the hop
to that type. Results are deduplicated per hop.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			starts, err := resolveNodes(ctx, args)
			if err != nil {
				fatal("resolve start nodes", err)
			}

			t := db.From(starts...)
			for _, h := range parseHops(os.Args[1:]) {
				def, err := resolveEdge(h.typ)
				if err != nil {
					fatal("resolve edge type", err)
				}
				switch h.dir {
				case "out":
					t = t.Out(def)
				case "in":
					t = t.In(def)
				case "both":
					t = t.Both(def)
				}
			}

			switch {
			case countOnly:
				n, err := t.Count(ctx)
				if err != nil {
					fatal("traverse", err)
				}
				output(map[string]int{"count": n}, strconv.Itoa(n))
			case firstOnly:
				n, err := t.First(ctx)
				if err != nil {
					fatal("traverse", err)
				}
				if n == nil {
					fatal("traverse", errors.New("no nodes matched"))
				}
				outputNode(n)
			default:
				nodes, err := t.ToList(ctx)
				if err != nil {
					fatal("traverse", err)
				}
				outputNodes(nodes)
			}
		},
	}

	// The hop values are read back out of os.Args by parseHops; these
	// registrations exist so cobra accepts the flags, alone or with =type.
	cmd.Flags().StringArrayVar(&hopOut, "out", nil, "Follow outgoing edges, optionally =type")
	cmd.Flags().StringArrayVar(&hopIn, "in", nil, "Follow incoming edges, optionally =type")
	cmd.Flags().StringArrayVar(&hopBoth, "both", nil, "Follow edges in both directions, optionally =type")
	for _, name := range []string{"out", "in", "both"} {
		cmd.Flags().Lookup(name).NoOptDefVal = "*"
	}
	cmd.Flags().BoolVar(&countOnly, "count", false, "Print only the number of results")
	cmd.Flags().BoolVar(&firstOnly, "first", false, "Print only the first result")
	return cmd
}
