package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage nodes",
	}
	cmd.AddCommand(nodeAddCmd())
	cmd.AddCommand(nodeGetCmd())
	cmd.AddCommand(nodeDelCmd())
	return cmd
}

func nodeAddCmd() *cobra.Command {
	var nodeType, propsJSON string
	cmd := &cobra.Command{
		Use:   "add <key>",
		Short: "Create a node",
		Long:  "Creates a node of a declared type. An empty key makes the node unaddressable by key.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if nodeType == "" {
				fmt.Fprintf(os.Stderr, "Error: --type is required\n")
				exit(1)
			}
			def, ok := db.Schema().NodeDef(nodeType)
			if !ok {
				fatal("add node", fmt.Errorf("unknown node type %q", nodeType))
			}
			props, err := parseProps(def, propsJSON)
			if err != nil {
				fatal("parse props", err)
			}
			n, err := db.AddNode(context.Background(), def, args[0], props)
			if err != nil {
				fatal("add node", err)
			}
			outputNode(n)
		},
	}
	cmd.Flags().StringVar(&nodeType, "type", "", "Node type (required)")
	cmd.Flags().StringVar(&propsJSON, "props", "", "Properties as JSON")
	return cmd
}

func nodeGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|type:key>",
		Short: "Get a node",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			n, err := resolveNode(context.Background(), args[0])
			if err != nil {
				fatal("get node", err)
			}
			outputNode(n)
		},
	}
}

func nodeDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <id|type:key>",
		Short: "Delete a node and every edge touching it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			n, err := resolveNode(ctx, args[0])
			if err != nil {
				fatal("delete node", err)
			}
			if err := db.RemoveNode(ctx, n); err != nil {
				fatal("delete node", err)
			}
			fmt.Println("deleted")
		},
	}
}
