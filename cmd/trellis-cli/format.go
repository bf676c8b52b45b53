package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/trellisdb/trellis"
)

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Println(strings.Join(parts, "  "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func formatQuiet(id string) {
	fmt.Println(id)
}

func output(v any, quietVal string) {
	switch flagFmt {
	case "quiet":
		formatQuiet(quietVal)
	case "table":
		// Table requires caller to use formatTable directly.
		// Fallback to JSON for generic output.
		formatJSON(v)
	default:
		formatJSON(v)
	}
}

// nodeView is the JSON shape of a node.
type nodeView struct {
	ID    uint64         `json:"id"`
	Type  string         `json:"type"`
	Key   string         `json:"key,omitempty"`
	Props map[string]any `json:"props,omitempty"`
}

func viewOf(n *trellis.Node) nodeView {
	v := nodeView{ID: uint64(n.ID()), Type: n.Def().Name, Key: n.Key()}
	props := n.Props()
	if len(props) > 0 {
		v.Props = make(map[string]any, len(props))
		for name, pv := range props {
			v.Props[name] = pv.Decode()
		}
	}
	return v
}

// nodeRow renders one node as table cells: id, type, key and the properties
// in declaration order.
func nodeRow(n *trellis.Node) []string {
	var parts []string
	for _, pd := range n.Def().Props {
		if v, ok := n.Prop(pd.Name); ok {
			parts = append(parts, pd.Name+"="+v.String())
		}
	}
	return []string{
		fmt.Sprintf("%d", n.ID()),
		n.Def().Name,
		n.Key(),
		strings.Join(parts, " "),
	}
}

var nodeHeaders = []string{"ID", "TYPE", "KEY", "PROPS"}

// outputNode prints a single node in the selected format.
func outputNode(n *trellis.Node) {
	if flagFmt == "table" {
		formatTable(nodeHeaders, [][]string{nodeRow(n)})
		return
	}
	output(viewOf(n), fmt.Sprintf("%d", n.ID()))
}

// outputNodes prints a node list in the selected format. Quiet prints one id
// per line.
func outputNodes(nodes []*trellis.Node) {
	if flagFmt == "table" {
		rows := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			rows = append(rows, nodeRow(n))
		}
		formatTable(nodeHeaders, rows)
		return
	}
	if flagFmt == "quiet" {
		for _, n := range nodes {
			fmt.Println(n.ID())
		}
		return
	}
	views := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, viewOf(n))
	}
	output(views, "")
}
