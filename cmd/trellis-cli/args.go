package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trellisdb/trellis"
	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/schema"
	"github.com/trellisdb/trellis/value"
)

// nodeRef is a parsed node argument: either a numeric id or a type:key pair.
type nodeRef struct {
	byID bool
	id   engine.NodeID
	typ  string
	key  string
}

// parseNodeRef accepts "42" (a node id) or "person:ada" (a keyed lookup).
// The key may itself contain colons; only the first one splits.
func parseNodeRef(arg string) (nodeRef, error) {
	if id, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return nodeRef{byID: true, id: engine.NodeID(id)}, nil
	}
	typ, key, ok := strings.Cut(arg, ":")
	if !ok || typ == "" {
		return nodeRef{}, fmt.Errorf("node ref %q: want <id> or <type>:<key>", arg)
	}
	return nodeRef{typ: typ, key: key}, nil
}

// resolveNode looks a node argument up in the open database.
func resolveNode(ctx context.Context, arg string) (*trellis.Node, error) {
	ref, err := parseNodeRef(arg)
	if err != nil {
		return nil, err
	}
	var n *trellis.Node
	if ref.byID {
		n, err = db.GetNode(ctx, ref.id)
	} else {
		def, ok := db.Schema().NodeDef(ref.typ)
		if !ok {
			return nil, fmt.Errorf("unknown node type %q", ref.typ)
		}
		n, err = db.GetNodeByKey(ctx, def, ref.key)
	}
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("node %q not found", arg)
	}
	return n, nil
}

func resolveNodes(ctx context.Context, args []string) ([]*trellis.Node, error) {
	nodes := make([]*trellis.Node, 0, len(args))
	for _, arg := range args {
		n, err := resolveNode(ctx, arg)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// resolveEdge maps an edge type name onto its declaration. An empty name
// means the hop is unfiltered and resolves to nil.
func resolveEdge(name string) (*schema.EdgeDef, error) {
	if name == "" {
		return nil, nil
	}
	if strings.Contains(name, ",") {
		return nil, fmt.Errorf("edge type %q: one edge type per hop; repeat the flag for more hops", name)
	}
	def, ok := db.Schema().EdgeDef(name)
	if !ok {
		return nil, fmt.Errorf("unknown edge type %q", name)
	}
	return def, nil
}

// hopFlag is one --out/--in/--both occurrence, in argv order.
type hopFlag struct {
	dir string
	typ string // empty means any edge type
}

// parseHops scans raw arguments for hop flags in the order they appear.
// pflag hands values back grouped per flag name, which loses the interleaving
// of --out and --in across a multi-hop walk, so the sequence is recovered
// from argv directly. A bare flag (or =*) follows every edge type;
// --out=knows restricts the hop to one type.
func parseHops(argv []string) []hopFlag {
	var hops []hopFlag
	for _, arg := range argv {
		if arg == "--" {
			break
		}
		name, val, hasVal := strings.Cut(arg, "=")
		switch name {
		case "--out", "--in", "--both":
		default:
			continue
		}
		h := hopFlag{dir: strings.TrimPrefix(name, "--")}
		if hasVal && val != "*" {
			h.typ = strings.TrimSpace(val)
		}
		hops = append(hops, h)
	}
	return hops
}

// parseDirection maps a flag value onto an edge direction.
func parseDirection(s string) (engine.Direction, error) {
	d := engine.Direction(strings.ToLower(s))
	if !d.Valid() {
		return "", fmt.Errorf("invalid direction %q: want out, in or both", s)
	}
	return d, nil
}

// parseProps decodes a JSON object into property values coerced to the
// declared kinds: numbers become int64 or float64 per the declaration, and
// time and bytes properties accept RFC 3339 strings and base64 strings.
// Undeclared names pass through untouched and are rejected on write.
func parseProps(def *schema.NodeDef, propsJSON string) (map[string]any, error) {
	if propsJSON == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(propsJSON))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing props json: %w", err)
	}

	props := make(map[string]any, len(raw))
	for name, rv := range raw {
		pd, declared := def.Prop(name)
		if !declared {
			props[name] = rv
			continue
		}
		cv, err := coerceProp(pd.Kind, rv)
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", name, err)
		}
		props[name] = cv
	}
	return props, nil
}

func coerceProp(kind value.Kind, rv any) (any, error) {
	switch kind {
	case value.KindInt:
		if n, ok := rv.(json.Number); ok {
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("want integer, got %v", n)
			}
			return i, nil
		}
	case value.KindFloat:
		if n, ok := rv.(json.Number); ok {
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("want number, got %v", n)
			}
			return f, nil
		}
	case value.KindTime:
		if s, ok := rv.(string); ok {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("want RFC 3339 timestamp: %w", err)
			}
			return t, nil
		}
	case value.KindBytes:
		if s, ok := rv.(string); ok {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("want base64: %w", err)
			}
			return b, nil
		}
	}
	// Strings and bools arrive in their final shape; anything else is left
	// for the write path to reject with a kind mismatch.
	return rv, nil
}
