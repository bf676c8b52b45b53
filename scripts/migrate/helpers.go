package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/trellisdb/trellis/engine"
)

// graphSchema lists the names the script resolves on both engines. Property
// kinds are not needed here; values are copied exactly as stored.
type graphSchema struct {
	NodeTypes []string
	EdgeTypes []string
	PropKeys  []string
}

// schemaFile mirrors the yaml layout the CLI uses; only names are read.
type schemaFile struct {
	Nodes []struct {
		Name  string `yaml:"name"`
		Props []struct {
			Name string `yaml:"name"`
		} `yaml:"props"`
	} `yaml:"nodes"`
	Edges []struct {
		Name string `yaml:"name"`
	} `yaml:"edges"`
}

// loadGraphSchema reads the declared type and property names from a schema
// file.
func loadGraphSchema(path string) (graphSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graphSchema{}, err
	}

	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return graphSchema{}, fmt.Errorf("parse yaml: %w", err)
	}

	var sch graphSchema
	seen := make(map[string]bool)
	for _, n := range f.Nodes {
		sch.NodeTypes = append(sch.NodeTypes, n.Name)
		for _, p := range n.Props {
			if !seen[p.Name] {
				seen[p.Name] = true
				sch.PropKeys = append(sch.PropKeys, p.Name)
			}
		}
	}
	for _, e := range f.Edges {
		sch.EdgeTypes = append(sch.EdgeTypes, e.Name)
	}

	if len(sch.NodeTypes) == 0 {
		return graphSchema{}, fmt.Errorf("schema file declares no node types")
	}
	return sch, nil
}

// dict maps declared schema names to their interned ids on one engine, in
// both directions. Interning is idempotent and touches only the name
// dictionaries, never nodes or edges, so building a dict on the source graph
// is safe.
type dict struct {
	nodeTypes map[string]engine.NodeTypeID
	typeNames map[engine.NodeTypeID]string

	edgeTypes   map[string]engine.EdgeTypeID
	edgeNames   map[engine.EdgeTypeID]string
	edgeTypeIDs []engine.EdgeTypeID

	propKeys   map[string]engine.PropKeyID
	propNames  map[engine.PropKeyID]string
	propKeyIDs []engine.PropKeyID
}

// buildDict interns every declared name on an engine and records the mapping.
func buildDict(ctx context.Context, eng engine.Engine, sch graphSchema) (*dict, error) {
	d := &dict{
		nodeTypes: make(map[string]engine.NodeTypeID, len(sch.NodeTypes)),
		typeNames: make(map[engine.NodeTypeID]string, len(sch.NodeTypes)),
		edgeTypes: make(map[string]engine.EdgeTypeID, len(sch.EdgeTypes)),
		edgeNames: make(map[engine.EdgeTypeID]string, len(sch.EdgeTypes)),
		propKeys:  make(map[string]engine.PropKeyID, len(sch.PropKeys)),
		propNames: make(map[engine.PropKeyID]string, len(sch.PropKeys)),
	}

	for _, name := range sch.NodeTypes {
		id, err := eng.InternNodeType(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("node type %q: %w", name, err)
		}
		d.nodeTypes[name] = id
		d.typeNames[id] = name
	}
	for _, name := range sch.EdgeTypes {
		id, err := eng.InternEdgeType(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("edge type %q: %w", name, err)
		}
		d.edgeTypes[name] = id
		d.edgeNames[id] = name
		d.edgeTypeIDs = append(d.edgeTypeIDs, id)
	}
	for _, name := range sch.PropKeys {
		id, err := eng.InternPropKey(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("prop key %q: %w", name, err)
		}
		d.propKeys[name] = id
		d.propNames[id] = name
		d.propKeyIDs = append(d.propKeyIDs, id)
	}
	return d, nil
}

// resolveRoots looks up each <type>:<key> reference on the source engine.
func resolveRoots(ctx context.Context, src engine.Engine, d *dict, refs []string) ([]engine.NodeID, error) {
	ids := make([]engine.NodeID, 0, len(refs))
	for _, ref := range refs {
		typ, key, ok := strings.Cut(ref, ":")
		if !ok || typ == "" {
			return nil, fmt.Errorf("root %q: want <type>:<key>", ref)
		}
		typeID, known := d.nodeTypes[typ]
		if !known {
			return nil, fmt.Errorf("root %q: node type %q is not in the schema file", ref, typ)
		}
		id, found, err := src.NodeByKey(ctx, typeID, key)
		if err != nil {
			return nil, fmt.Errorf("root %q: %w", ref, err)
		}
		if !found {
			return nil, fmt.Errorf("root %q not found in the source graph", ref)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// refOf formats a node for logs and the report, preferring its key.
func refOf(byID map[engine.NodeID]discovered, d *dict, id engine.NodeID) string {
	n, ok := byID[id]
	if !ok {
		return fmt.Sprintf("node %d", id)
	}
	if n.Key == "" {
		return fmt.Sprintf("%s #%d", d.typeNames[n.Type], id)
	}
	return d.typeNames[n.Type] + ":" + n.Key
}

// quietLogger returns a logrus logger that only surfaces warnings, keeping
// engine chatter out of the report.
func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

// sanitizeURL removes credentials from a database URL for display.
func sanitizeURL(raw string) string {
	if raw == "" {
		return "(none)"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable URL]"
	}
	u.User = nil
	return u.String()
}

// envOr returns the environment variable value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// spotCheck re-reads up to 5 random keyed nodes on the target and compares
// every declared property against the source copy.
func spotCheck(ctx context.Context, tgt engine.Engine, srcDict, tgtDict *dict, idMap map[engine.NodeID]engine.NodeID, nodes []discovered) ([]string, error) {
	var keyed []discovered
	for _, n := range nodes {
		if n.Key != "" {
			keyed = append(keyed, n)
		}
	}
	if len(keyed) == 0 {
		return nil, nil
	}

	count := min(5, len(keyed))
	indices := rand.Perm(len(keyed))[:count]

	var checks []string
	for _, idx := range indices {
		n := keyed[idx]
		typeName := srcDict.typeNames[n.Type]
		ref := typeName + ":" + n.Key

		targetID, ok, err := tgt.NodeByKey(ctx, tgtDict.nodeTypes[typeName], n.Key)
		if err != nil {
			return checks, err
		}
		if !ok {
			checks = append(checks, fmt.Sprintf("❌ %s — not found on target", ref))
			continue
		}
		if targetID != idMap[n.ID] {
			checks = append(checks, fmt.Sprintf("❌ %s — key resolves to a different node", ref))
			continue
		}

		mismatch := ""
		for _, pk := range srcDict.propKeyIDs {
			name := srcDict.propNames[pk]
			sourceVal, sourceOK := n.Props[pk]
			targetVal, targetOK, err := tgt.NodeProp(ctx, targetID, tgtDict.propKeys[name])
			if err != nil {
				return checks, err
			}
			if sourceOK != targetOK || (sourceOK && sourceVal.String() != targetVal.String()) {
				mismatch = name
				break
			}
		}
		if mismatch != "" {
			checks = append(checks, fmt.Sprintf("❌ %s — prop %q differs", ref, mismatch))
		} else {
			checks = append(checks, fmt.Sprintf("✅ %s — %d props match", ref, len(n.Props)))
		}
	}
	return checks, nil
}

// printReport outputs the final migration summary.
func printReport(r *report) {
	nodeStatus := statusIcon(r.NodesRead, r.NodesCopied+r.NodesReused, r.NodesVerified)
	edgeStatus := statusIcon(r.EdgesRead, r.EdgesCopied, r.EdgesVerified)

	fmt.Println()
	fmt.Println("=== Trellis Migration Report ===")
	if r.DryRun {
		fmt.Println("MODE: DRY RUN (no changes made)")
	}
	fmt.Printf("Source: %s\n", r.Source)
	fmt.Printf("Target: %s\n", r.Target)
	fmt.Println()
	if r.NodesReused > 0 {
		fmt.Printf("Nodes: %d read → %d copied (%d reused) → %d verified %s\n",
			r.NodesRead, r.NodesCopied, r.NodesReused, r.NodesVerified, nodeStatus)
	} else {
		fmt.Printf("Nodes: %d read → %d copied → %d verified %s\n",
			r.NodesRead, r.NodesCopied, r.NodesVerified, nodeStatus)
	}
	if r.EdgesSkipped > 0 {
		fmt.Printf("Edges: %d read → %d copied (%d skipped) → %d verified %s\n",
			r.EdgesRead, r.EdgesCopied, r.EdgesSkipped, r.EdgesVerified, edgeStatus)
	} else {
		fmt.Printf("Edges: %d read → %d copied → %d verified %s\n",
			r.EdgesRead, r.EdgesCopied, r.EdgesVerified, edgeStatus)
	}
	if r.EdgesDefaulted > 0 {
		fmt.Printf("Self-loops copied at the default weight: %d\n", r.EdgesDefaulted)
	}

	if len(r.SkippedEdges) > 0 {
		fmt.Println("\nSkipped edges:")
		for _, s := range r.SkippedEdges {
			fmt.Printf("  - %s → %s (reason: %s)\n", s.Source, s.Target, s.Reason)
		}
	}

	if len(r.SpotChecks) > 0 {
		fmt.Println("\nSpot checks:")
		for _, c := range r.SpotChecks {
			fmt.Printf("  %s\n", c)
		}
	}

	fmt.Printf("\nDuration: %.1fs\n", r.Duration.Seconds())
	if r.Err != nil {
		fmt.Printf("Status: FAILED — %v\n", r.Err)
	} else {
		fmt.Println("Status: SUCCESS")
	}
}

// statusIcon returns a check or X based on count match.
func statusIcon(expected, copied, verified int) string {
	if verified == 0 && copied > 0 {
		return "⏳"
	}
	if expected == copied && copied == verified {
		return "✅"
	}
	if copied == verified {
		return "✅"
	}
	return "❌"
}
