// Package main provides a standalone migration script that copies a Trellis
// graph from the embedded Badger engine into PostgreSQL. It walks the graph
// outward from a set of root nodes, following edges of every declared type in
// both directions, and copies the enclosed subgraph.
//
// Usage:
//
//	TRELLIS_SOURCE_DIR=./graph.db TRELLIS_TARGET_URL=postgres://... \
//	TRELLIS_SCHEMA=./schema.yaml TRELLIS_ROOTS=person:ada go run ./scripts/migrate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/trellisdb/trellis/engine/badger"
	"github.com/trellisdb/trellis/engine/postgres"
)

// config holds environment-driven migration settings.
type config struct {
	SourceDir  string
	TargetURL  string
	SchemaPath string
	Roots      []string
	DryRun     bool
}

// skippedEdge records an edge that was skipped during migration.
type skippedEdge struct {
	Source string
	Target string
	Reason string
}

// report holds the final migration summary.
type report struct {
	Source         string
	Target         string
	NodesRead      int
	NodesCopied    int
	NodesReused    int
	NodesVerified  int
	EdgesRead      int
	EdgesCopied    int
	EdgesSkipped   int
	EdgesDefaulted int
	EdgesVerified  int
	SkippedEdges   []skippedEdge
	SpotChecks     []string
	Duration       time.Duration
	DryRun         bool
	Err            error
}

func main() {
	cfg := loadConfig()
	if cfg.SourceDir == "" {
		slog.Error("TRELLIS_SOURCE_DIR is required")
		os.Exit(1)
	}
	if cfg.SchemaPath == "" {
		slog.Error("TRELLIS_SCHEMA is required")
		os.Exit(1)
	}
	if len(cfg.Roots) == 0 {
		slog.Error("TRELLIS_ROOTS is required (comma-separated <type>:<key> references)")
		os.Exit(1)
	}
	if cfg.TargetURL == "" && !cfg.DryRun {
		slog.Error("TRELLIS_TARGET_URL is required unless DRY_RUN is set")
		os.Exit(1)
	}

	slog.Info("starting migration",
		"source", cfg.SourceDir,
		"roots", len(cfg.Roots),
		"dry_run", cfg.DryRun,
	)

	start := time.Now()
	r, err := runMigration(context.Background(), cfg)
	r.Duration = time.Since(start)
	if err != nil {
		r.Err = err
		slog.Error("migration failed", "error", err)
	}
	printReport(&r)
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration from environment variables.
func loadConfig() config {
	c := config{
		SourceDir:  envOr("TRELLIS_SOURCE_DIR", ""),
		TargetURL:  envOr("TRELLIS_TARGET_URL", ""),
		SchemaPath: envOr("TRELLIS_SCHEMA", ""),
		DryRun:     os.Getenv("DRY_RUN") == "true" || os.Getenv("DRY_RUN") == "1",
	}
	for _, ref := range strings.Split(os.Getenv("TRELLIS_ROOTS"), ",") {
		if ref = strings.TrimSpace(ref); ref != "" {
			c.Roots = append(c.Roots, ref)
		}
	}
	return c
}

// runMigration executes the full migration pipeline.
//
//nolint:funlen // Migration pipeline is sequential; splitting would hurt readability.
func runMigration(ctx context.Context, cfg config) (report, error) {
	r := report{
		Source: cfg.SourceDir,
		Target: sanitizeURL(cfg.TargetURL),
		DryRun: cfg.DryRun,
	}

	sch, err := loadGraphSchema(cfg.SchemaPath)
	if err != nil {
		return r, fmt.Errorf("load schema: %w", err)
	}

	// Open the source engine. Badger holds an exclusive directory lock, so
	// the graph must not be open anywhere else while the script runs.
	bcfg := badger.DefaultConfig(cfg.SourceDir)
	bcfg.SyncWrites = false
	bcfg.GCInterval = 0
	bcfg.Logger = quietLogger()
	src, err := badger.Open(bcfg)
	if err != nil {
		return r, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	srcDict, err := buildDict(ctx, src, sch)
	if err != nil {
		return r, fmt.Errorf("resolve source dictionaries: %w", err)
	}

	roots, err := resolveRoots(ctx, src, srcDict, cfg.Roots)
	if err != nil {
		return r, fmt.Errorf("resolve roots: %w", err)
	}

	nodes, edges, err := discover(ctx, src, srcDict, roots)
	if err != nil {
		return r, fmt.Errorf("discover subgraph: %w", err)
	}
	r.NodesRead = len(nodes)
	r.EdgesRead = len(edges)
	slog.Info("discovered subgraph", "nodes", r.NodesRead, "edges", r.EdgesRead)

	r.EdgesDefaulted, err = resolveWeights(ctx, src, srcDict, edges)
	if err != nil {
		return r, fmt.Errorf("resolve edge weights: %w", err)
	}

	if cfg.DryRun {
		slog.Info("dry run — skipping target writes")
		r.NodesCopied = r.NodesRead
		r.EdgesCopied = r.EdgesRead
		return r, nil
	}

	tgt, err := postgres.Open(ctx, postgres.Config{URL: cfg.TargetURL, Logger: quietLogger()})
	if err != nil {
		return r, fmt.Errorf("open target: %w", err)
	}
	defer tgt.Close()

	tgtDict, err := buildDict(ctx, tgt, sch)
	if err != nil {
		return r, fmt.Errorf("resolve target dictionaries: %w", err)
	}

	idMap, reused, err := copyNodes(ctx, tgt, srcDict, tgtDict, nodes)
	if err != nil {
		return r, fmt.Errorf("copy nodes: %w", err)
	}
	r.NodesCopied = len(idMap) - reused
	r.NodesReused = reused
	slog.Info("copied nodes", "count", r.NodesCopied, "reused", r.NodesReused)

	copied, skipped := copyEdges(ctx, tgt, srcDict, tgtDict, idMap, indexByID(nodes), edges)
	r.EdgesCopied = copied
	r.EdgesSkipped = len(skipped)
	r.SkippedEdges = skipped
	slog.Info("copied edges", "count", copied, "skipped", len(skipped))

	// Verify by re-reading everything just written.
	r.NodesVerified, err = verifyNodes(ctx, tgt, idMap)
	if err != nil {
		return r, fmt.Errorf("verify nodes: %w", err)
	}
	r.EdgesVerified, err = verifyEdges(ctx, tgt, srcDict, tgtDict, idMap, edges)
	if err != nil {
		return r, fmt.Errorf("verify edges: %w", err)
	}

	r.SpotChecks, err = spotCheck(ctx, tgt, srcDict, tgtDict, idMap, nodes)
	if err != nil {
		return r, fmt.Errorf("spot check: %w", err)
	}

	return r, nil
}
