// Package trellis is an embedded, schema-typed graph database client. It
// turns fluent traversal and shortest-path builders into sequences of
// primitive storage operations and materializes typed node views from the
// results.
//
// Storage lives behind the engine.Engine interface; engine/memory,
// engine/badger and engine/postgres provide implementations. A DB pairs one
// engine with one declared schema:
//
//	sch := schema.New()
//	person := sch.MustNode("person", schema.Prop("name", value.KindString))
//	knows := sch.MustEdge("knows")
//
//	db, err := trellis.Open(ctx, memory.New(), sch)
//	...
//	friends, err := db.From(alice).Out(knows).ToList(ctx)
package trellis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/schema"
)

// DB is a handle on one graph: an engine plus the schema its nodes are
// typed against. All DB methods are safe for concurrent use; the fluent
// builders they return are not.
type DB struct {
	eng    engine.Engine
	schema *schema.Schema
	res    *resolver
	log    *logrus.Logger
}

// Open prepares a database handle. It interns the schema's node types in
// the engine's dictionary, so persisted graphs resolve to the same ids
// across sessions.
func Open(ctx context.Context, eng engine.Engine, sch *schema.Schema, opts ...Option) (*DB, error) {
	db := &DB{
		eng:    eng,
		schema: sch,
		log:    logrus.New(),
	}
	for _, o := range opts {
		o(db)
	}

	res, err := newResolver(ctx, eng, sch)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.res = res

	return db, nil
}

// Schema returns the schema the database was opened with.
func (db *DB) Schema() *schema.Schema { return db.schema }

// GetNode materializes a node by id. It returns nil, nil when the id does
// not resolve to a node of a declared type.
func (db *DB) GetNode(ctx context.Context, id engine.NodeID) (*Node, error) {
	return db.materialize(ctx, id, "lookup")
}

// GetNodeByKey materializes a node by type and display key. It returns
// nil, nil when no such node exists.
func (db *DB) GetNodeByKey(ctx context.Context, def *schema.NodeDef, key string) (*Node, error) {
	typeID, ok := db.res.nodeTypeID(def)
	if !ok {
		return nil, fmt.Errorf("node type %q: %w", defName(def), ErrUnknownType)
	}

	id, ok, err := db.eng.NodeByKey(ctx, typeID, key)
	if err != nil {
		return nil, fmt.Errorf("looking up node %q: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	return db.materialize(ctx, id, "lookup")
}

// Stats reports store sizes.
func (db *DB) Stats(ctx context.Context) (engine.Stats, error) {
	stats, err := db.eng.Stats(ctx)
	if err != nil {
		return engine.Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return stats, nil
}

// Close closes the underlying engine.
func (db *DB) Close() error {
	return db.eng.Close()
}

// logQuery emits one debug line per query with a fresh query id.
func (db *DB) logQuery(op string, fields logrus.Fields) {
	fields["query_id"] = uuid.NewString()
	db.log.WithFields(fields).Debug(op)
}

func defName(def *schema.NodeDef) string {
	if def == nil {
		return "<nil>"
	}
	return def.Name
}
