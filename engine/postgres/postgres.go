// Package postgres implements the storage engine on PostgreSQL.
//
// Type and key names are interned into dictionary tables; nodes, properties
// and edges live in plain relational tables carrying the indexes the
// neighbor scans need. Property values are opaque msgpack blobs. Neighbor
// lists are ordered by (edge type, neighbor id), the same key order the
// badger engine produces. The schema is applied on Open from embedded goose
// migrations.
package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/engine/postgres/migrations"
	"github.com/trellisdb/trellis/internal/dbpool"
)

// defaultQueryTimeout bounds every database round trip.
const defaultQueryTimeout = 30 * time.Second

// Config controls how the engine connects to PostgreSQL.
type Config struct {
	// URL is the PostgreSQL connection string.
	URL string

	// MaxConns caps the connection pool size. Zero selects the dbpool
	// default.
	MaxConns int32

	// Logger receives engine log output. Nil selects the standard logrus
	// logger.
	Logger *logrus.Logger
}

// Engine stores the graph in PostgreSQL. All methods are safe for concurrent
// use; concurrency control is the database's.
type Engine struct {
	pool   *dbpool.Pool
	log    *logrus.Logger
	closed atomic.Bool
}

var _ engine.Engine = (*Engine)(nil)

// Open connects to PostgreSQL, applies pending schema migrations and returns
// a ready engine.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	pool, err := dbpool.NewPool(ctx, cfg.URL, cfg.MaxConns)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, pool, log, migrations.FS); err != nil {
		pool.Close()

		return nil, err
	}

	log.Info("postgres engine opened")

	return &Engine{pool: pool, log: log}, nil
}

// Close releases the connection pool. Close is idempotent; operations after
// Close return ErrClosed.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}

	e.pool.Close()

	return nil
}

// withTimeout derives the bounded context every public method runs under.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction.
func (e *Engine) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (e *Engine) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}
