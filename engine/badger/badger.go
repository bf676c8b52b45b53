// Package badger implements the storage engine on BadgerDB, an embedded
// key-value store. Nodes, properties, adjacency and the interned dictionaries
// map onto prefixed keys (see keys.go); reads run on MVCC snapshots and are
// fully concurrent, while writers are serialized by a mutex so sequence and
// counter updates never conflict.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/trellisdb/trellis/engine"
)

// Config controls how a badger engine is opened.
type Config struct {
	// Dir is the directory for database files, created if missing. Required
	// unless InMemory is set.
	Dir string

	// InMemory keeps the whole store in RAM. Data is lost on Close.
	InMemory bool

	// SyncWrites syncs every commit to disk before acknowledging it.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection on a
	// persistent database. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum share of discardable data before a GC
	// pass rewrites a value log file. Zero means 0.5.
	GCDiscardRatio float64

	// Logger receives engine lifecycle messages and badger's internal
	// logging. Nil silences both.
	Logger *logrus.Logger
}

// DefaultConfig returns a production configuration for a database under dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// InMemoryConfig returns a configuration suited to tests: in-memory, no
// syncing, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Engine is the badger-backed storage engine.
type Engine struct {
	db  *badger.DB
	log *logrus.Logger

	// writeMu serializes all mutating transactions.
	writeMu sync.Mutex

	closed atomic.Bool

	gcStop chan struct{}
	gcDone chan struct{}
}

var _ engine.Engine = (*Engine)(nil)

// Open opens or creates a badger-backed engine.
func Open(cfg Config) (*Engine, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("opening badger engine: dir is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}

	e := &Engine{db: db, log: cfg.Logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio == 0 {
			ratio = 0.5
		}
		e.gcStop = make(chan struct{})
		e.gcDone = make(chan struct{})
		go e.runGC(cfg.GCInterval, ratio)
	}

	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"dir":         cfg.Dir,
			"in_memory":   cfg.InMemory,
			"sync_writes": cfg.SyncWrites,
		}).Info("badger engine opened")
	}

	return e, nil
}

// Close implements engine.Engine. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}

	if e.gcStop != nil {
		close(e.gcStop)
		<-e.gcDone
	}
	return e.db.Close()
}

// update runs fn in a read-write transaction, committing on success. Callers
// must hold writeMu.
func (e *Engine) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := e.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// view runs fn in a read-only transaction.
func (e *Engine) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := e.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

func (e *Engine) runGC(interval time.Duration, ratio float64) {
	defer close(e.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.gcStop:
			return
		case <-ticker.C:
			err := e.db.RunValueLogGC(ratio)
			switch {
			case err == nil:
				if e.log != nil {
					e.log.Debug("badger value log GC rewrote a file")
				}
			case errors.Is(err, badger.ErrNoRewrite):
				// Nothing to collect.
			default:
				if e.log != nil {
					e.log.WithError(err).Warn("badger value log GC failed")
				}
			}
		}
	}
}

// badgerLogger adapts logrus to badger's internal Logger interface. Badger's
// info output is demoted to debug; it is chatty during compaction.
type badgerLogger struct {
	log *logrus.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }

func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }

func (l *badgerLogger) Infof(format string, args ...interface{}) { l.log.Debugf(format, args...) }

func (l *badgerLogger) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
