package trellis

import "github.com/sirupsen/logrus"

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for query debug logging. The default
// logger logs at info level, which silences per-query output.
func WithLogger(log *logrus.Logger) Option {
	return func(db *DB) { db.log = log }
}
