// Package migrations embeds the SQL migration files for the postgres engine.
package migrations

import "embed"

// FS contains all SQL migration files.
//
//go:embed *.sql
var FS embed.FS
