package trellis

import "errors"

// Sentinel errors for query construction.
var (
	// ErrNoTarget is returned by path query terminals when no target was set.
	ErrNoTarget = errors.New("path query has no target")
)

// Sentinel errors for schema validation on writes.
var (
	ErrUnknownType  = errors.New("type not declared in schema")
	ErrUnknownProp  = errors.New("property not declared on node type")
	ErrKindMismatch = errors.New("property value kind mismatch")
)
