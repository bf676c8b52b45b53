package engine

import "errors"

// Sentinel errors for entity lookups.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
)

// ErrDuplicateKey indicates a node key collision within a node type.
var ErrDuplicateKey = errors.New("duplicate node key")

// ErrClosed indicates an operation on an engine that has been closed.
var ErrClosed = errors.New("engine is closed")
