package pebble

import "github.com/cockroachdb/errors"

var (
	ErrBatchDone = errors.New("pebble: batch already committed or closed")
	ErrNoMemFS   = errors.New("pebble: path must be empty for in-memory stores")
)

const (
	ErrInIteratorCreation = "pebble: failed to create iterator: %w"
	ErrInSnapshotRead     = "pebble: snapshot read: %w"
)
