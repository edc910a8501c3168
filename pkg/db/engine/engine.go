// Package engine defines the contract a storage engine must satisfy to sit
// underneath package db, and a registry of named engine drivers.
package engine

// Reader is the read side shared by a database and its snapshots.
type Reader interface {
	// Get returns the value stored under key. found is false when the key is
	// absent; an empty value with found == true is a stored empty value.
	Get(key []byte, ro ReadOptions) (value []byte, found bool, err error)
	// NewIterator returns an unpositioned iterator over a point-in-time view.
	NewIterator(ro ReadOptions) (Iterator, error)
}

// DB represents an open storage engine.
type DB interface {
	Reader
	Put(key, value []byte, wo WriteOptions) error
	Delete(key []byte, wo WriteOptions) error
	// Write applies every op atomically with a single durability decision.
	Write(ops []Op, wo WriteOptions) error
	NewSnapshot() (Snapshot, error)
	ApproximateSizes(ranges []Range) ([]uint64, error)
	CompactRange(r Range) error
	Close() error
}

// Snapshot is a consistent read-only view. Release must be called once.
type Snapshot interface {
	Reader
	Release() error
}

// Iterator is a raw bidirectional cursor. Key and Value are only meaningful
// while Valid; the returned slices may be reused by the next move.
// After any positioning call Error reports a failure encountered by the engine.
type Iterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Seek(key []byte)
	SeekToFirst()
	SeekToLast()
	Next()
	Prev()
	Error() error
	Release() error
}

// Op is one mutation of a batch write. Value is ignored for deletes.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Range is a key span [Start, Limit). A nil bound is open ended.
type Range struct {
	Start []byte
	Limit []byte
}

type ReadOptions struct {
	VerifyChecksums bool
	FillCache       bool
}

type WriteOptions struct {
	Sync bool
}

// Resource is an auxiliary native object a DB depends on, such as a block
// cache or a filter policy. The DB must be closed before Release is called.
type Resource struct {
	Kind    string
	Value   any
	Release func() error
}
