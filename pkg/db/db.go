// Package db is a client for ordered, embedded key-value engines of the
// LevelDB family.
//
// A DB handle binds an engine, an optional key prefix and default read and
// write options. Scope derives handles that see only the keys under a
// prefix; Snapshot derives read-only handles over a point-in-time view.
// Engine resources (database, block cache, filter policy, snapshots and
// iterators) are tracked as a dependency graph: closing the database first
// closes every snapshot and iterator still open on it.
package db

import (
	"iter"

	"github.com/cockroachdb/errors"

	"github.com/eigerco/ldb/pkg/db/engine"
	"github.com/eigerco/ldb/pkg/db/engine/memory"
)

type DB struct {
	a        *adapter
	prefix   []byte
	defaults Defaults
	// owner handles release the adapter on Close; scoped views never do.
	owner bool
}

// Open opens the database at path with the engine named in opts. A nil opts
// means DefaultOptions.
func Open(path string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	a, err := openAdapter(opts.Engine, path, &opts.Options)
	if err != nil {
		return nil, err
	}
	return &DB{a: a, defaults: opts.Defaults, owner: true}, nil
}

// OpenMemory opens an empty database held in memory.
func OpenMemory() (*DB, error) {
	opts := DefaultOptions()
	opts.Engine = memory.Name
	return Open("", opts)
}

// Prefix returns the cumulative prefix of the handle.
func (d *DB) Prefix() []byte {
	return append([]byte{}, d.prefix...)
}

func (d *DB) Defaults() Defaults {
	return d.defaults
}

func (d *DB) key(k []byte) []byte {
	if len(d.prefix) == 0 {
		return k
	}
	return join(d.prefix, k)
}

// Get returns the value of key. found is false when the key does not exist,
// which is not an error; an existing empty value has found == true.
func (d *DB) Get(key []byte, opts ...ReadOption) (value []byte, found bool, err error) {
	return d.a.get(d.key(key), d.defaults.read(opts))
}

func (d *DB) Has(key []byte, opts ...ReadOption) (bool, error) {
	_, found, err := d.Get(key, opts...)
	return found, err
}

func (d *DB) Put(key, value []byte, opts ...WriteOption) error {
	return d.a.put(d.key(key), value, d.defaults.write(opts))
}

func (d *DB) Delete(key []byte, opts ...WriteOption) error {
	return d.a.delete(d.key(key), d.defaults.write(opts))
}

// Write applies every operation of b atomically. b is left untouched.
func (d *DB) Write(b *WriteBatch, opts ...WriteOption) error {
	prefix := d.prefix
	if b.bound {
		prefix = nil
	}
	return d.a.apply(b.ops(prefix), d.defaults.write(opts))
}

// NewBatch returns a batch bound to this handle's prefix.
func (d *DB) NewBatch() *WriteBatch {
	b := NewWriteBatch()
	b.prefix = d.Prefix()
	b.bound = true
	return b
}

// Iterator returns an iterator over the keys under the handle prefix
// followed by prefix. The caller must Close it.
func (d *DB) Iterator(prefix []byte, opts ...ReadOption) (*Iterator, error) {
	cur, err := d.a.iterator(d.defaults.read(opts))
	if err != nil {
		return nil, err
	}
	return newIterator(cur, join(d.prefix, prefix)), nil
}

// Range calls fn for each key/value pair within b, in key order, until fn
// asks to stop or fails. Keys are relative to the handle prefix. Slices
// passed to fn are owned by the caller.
func (d *DB) Range(b Bounds, fn func(key, value []byte) (stop bool, err error), opts ...ReadOption) error {
	it, err := d.Iterator(nil, opts...)
	if err != nil {
		return err
	}
	return scan(it, b, fn)
}

// Keys calls fn for every key under prefix, relative to the handle prefix,
// in key order until fn asks to stop or fails. Keys passed to fn have both
// prefixes stripped.
func (d *DB) Keys(prefix []byte, fn func(key []byte) (stop bool, err error), opts ...ReadOption) error {
	return d.walk(prefix, func(it *Iterator) iter.Seq[[]byte] { return it.Keys() }, fn, opts)
}

// Values is Keys for the values.
func (d *DB) Values(prefix []byte, fn func(value []byte) (stop bool, err error), opts ...ReadOption) error {
	return d.walk(prefix, func(it *Iterator) iter.Seq[[]byte] { return it.Values() }, fn, opts)
}

func (d *DB) walk(prefix []byte, seq func(*Iterator) iter.Seq[[]byte], fn func([]byte) (bool, error), opts []ReadOption) (err error) {
	it, err := d.Iterator(prefix, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, it.Close())
	}()
	if err := it.SeekToFirst(); err != nil {
		return err
	}
	for v := range seq(it) {
		stop, err := fn(v)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return it.Err()
}

// Scope returns a view of the keys under prefix, relative to this handle.
// It shares the database; closing it has no effect.
func (d *DB) Scope(prefix []byte, opts ...DefaultsOption) *DB {
	return &DB{
		a:        d.a,
		prefix:   join(d.prefix, prefix),
		defaults: d.defaults.with(opts),
	}
}

// Snapshot returns a read-only handle over the current state of the
// database, with the same prefix. Close it to release the snapshot.
// The snapshot of a snapshot shares its view and does not need closing.
func (d *DB) Snapshot(opts ...DefaultsOption) (*DB, error) {
	if d.a.readOnly() {
		return &DB{a: d.a, prefix: d.prefix, defaults: d.defaults.with(opts)}, nil
	}
	a, err := d.a.snapshot()
	if err != nil {
		return nil, err
	}
	return &DB{a: a, prefix: d.prefix, defaults: d.defaults.with(opts), owner: true}, nil
}

// ReadOnly reports whether the handle is bound to a snapshot.
func (d *DB) ReadOnly() bool {
	return d.a.readOnly()
}

// bounds maps a range relative to the handle prefix onto the engine
// keyspace; nil bounds stop at the edges of the prefix.
func (d *DB) bounds(start, limit []byte) engine.Range {
	r := engine.Range{Start: d.key(start), Limit: d.key(limit)}
	if limit == nil {
		r.Limit = Successor(d.prefix)
	}
	return r
}

// ApproximateDiskSizes estimates the file system space used by each range.
func (d *DB) ApproximateDiskSizes(ranges ...engine.Range) ([]uint64, error) {
	rs := make([]engine.Range, len(ranges))
	for i, r := range ranges {
		rs[i] = d.bounds(r.Start, r.Limit)
	}
	return d.a.approximateSizes(rs)
}

// CompactRange compacts the underlying storage for [start, limit).
func (d *DB) CompactRange(start, limit []byte) error {
	return d.a.compactRange(d.bounds(start, limit))
}

// Close closes the database, or for a snapshot handle releases the
// snapshot. Iterators and snapshots still open on the database are closed
// first. Scoped views do not close anything. Close is idempotent.
func (d *DB) Close() error {
	if !d.owner {
		return nil
	}
	return d.a.close()
}
