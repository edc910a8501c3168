// Package memory is a volatile engine backed by goleveldb's memdb skiplist.
// Iterators and snapshots take a private copy of the table, so they are
// point-in-time views at O(n) cost.
package memory

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"

	"github.com/eigerco/ldb/pkg/db/engine"
	"github.com/eigerco/ldb/pkg/db/engine/goleveldb"
)

const Name = "memory"

var ErrClosed = errors.New("memory engine closed")

const initialCapacity = 4 << 10

type DB struct {
	mu     sync.RWMutex
	table  *memdb.DB
	closed bool
}

var _ engine.DB = (*DB)(nil)

func New() *DB {
	return &DB{table: memdb.New(comparer.DefaultComparer, initialCapacity)}
}

func clone(src *memdb.DB) *memdb.DB {
	dst := memdb.New(comparer.DefaultComparer, max(src.Size(), initialCapacity))
	it := src.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		// memdb copies key and value into its own buffer
		_ = dst.Put(it.Key(), it.Value())
	}
	return dst
}

func get(table *memdb.DB, key []byte) ([]byte, bool, error) {
	v, err := table.Get(key)
	if errors.Is(err, memdb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return append([]byte{}, v...), true, nil
}

func (db *DB) Get(key []byte, _ engine.ReadOptions) ([]byte, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, false, ErrClosed
	}
	return get(db.table, key)
}

func (db *DB) NewIterator(_ engine.ReadOptions) (engine.Iterator, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return goleveldb.WrapIterator(clone(db.table).NewIterator(nil)), nil
}

func (db *DB) Put(key, value []byte, _ engine.WriteOptions) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return db.table.Put(key, value)
}

func (db *DB) Delete(key []byte, _ engine.WriteOptions) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return db.delete(key)
}

func (db *DB) delete(key []byte) error {
	if err := db.table.Delete(key); err != nil && !errors.Is(err, memdb.ErrNotFound) {
		return err
	}
	return nil
}

func (db *DB) Write(ops []engine.Op, _ engine.WriteOptions) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	for _, op := range ops {
		var err error
		if op.Delete {
			err = db.delete(op.Key)
		} else {
			err = db.table.Put(op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) NewSnapshot() (engine.Snapshot, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return &snapshot{table: clone(db.table)}, nil
}

// ApproximateSizes reports zero for every range; nothing is on disk.
func (db *DB) ApproximateSizes(ranges []engine.Range) ([]uint64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return make([]uint64, len(ranges)), nil
}

func (db *DB) CompactRange(engine.Range) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.table.Reset()
	return nil
}

type snapshot struct {
	table *memdb.DB
}

func (s *snapshot) Get(key []byte, _ engine.ReadOptions) ([]byte, bool, error) {
	return get(s.table, key)
}

// NewIterator iterates the snapshot table directly; it is never written.
func (s *snapshot) NewIterator(_ engine.ReadOptions) (engine.Iterator, error) {
	return goleveldb.WrapIterator(s.table.NewIterator(nil)), nil
}

func (s *snapshot) Release() error {
	s.table = memdb.New(comparer.DefaultComparer, 0)
	return nil
}

type driver struct{}

func (driver) Open(string, *engine.Options) (engine.DB, []engine.Resource, error) {
	return New(), nil, nil
}

func init() {
	engine.Register(Name, driver{})
}
