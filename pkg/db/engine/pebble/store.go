// Package pebble implements the engine contract on top of CockroachDB's
// Pebble. The block cache is surfaced as an auxiliary resource so that the
// owner can release it after the database.
package pebble

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eigerco/ldb/pkg/db/engine"
)

type KVStore struct {
	db *pebble.DB
}

var _ engine.DB = (*KVStore)(nil)

func NewKVStore(path string, opts *engine.Options) (*KVStore, []engine.Resource, error) {
	if opts == nil {
		opts = engine.DefaultOptions()
	}

	cache := pebble.NewCache(int64(opts.BlockCacheSize))
	po := &pebble.Options{
		Cache:            cache,
		MemTableSize:     uint64(opts.WriteBufferSize),
		MaxOpenFiles:     opts.MaxOpenFiles,
		ErrorIfExists:    opts.ErrorIfExists,
		ErrorIfNotExists: !opts.CreateIfMissing,
		Logger:           logger{},
	}
	level := pebble.LevelOptions{BlockSize: int(opts.BlockSize)}
	if opts.BloomFilterBits > 0 {
		level.FilterPolicy = bloom.FilterPolicy(opts.BloomFilterBits)
	}
	// later levels inherit the L0 settings
	po.Levels = []pebble.LevelOptions{level}

	if opts.InMemory {
		if path != "" {
			cache.Unref()
			return nil, nil, ErrNoMemFS
		}
		po.FS = vfs.NewMem()
		po.ErrorIfNotExists = false
	}

	db, err := pebble.Open(path, po)
	if err != nil {
		cache.Unref()
		return nil, nil, errors.Wrapf(err, "open %q", path)
	}

	resources := []engine.Resource{{
		Kind:  "cache",
		Value: cache,
		Release: func() error {
			cache.Unref()
			return nil
		},
	}}
	return &KVStore{db: db}, resources, nil
}

func writeOptions(wo engine.WriteOptions) *pebble.WriteOptions {
	if wo.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func get(value []byte, closer interface{ Close() error }, err error) ([]byte, bool, error) {
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, true, nil
}

func (p *KVStore) Get(key []byte, _ engine.ReadOptions) ([]byte, bool, error) {
	return get(p.db.Get(key))
}

func (p *KVStore) Put(key, value []byte, wo engine.WriteOptions) error {
	return p.db.Set(key, value, writeOptions(wo))
}

func (p *KVStore) Delete(key []byte, wo engine.WriteOptions) error {
	return p.db.Delete(key, writeOptions(wo))
}

func (p *KVStore) Write(ops []engine.Op, wo engine.WriteOptions) error {
	if len(ops) == 0 {
		return nil
	}
	b := p.NewBatch()
	defer b.Close() //nolint:errcheck // close after commit is a no-op

	for _, op := range ops {
		var err error
		if op.Delete {
			err = b.Delete(op.Key)
		} else {
			err = b.Put(op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit(writeOptions(wo))
}

func (p *KVStore) ApproximateSizes(ranges []engine.Range) ([]uint64, error) {
	sizes := make([]uint64, len(ranges))
	for i, r := range ranges {
		end := r.Limit
		if end == nil {
			var err error
			if end, err = p.upperBound(); err != nil {
				return nil, err
			}
		}
		if end == nil || (r.Start != nil && string(r.Start) >= string(end)) {
			continue
		}
		start := r.Start
		if start == nil {
			start = []byte{}
		}
		n, err := p.db.EstimateDiskUsage(start, end)
		if err != nil {
			return nil, err
		}
		sizes[i] = n
	}
	return sizes, nil
}

func (p *KVStore) CompactRange(r engine.Range) error {
	start, end := r.Start, r.Limit
	if start == nil {
		start = []byte{}
	}
	if end == nil {
		var err error
		if end, err = p.upperBound(); err != nil {
			return err
		}
		if end == nil {
			return nil
		}
	}
	if string(start) >= string(end) {
		return nil
	}
	return p.db.Compact(start, end, true)
}

// upperBound returns a key strictly greater than every stored key, or nil
// when the store is empty.
func (p *KVStore) upperBound() ([]byte, error) {
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, iter.Error()
	}
	return append(append([]byte{}, iter.Key()...), 0x00), nil
}

func (p *KVStore) Close() error {
	return p.db.Close()
}
