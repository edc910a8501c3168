// Package goleveldb implements the engine contract on top of
// github.com/syndtr/goleveldb.
package goleveldb

import (
	"github.com/cockroachdb/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/eigerco/ldb/pkg/db/engine"
)

type GoLevelDB struct {
	lvdb *leveldb.DB
}

var _ engine.DB = (*GoLevelDB)(nil)

// Open opens (or creates, per opts) a goleveldb database. The bloom filter,
// when enabled, is reported as an auxiliary resource.
func Open(path string, opts *engine.Options) (*GoLevelDB, []engine.Resource, error) {
	if opts == nil {
		opts = engine.DefaultOptions()
	}

	o := &opt.Options{
		BlockCacheCapacity:     int(opts.BlockCacheSize),
		BlockSize:              int(opts.BlockSize),
		WriteBuffer:            int(opts.WriteBufferSize),
		OpenFilesCacheCapacity: opts.MaxOpenFiles,
		ErrorIfMissing:         !opts.CreateIfMissing,
		ErrorIfExist:           opts.ErrorIfExists,
	}
	if opts.ParanoidChecks {
		o.Strict = opt.StrictAll
	}

	var resources []engine.Resource
	if opts.BloomFilterBits > 0 {
		f := filter.NewBloomFilter(opts.BloomFilterBits)
		o.Filter = f
		// goleveldb filters are plain Go values, nothing to free
		resources = append(resources, engine.Resource{Kind: "filter_policy", Value: f})
	}

	var (
		lvdb *leveldb.DB
		err  error
	)
	if opts.InMemory {
		o.ErrorIfMissing = false
		lvdb, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		lvdb, err = leveldb.OpenFile(path, o)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %q", path)
	}
	return &GoLevelDB{lvdb: lvdb}, resources, nil
}

func readOptions(ro engine.ReadOptions) *opt.ReadOptions {
	o := &opt.ReadOptions{DontFillCache: !ro.FillCache}
	if ro.VerifyChecksums {
		o.Strict = opt.StrictBlockChecksum
	}
	return o
}

func writeOptions(wo engine.WriteOptions) *opt.WriteOptions {
	return &opt.WriteOptions{Sync: wo.Sync}
}

func get(value []byte, err error) ([]byte, bool, error) {
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (db *GoLevelDB) Get(key []byte, ro engine.ReadOptions) ([]byte, bool, error) {
	return get(db.lvdb.Get(key, readOptions(ro)))
}

func (db *GoLevelDB) NewIterator(ro engine.ReadOptions) (engine.Iterator, error) {
	return WrapIterator(db.lvdb.NewIterator(nil, readOptions(ro))), nil
}

func (db *GoLevelDB) Put(key, value []byte, wo engine.WriteOptions) error {
	return db.lvdb.Put(key, value, writeOptions(wo))
}

func (db *GoLevelDB) Delete(key []byte, wo engine.WriteOptions) error {
	return db.lvdb.Delete(key, writeOptions(wo))
}

func (db *GoLevelDB) Write(ops []engine.Op, wo engine.WriteOptions) error {
	if len(ops) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, op := range ops {
		if op.Delete {
			batch.Delete(op.Key)
		} else {
			batch.Put(op.Key, op.Value)
		}
	}
	return db.lvdb.Write(batch, writeOptions(wo))
}

func (db *GoLevelDB) NewSnapshot() (engine.Snapshot, error) {
	snap, err := db.lvdb.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &Snapshot{snap: snap}, nil
}

func (db *GoLevelDB) ApproximateSizes(ranges []engine.Range) ([]uint64, error) {
	var upper []byte
	rs := make([]util.Range, len(ranges))
	for i, r := range ranges {
		rs[i] = util.Range{Start: r.Start, Limit: r.Limit}
		if r.Limit == nil {
			// SizeOf reads a nil limit as the smallest key
			if upper == nil {
				upper = db.upperBound()
			}
			rs[i].Limit = upper
		}
	}
	sizes, err := db.lvdb.SizeOf(rs)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(sizes))
	for i, s := range sizes {
		out[i] = uint64(s)
	}
	return out, nil
}

// upperBound returns a key strictly greater than every stored key.
func (db *GoLevelDB) upperBound() []byte {
	it := db.lvdb.NewIterator(nil, &opt.ReadOptions{DontFillCache: true})
	defer it.Release()
	if !it.Last() {
		return []byte{}
	}
	return append(append([]byte{}, it.Key()...), 0x00)
}

func (db *GoLevelDB) CompactRange(r engine.Range) error {
	return db.lvdb.CompactRange(util.Range{Start: r.Start, Limit: r.Limit})
}

func (db *GoLevelDB) Close() error {
	return db.lvdb.Close()
}

type Snapshot struct {
	snap *leveldb.Snapshot
}

var _ engine.Snapshot = (*Snapshot)(nil)

func (sp *Snapshot) Get(key []byte, ro engine.ReadOptions) ([]byte, bool, error) {
	return get(sp.snap.Get(key, readOptions(ro)))
}

func (sp *Snapshot) NewIterator(ro engine.ReadOptions) (engine.Iterator, error) {
	return WrapIterator(sp.snap.NewIterator(nil, readOptions(ro))), nil
}

func (sp *Snapshot) Release() error {
	sp.snap.Release()
	return nil
}
