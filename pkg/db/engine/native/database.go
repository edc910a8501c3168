// Package native binds the reference C++ LevelDB through its C API, loaded
// at runtime with purego. No cgo toolchain is needed to build it; the shared
// library only has to be present when a database is opened.
package native

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/eigerco/ldb/pkg/db/engine"
)

const Name = "native"

var ErrInMemory = errors.New("native: in-memory databases are not supported by the C API")

type DB struct {
	ptr uintptr
	reader
}

var _ engine.DB = (*DB)(nil)

// Open opens a database through libleveldb. The bloom filter policy and the
// LRU block cache are returned as resources: they must outlive the database.
func Open(path string, opts *engine.Options) (*DB, []engine.Resource, error) {
	if err := Load(); err != nil {
		return nil, nil, err
	}
	if opts == nil {
		opts = engine.DefaultOptions()
	}
	if opts.InMemory {
		return nil, nil, ErrInMemory
	}

	o := leveldbOptionsCreate()
	defer leveldbOptionsDestroy(o)

	leveldbOptionsSetCreateIfMissing(o, cbool(opts.CreateIfMissing))
	leveldbOptionsSetErrorIfExists(o, cbool(opts.ErrorIfExists))
	leveldbOptionsSetParanoidChecks(o, cbool(opts.ParanoidChecks))
	if opts.WriteBufferSize > 0 {
		leveldbOptionsSetWriteBufferSize(o, uintptr(opts.WriteBufferSize))
	}
	if opts.MaxOpenFiles > 0 {
		leveldbOptionsSetMaxOpenFiles(o, int32(opts.MaxOpenFiles))
	}
	if opts.BlockSize > 0 {
		leveldbOptionsSetBlockSize(o, uintptr(opts.BlockSize))
	}

	var resources []engine.Resource
	release := func() {
		for i := len(resources) - 1; i >= 0; i-- {
			_ = resources[i].Release()
		}
	}
	if opts.BloomFilterBits > 0 {
		policy := leveldbFilterPolicyCreateBloom(int32(opts.BloomFilterBits))
		leveldbOptionsSetFilterPolicy(o, policy)
		resources = append(resources, engine.Resource{
			Kind:  "filter_policy",
			Value: policy,
			Release: func() error {
				leveldbFilterPolicyDestroy(policy)
				return nil
			},
		})
	}
	if opts.BlockCacheSize > 0 {
		cache := leveldbCacheCreateLRU(uintptr(opts.BlockCacheSize))
		leveldbOptionsSetCache(o, cache)
		resources = append(resources, engine.Resource{
			Kind:  "cache",
			Value: cache,
			Release: func() error {
				leveldbCacheDestroy(cache)
				return nil
			},
		})
	}

	var errp unsafe.Pointer
	ptr := leveldbOpen(o, path, &errp)
	if err := takeError(errp); err != nil {
		release()
		return nil, nil, errors.Wrapf(err, "open %q", path)
	}
	return &DB{ptr: ptr, reader: reader{db: ptr}}, resources, nil
}

func (d *DB) Put(key, value []byte, wo engine.WriteOptions) error {
	o := writeOptions(wo)
	defer leveldbWriteOptionsDestroy(o)

	var errp unsafe.Pointer
	leveldbPut(d.ptr, o, bytePtr(key), uintptr(len(key)), bytePtr(value), uintptr(len(value)), &errp)
	runtime.KeepAlive(key)
	runtime.KeepAlive(value)
	return takeError(errp)
}

func (d *DB) Delete(key []byte, wo engine.WriteOptions) error {
	o := writeOptions(wo)
	defer leveldbWriteOptionsDestroy(o)

	var errp unsafe.Pointer
	leveldbDel(d.ptr, o, bytePtr(key), uintptr(len(key)), &errp)
	runtime.KeepAlive(key)
	return takeError(errp)
}

func (d *DB) Write(ops []engine.Op, wo engine.WriteOptions) error {
	if len(ops) == 0 {
		return nil
	}
	b := leveldbWriteBatchCreate()
	defer leveldbWriteBatchDestroy(b)

	// the batch copies keys and values as they are added
	for _, op := range ops {
		if op.Delete {
			leveldbWriteBatchDelete(b, bytePtr(op.Key), uintptr(len(op.Key)))
		} else {
			leveldbWriteBatchPut(b, bytePtr(op.Key), uintptr(len(op.Key)), bytePtr(op.Value), uintptr(len(op.Value)))
		}
	}
	runtime.KeepAlive(ops)

	o := writeOptions(wo)
	defer leveldbWriteOptionsDestroy(o)

	var errp unsafe.Pointer
	leveldbWrite(d.ptr, o, b, &errp)
	return takeError(errp)
}

func (d *DB) NewSnapshot() (engine.Snapshot, error) {
	snap := leveldbCreateSnapshot(d.ptr)
	return &Snapshot{reader{db: d.ptr, snap: snap}}, nil
}

func (d *DB) ApproximateSizes(ranges []engine.Range) ([]uint64, error) {
	n := len(ranges)
	if n == 0 {
		return []uint64{}, nil
	}
	starts := make([]uintptr, n)
	startLens := make([]uintptr, n)
	limits := make([]uintptr, n)
	limitLens := make([]uintptr, n)
	sizes := make([]uint64, n)
	keep := make([][]byte, 0, n)
	for i, r := range ranges {
		limit := r.Limit
		if limit == nil {
			// a nil limit would read as the empty key
			limit = upperBound(d)
		}
		starts[i] = uintptr(unsafe.Pointer(bytePtr(r.Start)))
		startLens[i] = uintptr(len(r.Start))
		limits[i] = uintptr(unsafe.Pointer(bytePtr(limit)))
		limitLens[i] = uintptr(len(limit))
		keep = append(keep, limit)
	}
	leveldbApproxSizes(d.ptr, int32(n), &starts[0], &startLens[0], &limits[0], &limitLens[0], &sizes[0])
	runtime.KeepAlive(ranges)
	runtime.KeepAlive(keep)
	return sizes, nil
}

func (d *DB) CompactRange(r engine.Range) error {
	leveldbCompactRange(d.ptr, optPtr(r.Start), uintptr(len(r.Start)), optPtr(r.Limit), uintptr(len(r.Limit)))
	runtime.KeepAlive(r)
	return nil
}

func (d *DB) Close() error {
	leveldbClose(d.ptr)
	return nil
}

// upperBound returns a key strictly greater than every stored key.
func upperBound(d *DB) []byte {
	it, _ := d.NewIterator(engine.ReadOptions{})
	defer it.Release()
	it.SeekToLast()
	if !it.Valid() {
		return []byte{}
	}
	return append(append([]byte{}, it.Key()...), 0x00)
}

func writeOptions(wo engine.WriteOptions) uintptr {
	o := leveldbWriteOptionsCreate()
	leveldbWriteOptionsSetSync(o, cbool(wo.Sync))
	return o
}

// reader serves point reads and iterators, optionally pinned to a snapshot.
type reader struct {
	db   uintptr
	snap uintptr
}

func (r reader) readOptions(ro engine.ReadOptions) uintptr {
	o := leveldbReadOptionsCreate()
	leveldbReadOptionsSetVerifyChecksums(o, cbool(ro.VerifyChecksums))
	leveldbReadOptionsSetFillCache(o, cbool(ro.FillCache))
	if r.snap != 0 {
		leveldbReadOptionsSetSnapshot(o, r.snap)
	}
	return o
}

func (r reader) Get(key []byte, ro engine.ReadOptions) ([]byte, bool, error) {
	o := r.readOptions(ro)
	defer leveldbReadOptionsDestroy(o)

	var (
		n    uintptr
		errp unsafe.Pointer
	)
	p := leveldbGet(r.db, o, bytePtr(key), uintptr(len(key)), &n, &errp)
	runtime.KeepAlive(key)
	if err := takeError(errp); err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, nil
	}
	value := make([]byte, n)
	copy(value, view(p, n))
	leveldbFree(p)
	return value, true, nil
}

func (r reader) NewIterator(ro engine.ReadOptions) (engine.Iterator, error) {
	o := r.readOptions(ro)
	defer leveldbReadOptionsDestroy(o)
	// the iterator copies the read options it needs
	return &Iterator{ptr: leveldbCreateIterator(r.db, o)}, nil
}

type Snapshot struct {
	reader
}

func (s *Snapshot) Release() error {
	leveldbReleaseSnapshot(s.db, s.snap)
	return nil
}

type Iterator struct {
	ptr uintptr
}

func (it *Iterator) Valid() bool {
	return leveldbIterValid(it.ptr) != 0
}

// Key returns a view of C memory, valid until the iterator moves.
func (it *Iterator) Key() []byte {
	var n uintptr
	return view(leveldbIterKey(it.ptr, &n), n)
}

func (it *Iterator) Value() []byte {
	var n uintptr
	return view(leveldbIterValue(it.ptr, &n), n)
}

func (it *Iterator) Seek(key []byte) {
	leveldbIterSeek(it.ptr, bytePtr(key), uintptr(len(key)))
	runtime.KeepAlive(key)
}

func (it *Iterator) SeekToFirst() {
	leveldbIterSeekToFirst(it.ptr)
}

func (it *Iterator) SeekToLast() {
	leveldbIterSeekToLast(it.ptr)
}

func (it *Iterator) Next() {
	leveldbIterNext(it.ptr)
}

func (it *Iterator) Prev() {
	leveldbIterPrev(it.ptr)
}

func (it *Iterator) Error() error {
	var errp unsafe.Pointer
	leveldbIterGetError(it.ptr, &errp)
	return takeError(errp)
}

func (it *Iterator) Release() error {
	leveldbIterDestroy(it.ptr)
	return nil
}

type driver struct{}

func (driver) Open(path string, opts *engine.Options) (engine.DB, []engine.Resource, error) {
	db, resources, err := Open(path, opts)
	if err != nil {
		return nil, nil, err
	}
	return db, resources, nil
}

func init() {
	engine.Register(Name, driver{})
}
