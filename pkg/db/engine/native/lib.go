package native

import (
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// LibraryEnv overrides the shared library searched for at load time.
const LibraryEnv = "LDB_LIBLEVELDB"

// Note: C handles are passed as uintptr; Go buffers as *byte so the runtime
// keeps them alive and in place for the duration of the call.
var (
	leveldbOpen  func(options uintptr, name string, errptr *unsafe.Pointer) uintptr
	leveldbClose func(db uintptr)
	leveldbPut   func(db, wopts uintptr, key *byte, keylen uintptr, val *byte, vallen uintptr, errptr *unsafe.Pointer)
	leveldbDel   func(db, wopts uintptr, key *byte, keylen uintptr, errptr *unsafe.Pointer)
	leveldbWrite func(db, wopts, batch uintptr, errptr *unsafe.Pointer)
	leveldbGet   func(db, ropts uintptr, key *byte, keylen uintptr, vallen *uintptr, errptr *unsafe.Pointer) unsafe.Pointer
	leveldbFree  func(ptr unsafe.Pointer)

	leveldbCreateIterator  func(db, ropts uintptr) uintptr
	leveldbCreateSnapshot  func(db uintptr) uintptr
	leveldbReleaseSnapshot func(db, snapshot uintptr)
	leveldbApproxSizes     func(db uintptr, n int32, starts *uintptr, startLens *uintptr, limits *uintptr, limitLens *uintptr, sizes *uint64)
	leveldbCompactRange    func(db uintptr, start *byte, startLen uintptr, limit *byte, limitLen uintptr)

	leveldbIterDestroy     func(it uintptr)
	leveldbIterValid       func(it uintptr) uint8
	leveldbIterSeekToFirst func(it uintptr)
	leveldbIterSeekToLast  func(it uintptr)
	leveldbIterSeek        func(it uintptr, key *byte, keylen uintptr)
	leveldbIterNext        func(it uintptr)
	leveldbIterPrev        func(it uintptr)
	leveldbIterKey         func(it uintptr, keylen *uintptr) unsafe.Pointer
	leveldbIterValue       func(it uintptr, vallen *uintptr) unsafe.Pointer
	leveldbIterGetError    func(it uintptr, errptr *unsafe.Pointer)

	leveldbWriteBatchCreate  func() uintptr
	leveldbWriteBatchDestroy func(b uintptr)
	leveldbWriteBatchPut     func(b uintptr, key *byte, keylen uintptr, val *byte, vallen uintptr)
	leveldbWriteBatchDelete  func(b uintptr, key *byte, keylen uintptr)

	leveldbOptionsCreate             func() uintptr
	leveldbOptionsDestroy            func(o uintptr)
	leveldbOptionsSetCreateIfMissing func(o uintptr, v uint8)
	leveldbOptionsSetErrorIfExists   func(o uintptr, v uint8)
	leveldbOptionsSetParanoidChecks  func(o uintptr, v uint8)
	leveldbOptionsSetWriteBufferSize func(o uintptr, size uintptr)
	leveldbOptionsSetMaxOpenFiles    func(o uintptr, n int32)
	leveldbOptionsSetBlockSize       func(o uintptr, size uintptr)
	leveldbOptionsSetCache           func(o uintptr, cache uintptr)
	leveldbOptionsSetFilterPolicy    func(o uintptr, policy uintptr)

	leveldbReadOptionsCreate             func() uintptr
	leveldbReadOptionsDestroy            func(o uintptr)
	leveldbReadOptionsSetVerifyChecksums func(o uintptr, v uint8)
	leveldbReadOptionsSetFillCache       func(o uintptr, v uint8)
	leveldbReadOptionsSetSnapshot        func(o uintptr, snapshot uintptr)

	leveldbWriteOptionsCreate  func() uintptr
	leveldbWriteOptionsDestroy func(o uintptr)
	leveldbWriteOptionsSetSync func(o uintptr, v uint8)

	leveldbFilterPolicyCreateBloom func(bitsPerKey int32) uintptr
	leveldbFilterPolicyDestroy     func(p uintptr)
	leveldbCacheCreateLRU          func(capacity uintptr) uintptr
	leveldbCacheDestroy            func(c uintptr)

	leveldbMajorVersion func() int32
	leveldbMinorVersion func() int32
)

var symbols = []struct {
	fptr any
	name string
}{
	{&leveldbOpen, "leveldb_open"},
	{&leveldbClose, "leveldb_close"},
	{&leveldbPut, "leveldb_put"},
	{&leveldbDel, "leveldb_delete"},
	{&leveldbWrite, "leveldb_write"},
	{&leveldbGet, "leveldb_get"},
	{&leveldbFree, "leveldb_free"},
	{&leveldbCreateIterator, "leveldb_create_iterator"},
	{&leveldbCreateSnapshot, "leveldb_create_snapshot"},
	{&leveldbReleaseSnapshot, "leveldb_release_snapshot"},
	{&leveldbApproxSizes, "leveldb_approximate_sizes"},
	{&leveldbCompactRange, "leveldb_compact_range"},
	{&leveldbIterDestroy, "leveldb_iter_destroy"},
	{&leveldbIterValid, "leveldb_iter_valid"},
	{&leveldbIterSeekToFirst, "leveldb_iter_seek_to_first"},
	{&leveldbIterSeekToLast, "leveldb_iter_seek_to_last"},
	{&leveldbIterSeek, "leveldb_iter_seek"},
	{&leveldbIterNext, "leveldb_iter_next"},
	{&leveldbIterPrev, "leveldb_iter_prev"},
	{&leveldbIterKey, "leveldb_iter_key"},
	{&leveldbIterValue, "leveldb_iter_value"},
	{&leveldbIterGetError, "leveldb_iter_get_error"},
	{&leveldbWriteBatchCreate, "leveldb_writebatch_create"},
	{&leveldbWriteBatchDestroy, "leveldb_writebatch_destroy"},
	{&leveldbWriteBatchPut, "leveldb_writebatch_put"},
	{&leveldbWriteBatchDelete, "leveldb_writebatch_delete"},
	{&leveldbOptionsCreate, "leveldb_options_create"},
	{&leveldbOptionsDestroy, "leveldb_options_destroy"},
	{&leveldbOptionsSetCreateIfMissing, "leveldb_options_set_create_if_missing"},
	{&leveldbOptionsSetErrorIfExists, "leveldb_options_set_error_if_exists"},
	{&leveldbOptionsSetParanoidChecks, "leveldb_options_set_paranoid_checks"},
	{&leveldbOptionsSetWriteBufferSize, "leveldb_options_set_write_buffer_size"},
	{&leveldbOptionsSetMaxOpenFiles, "leveldb_options_set_max_open_files"},
	{&leveldbOptionsSetBlockSize, "leveldb_options_set_block_size"},
	{&leveldbOptionsSetCache, "leveldb_options_set_cache"},
	{&leveldbOptionsSetFilterPolicy, "leveldb_options_set_filter_policy"},
	{&leveldbReadOptionsCreate, "leveldb_readoptions_create"},
	{&leveldbReadOptionsDestroy, "leveldb_readoptions_destroy"},
	{&leveldbReadOptionsSetVerifyChecksums, "leveldb_readoptions_set_verify_checksums"},
	{&leveldbReadOptionsSetFillCache, "leveldb_readoptions_set_fill_cache"},
	{&leveldbReadOptionsSetSnapshot, "leveldb_readoptions_set_snapshot"},
	{&leveldbWriteOptionsCreate, "leveldb_writeoptions_create"},
	{&leveldbWriteOptionsDestroy, "leveldb_writeoptions_destroy"},
	{&leveldbWriteOptionsSetSync, "leveldb_writeoptions_set_sync"},
	{&leveldbFilterPolicyCreateBloom, "leveldb_filterpolicy_create_bloom"},
	{&leveldbFilterPolicyDestroy, "leveldb_filterpolicy_destroy"},
	{&leveldbCacheCreateLRU, "leveldb_cache_create_lru"},
	{&leveldbCacheDestroy, "leveldb_cache_destroy"},
	{&leveldbMajorVersion, "leveldb_major_version"},
	{&leveldbMinorVersion, "leveldb_minor_version"},
}

var (
	loadOnce sync.Once
	loadErr  error
)

// Load opens libleveldb and binds the C API. It is safe to call repeatedly;
// only the first call does any work.
func Load() error {
	loadOnce.Do(func() {
		loadErr = load()
	})
	return loadErr
}

func libraryCandidates() []string {
	if name := os.Getenv(LibraryEnv); name != "" {
		return []string{name}
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"libleveldb.1.dylib",
			"libleveldb.dylib",
			"/opt/homebrew/lib/libleveldb.dylib",
			"/usr/local/lib/libleveldb.dylib",
		}
	default:
		return []string{"libleveldb.so.1", "libleveldb.so"}
	}
}

func load() error {
	var errs error
	for _, name := range libraryCandidates() {
		lib, err := dlopen(name)
		if err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		for _, s := range symbols {
			if err := bind(lib, s.fptr, s.name); err != nil {
				return errors.Wrapf(err, "native: %s", name)
			}
		}
		return nil
	}
	return errors.Wrap(errs, "native: libleveldb not found")
}

// Version reports the major and minor version of the loaded library.
func Version() (major, minor int, err error) {
	if err := Load(); err != nil {
		return 0, 0, err
	}
	return int(leveldbMajorVersion()), int(leveldbMinorVersion()), nil
}

var empty byte

// bytePtr returns a pointer to the first element of b. For empty slices it
// returns a dummy non-nil pointer; the C API reads zero bytes from it.
func bytePtr(b []byte) *byte {
	if len(b) == 0 {
		return &empty
	}
	return &b[0]
}

// optPtr is bytePtr except that nil maps to NULL, which the C API reads as
// an open bound.
func optPtr(b []byte) *byte {
	if b == nil {
		return nil
	}
	return bytePtr(b)
}

func cbool(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// takeError converts a C error string into a Go error and frees it.
func takeError(errp unsafe.Pointer) error {
	if errp == nil {
		return nil
	}
	n := 0
	for *(*byte)(unsafe.Add(errp, n)) != 0 {
		n++
	}
	msg := string(unsafe.Slice((*byte)(errp), n))
	leveldbFree(errp)
	return errors.New(msg)
}

// view exposes C memory as a byte slice without copying.
func view(p unsafe.Pointer, n uintptr) []byte {
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}
