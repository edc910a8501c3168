// Package enginetest is a behavioural suite every engine.DB implementation
// must pass. Engines call Run from their own tests.
package enginetest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/ldb/pkg/db/engine"
)

// Opener returns a fresh, empty database. It is responsible for closing it
// when the test ends.
type Opener func(t *testing.T) engine.DB

var (
	ro = engine.ReadOptions{FillCache: true}
	wo = engine.WriteOptions{}
)

func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db engine.DB)
	}{
		{"PutGetDelete", testPutGetDelete},
		{"EmptyValueAndBinaryKeys", testBinary},
		{"Write", testWrite},
		{"IteratorOrder", testIteratorOrder},
		{"IteratorSeek", testIteratorSeek},
		{"IteratorIsolation", testIteratorIsolation},
		{"Snapshot", testSnapshot},
		{"SizesAndCompaction", testSizesAndCompaction},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

// Dump renders the whole keyspace of r, one quoted key=value pair per line.
func Dump(t *testing.T, r engine.Reader) string {
	t.Helper()
	it, err := r.NewIterator(ro)
	require.NoError(t, err)
	defer func() { require.NoError(t, it.Release()) }()

	var sb strings.Builder
	for it.SeekToFirst(); it.Valid(); it.Next() {
		fmt.Fprintf(&sb, "%q=%q\n", it.Key(), it.Value())
	}
	require.NoError(t, it.Error())
	return sb.String()
}

// AssertKeyspace compares the keyspace of r with want (key, value, key, value...)
// and prints a unified diff on mismatch.
func AssertKeyspace(t *testing.T, r engine.Reader, want ...string) {
	t.Helper()
	require.Zero(t, len(want)%2, "want must hold key/value pairs")

	var sb strings.Builder
	for i := 0; i < len(want); i += 2 {
		fmt.Fprintf(&sb, "%q=%q\n", want[i], want[i+1])
	}
	expected, actual := sb.String(), Dump(t, r)
	if expected == actual {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	t.Errorf("keyspace mismatch:\n%s", diff)
}

func testPutGetDelete(t *testing.T, db engine.DB) {
	require.NoError(t, db.Put([]byte("a"), []byte("1"), wo))

	v, ok, err := db.Get([]byte("a"), ro)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, db.Put([]byte("a"), []byte("2"), wo))
	v, _, err = db.Get([]byte("a"), ro)
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	_, ok, err = db.Get([]byte("missing"), ro)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Delete([]byte("a"), wo))
	_, ok, err = db.Get([]byte("a"), ro)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting an absent key is not an error
	require.NoError(t, db.Delete([]byte("a"), wo))
}

func testBinary(t *testing.T, db engine.DB) {
	key := []byte{0x00, 0xff, 0x00}
	require.NoError(t, db.Put(key, []byte{}, wo))
	require.NoError(t, db.Put([]byte{0xff, 0xff}, []byte{0x00}, wo))

	v, ok, err := db.Get(key, ro)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)

	AssertKeyspace(t, db,
		"\x00\xff\x00", "",
		"\xff\xff", "\x00",
	)
}

func testWrite(t *testing.T, db engine.DB) {
	require.NoError(t, db.Put([]byte("stale"), []byte("x"), wo))
	require.NoError(t, db.Write([]engine.Op{
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("stale"), Delete: true},
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("c"), Delete: true},
		{Key: []byte("d"), Delete: true},
		{Key: []byte("d"), Value: []byte("4")},
	}, engine.WriteOptions{Sync: true}))

	AssertKeyspace(t, db,
		"a", "1",
		"b", "2",
		"d", "4",
	)

	require.NoError(t, db.Write(nil, wo))
}

func fill(t *testing.T, db engine.DB, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, db.Put([]byte(k), []byte("v"+k), wo))
	}
}

func testIteratorOrder(t *testing.T, db engine.DB) {
	fill(t, db, "c", "a", "b", "ab")

	it, err := db.NewIterator(ro)
	require.NoError(t, err)
	defer func() { require.NoError(t, it.Release()) }()

	assert.False(t, it.Valid())

	var forward []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		forward = append(forward, string(it.Key()))
	}
	assert.Equal(t, []string{"a", "ab", "b", "c"}, forward)

	var backward []string
	for it.SeekToLast(); it.Valid(); it.Prev() {
		backward = append(backward, string(it.Key()))
	}
	assert.Equal(t, []string{"c", "b", "ab", "a"}, backward)
	require.NoError(t, it.Error())
}

func testIteratorSeek(t *testing.T, db engine.DB) {
	fill(t, db, "b", "d", "f")

	it, err := db.NewIterator(ro)
	require.NoError(t, err)
	defer func() { require.NoError(t, it.Release()) }()

	it.Seek([]byte("d"))
	require.True(t, it.Valid())
	assert.Equal(t, "d", string(it.Key()))
	assert.Equal(t, "vd", string(it.Value()))

	it.Seek([]byte("c"))
	require.True(t, it.Valid())
	assert.Equal(t, "d", string(it.Key()))

	it.Seek([]byte("a"))
	require.True(t, it.Valid())
	assert.Equal(t, "b", string(it.Key()))

	it.Prev()
	assert.False(t, it.Valid())

	it.Seek([]byte("g"))
	assert.False(t, it.Valid())

	it.SeekToLast()
	require.True(t, it.Valid())
	assert.Equal(t, "f", string(it.Key()))
	it.Next()
	assert.False(t, it.Valid())
}

func testIteratorIsolation(t *testing.T, db engine.DB) {
	fill(t, db, "a", "b")

	it, err := db.NewIterator(ro)
	require.NoError(t, err)
	defer func() { require.NoError(t, it.Release()) }()

	fill(t, db, "c")
	require.NoError(t, db.Delete([]byte("a"), wo))

	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"a", "b"}, keys)
}

func testSnapshot(t *testing.T, db engine.DB) {
	fill(t, db, "a", "b")

	snap, err := db.NewSnapshot()
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("a"), []byte("changed"), wo))
	require.NoError(t, db.Delete([]byte("b"), wo))
	fill(t, db, "c")

	v, ok, err := snap.Get([]byte("a"), ro)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "va", string(v))

	_, ok, err = snap.Get([]byte("c"), ro)
	require.NoError(t, err)
	assert.False(t, ok)

	AssertKeyspace(t, snap,
		"a", "va",
		"b", "vb",
	)
	AssertKeyspace(t, db,
		"a", "changed",
		"c", "vc",
	)

	require.NoError(t, snap.Release())
}

func testSizesAndCompaction(t *testing.T, db engine.DB) {
	for i := 0; i < 200; i++ {
		require.NoError(t, db.Put([]byte(fmt.Sprintf("k%04d", i)), []byte(strings.Repeat("x", 100)), wo))
	}

	sizes, err := db.ApproximateSizes([]engine.Range{
		{Start: []byte("k0000"), Limit: []byte("k0100")},
		{Start: []byte("k0100"), Limit: []byte("k0200")},
	})
	require.NoError(t, err)
	assert.Len(t, sizes, 2)

	require.NoError(t, db.CompactRange(engine.Range{Start: []byte("k0000"), Limit: []byte("k0100")}))
	require.NoError(t, db.CompactRange(engine.Range{}))

	v, ok, err := db.Get([]byte("k0150"), ro)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, v, 100)
}
