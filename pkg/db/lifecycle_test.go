package db

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/ldb/pkg/db/engine"
	"github.com/eigerco/ldb/pkg/db/engine/memory"
)

func countKind(d *DB, kind string) int {
	return d.a.arena.Count(kind)
}

func TestCloseCascades(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "a", "1", "b", "2")

		it, err := d.Iterator(nil)
		require.NoError(t, err)
		require.NoError(t, it.SeekToFirst())

		snap, err := d.Snapshot()
		require.NoError(t, err)
		snapIt, err := snap.Iterator(nil)
		require.NoError(t, err)
		assert.Equal(t, 2, countKind(d, "iterator"))
		assert.Equal(t, 1, countKind(d, "snapshot"))

		require.NoError(t, d.Close())
		assert.Zero(t, d.a.arena.Len())

		// everything depending on the database was closed with it
		assert.False(t, it.Valid())
		assert.ErrorIs(t, it.Next(), ErrClosed)
		assert.NoError(t, it.Close())
		assert.NoError(t, snapIt.Close())
		_, _, err = snap.Get([]byte("a"))
		assert.ErrorIs(t, err, ErrClosed)
		assert.NoError(t, snap.Close())

		_, _, err = d.Get([]byte("a"))
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, d.Put([]byte("a"), nil), ErrClosed)
		_, err = d.Iterator(nil)
		assert.ErrorIs(t, err, ErrClosed)
		_, err = d.Snapshot()
		assert.ErrorIs(t, err, ErrClosed)

		// idempotent
		assert.NoError(t, d.Close())
	})
}

func TestSnapshotCloseKeepsDatabase(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "a", "1")

		live, err := d.Iterator(nil)
		require.NoError(t, err)
		defer live.Close()
		require.NoError(t, live.SeekToFirst())

		snap, err := d.Snapshot()
		require.NoError(t, err)
		snapIt, err := snap.Iterator(nil)
		require.NoError(t, err)
		require.NoError(t, snapIt.SeekToFirst())
		require.True(t, snapIt.Valid())

		require.NoError(t, snap.Close())
		assert.False(t, snapIt.Valid())
		assert.Zero(t, countKind(d, "snapshot"))
		assert.Equal(t, 1, countKind(d, "iterator"))

		require.True(t, live.Valid())
		assert.Equal(t, "a", string(live.Key()))
		v, _ := mustGet(t, d, "a")
		assert.Equal(t, "1", v)
	})
}

// recorder wraps an engine and logs the order in which resources go away.
type recorder struct {
	engine.DB
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) NewIterator(ro engine.ReadOptions) (engine.Iterator, error) {
	it, err := r.DB.NewIterator(ro)
	if err != nil {
		return nil, err
	}
	return &recordedIterator{Iterator: it, r: r, name: "iterator"}, nil
}

func (r *recorder) NewSnapshot() (engine.Snapshot, error) {
	s, err := r.DB.NewSnapshot()
	if err != nil {
		return nil, err
	}
	return &recordedSnapshot{Snapshot: s, r: r}, nil
}

func (r *recorder) Close() error {
	r.record("db")
	return r.DB.Close()
}

type recordedIterator struct {
	engine.Iterator
	r    *recorder
	name string
}

func (it *recordedIterator) Release() error {
	it.r.record(it.name)
	return it.Iterator.Release()
}

type recordedSnapshot struct {
	engine.Snapshot
	r *recorder
}

func (s *recordedSnapshot) NewIterator(ro engine.ReadOptions) (engine.Iterator, error) {
	it, err := s.Snapshot.NewIterator(ro)
	if err != nil {
		return nil, err
	}
	return &recordedIterator{Iterator: it, r: s.r, name: "snapshot_iterator"}, nil
}

func (s *recordedSnapshot) Release() error {
	s.r.record("snapshot")
	return s.Snapshot.Release()
}

func TestCascadeOrder(t *testing.T) {
	rec := &recorder{DB: memory.New()}
	resource := func(kind string) engine.Resource {
		return engine.Resource{Kind: kind, Release: func() error {
			rec.record(kind)
			return nil
		}}
	}
	d := openWith(t, rec, resource("filter_policy"), resource("cache"))

	_, err := d.Iterator(nil)
	require.NoError(t, err)
	snap, err := d.Snapshot()
	require.NoError(t, err)
	_, err = snap.Iterator(nil)
	require.NoError(t, err)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	require.Len(t, rec.events, 6)
	pos := make(map[string]int)
	for i, ev := range rec.events {
		_, dup := pos[ev]
		require.False(t, dup, "%s released twice", ev)
		pos[ev] = i
	}
	assert.Less(t, pos["snapshot_iterator"], pos["snapshot"])
	assert.Less(t, pos["iterator"], pos["db"])
	assert.Less(t, pos["snapshot"], pos["db"])
	assert.Less(t, pos["db"], pos["filter_policy"])
	assert.Less(t, pos["db"], pos["cache"])
}

func TestConcurrentClose(t *testing.T) {
	d, err := OpenMemory()
	require.NoError(t, err)
	mustPut(t, d, "a", "1")

	var iters []*Iterator
	for i := 0; i < 8; i++ {
		it, err := d.Iterator(nil)
		require.NoError(t, err)
		iters = append(iters, it)
	}

	var wg sync.WaitGroup
	for _, it := range iters {
		wg.Add(1)
		go func(it *Iterator) {
			defer wg.Done()
			for it.SeekToFirst(); it.Valid(); _ = it.Next() {
			}
			_ = it.Close()
		}(it)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, d.Close())
	}()
	wg.Wait()

	assert.Zero(t, d.a.arena.Len())
}

func TestFinalizeClosesDatabase(t *testing.T) {
	d, err := OpenMemory()
	require.NoError(t, err)
	it, err := d.Iterator(nil)
	require.NoError(t, err)

	d.a.finalize()
	assert.False(t, it.Valid())
	assert.Zero(t, d.a.arena.Len())
}

func TestCloseWaitsForReleaseInProgress(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.CreateIfMissing = true
	d, err := Open(dir, opts)
	require.NoError(t, err)
	mustPut(t, d, "a", "1")

	started := make(chan struct{})
	unblock := make(chan struct{})
	_, err = d.a.arena.Register("iterator", nil, func() error {
		close(started)
		<-unblock
		return nil
	}, d.a.db)
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		first <- d.Close()
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		second <- d.Close()
	}()
	select {
	case <-second:
		t.Fatal("Close returned before the engine was closed")
	case <-time.After(50 * time.Millisecond):
	}
	close(unblock)
	require.NoError(t, <-second)

	// the file lock is gone as soon as either Close returns
	again, err := Open(dir, opts)
	require.NoError(t, err)
	v, _ := mustGet(t, again, "a")
	assert.Equal(t, "1", v)
	require.NoError(t, again.Close())
	require.NoError(t, <-first)
}
