package db

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/ldb/pkg/db/engine"
	"github.com/eigerco/ldb/pkg/db/engine/goleveldb"
	"github.com/eigerco/ldb/pkg/db/engine/memory"
	"github.com/eigerco/ldb/pkg/db/engine/pebble"
)

// engines that run without files or a system library
var testEngines = []string{goleveldb.Name, pebble.Name, memory.Name}

func openEngine(t *testing.T, name string) *DB {
	t.Helper()
	opts := DefaultOptions()
	opts.Engine = name
	opts.InMemory = true
	d, err := Open("", opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, d.Close())
	})
	return d
}

func forEachEngine(t *testing.T, fn func(t *testing.T, d *DB)) {
	for _, name := range testEngines {
		t.Run(name, func(t *testing.T) {
			fn(t, openEngine(t, name))
		})
	}
}

func mustPut(t *testing.T, d *DB, kv ...string) {
	t.Helper()
	require.Zero(t, len(kv)%2)
	for i := 0; i < len(kv); i += 2 {
		require.NoError(t, d.Put([]byte(kv[i]), []byte(kv[i+1])))
	}
}

func mustGet(t *testing.T, d *DB, key string) (string, bool) {
	t.Helper()
	v, ok, err := d.Get([]byte(key))
	require.NoError(t, err)
	return string(v), ok
}

func collectKeys(t *testing.T, d *DB, prefix []byte) []string {
	t.Helper()
	var keys []string
	require.NoError(t, d.Keys(prefix, func(key []byte) (bool, error) {
		keys = append(keys, string(key))
		return false, nil
	}))
	return keys
}

type funcDriver func(path string, opts *engine.Options) (engine.DB, []engine.Resource, error)

func (f funcDriver) Open(path string, opts *engine.Options) (engine.DB, []engine.Resource, error) {
	return f(path, opts)
}

var driverSeq atomic.Uint64

// openWith opens a DB over edb through a driver registered for this call.
func openWith(t *testing.T, edb engine.DB, resources ...engine.Resource) *DB {
	t.Helper()
	name := fmt.Sprintf("test:%s:%d", t.Name(), driverSeq.Add(1))
	engine.Register(name, funcDriver(func(string, *engine.Options) (engine.DB, []engine.Resource, error) {
		return edb, resources, nil
	}))
	opts := DefaultOptions()
	opts.Engine = name
	d, err := Open("", opts)
	require.NoError(t, err)
	return d
}
