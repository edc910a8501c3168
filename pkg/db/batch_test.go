package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/ldb/pkg/db/engine"
)

func TestWriteBatchOps(t *testing.T) {
	b := NewWriteBatch()
	b.Put([]byte("k"), []byte("1")).
		Delete([]byte("k")).
		Delete([]byte("d")).
		Put([]byte("d"), []byte("2")).
		Put([]byte("a"), []byte("3")).
		Put([]byte("a"), []byte("4"))

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []engine.Op{
		{Key: []byte("a"), Value: []byte("4")},
		{Key: []byte("d"), Value: []byte("2")},
		{Key: []byte("k"), Delete: true},
	}, b.ops(nil))

	// rewriting for a prefix leaves the batch untouched
	assert.Equal(t, []engine.Op{
		{Key: []byte("p_a"), Value: []byte("4")},
		{Key: []byte("p_d"), Value: []byte("2")},
		{Key: []byte("p_k"), Delete: true},
	}, b.ops([]byte("p_")))
	assert.Equal(t, []byte("a"), b.ops(nil)[0].Key)

	b.Clear()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.ops(nil))
}

func TestWriteBatchCopiesValues(t *testing.T) {
	v := []byte("value")
	b := NewWriteBatch().Put([]byte("k"), v)
	v[0] = 'X'
	assert.Equal(t, []byte("value"), b.ops(nil)[0].Value)
}

func TestWrite(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "stale", "x")

		b := NewWriteBatch()
		b.Put([]byte("k"), []byte("1"))
		b.Delete([]byte("k"))
		b.Put([]byte("x"), []byte("1"))
		b.Delete([]byte("stale"))
		require.NoError(t, d.Write(b, Sync(true)))

		_, ok := mustGet(t, d, "k")
		assert.False(t, ok)
		_, ok = mustGet(t, d, "stale")
		assert.False(t, ok)
		v, ok := mustGet(t, d, "x")
		assert.True(t, ok)
		assert.Equal(t, "1", v)

		// same batch, different submission order, same outcome
		other := NewWriteBatch()
		other.Delete([]byte("stale"))
		other.Put([]byte("x"), []byte("1"))
		other.Delete([]byte("k"))
		assert.Equal(t, b.ops(nil), other.ops(nil))

		// a batch is reusable after Write
		b.Put([]byte("y"), []byte("2"))
		require.NoError(t, d.Write(b))
		v, _ = mustGet(t, d, "y")
		assert.Equal(t, "2", v)
	})
}

func TestWriteScoped(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		users := d.Scope([]byte("users/"))
		admins := users.Scope([]byte("admin/"))

		b := NewWriteBatch().Put([]byte("ann"), []byte("1"))
		require.NoError(t, users.Write(b))
		require.NoError(t, admins.Write(b))

		v, _ := mustGet(t, d, "users/ann")
		assert.Equal(t, "1", v)
		v, _ = mustGet(t, d, "users/admin/ann")
		assert.Equal(t, "1", v)
		_, ok := mustGet(t, d, "ann")
		assert.False(t, ok)

		// a bound batch keeps the prefix it was built with
		bound := admins.NewBatch().Put([]byte("bob"), []byte("2"))
		require.NoError(t, d.Write(bound))
		require.NoError(t, users.Write(bound))
		v, _ = mustGet(t, d, "users/admin/bob")
		assert.Equal(t, "2", v)
		assert.Equal(t, []string{"users/admin/ann", "users/admin/bob", "users/ann"}, collectKeys(t, d, nil))
	})
}
