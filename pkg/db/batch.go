package db

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/eigerco/ldb/pkg/db/engine"
)

// WriteBatch collects puts and deletes to apply atomically with DB.Write.
// Within a batch the last operation on a key wins. Writing a batch does not
// consume it; it can be written again or cleared and reused.
//
// A batch from NewWriteBatch is not bound to a scope: DB.Write prefixes its
// keys with the writing handle's prefix. A batch from DB.NewBatch has the
// creating handle's prefix applied as keys are added, and is written as is.
type WriteBatch struct {
	puts    map[string][]byte
	deletes map[string]struct{}

	prefix []byte
	bound  bool
}

func NewWriteBatch() *WriteBatch {
	return &WriteBatch{
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (b *WriteBatch) key(k []byte) string {
	return string(b.prefix) + string(k)
}

// Put records key=value, dropping any pending delete of key.
func (b *WriteBatch) Put(key, value []byte) *WriteBatch {
	k := b.key(key)
	delete(b.deletes, k)
	b.puts[k] = append([]byte{}, value...)
	return b
}

// Delete records the removal of key, dropping any pending put of key.
func (b *WriteBatch) Delete(key []byte) *WriteBatch {
	k := b.key(key)
	delete(b.puts, k)
	b.deletes[k] = struct{}{}
	return b
}

func (b *WriteBatch) Clear() {
	maps.Clear(b.puts)
	maps.Clear(b.deletes)
}

// Len returns the number of keys with a pending operation.
func (b *WriteBatch) Len() int {
	return len(b.puts) + len(b.deletes)
}

// ops returns the batch as engine operations with prefix prepended to every
// key, in key order. The batch itself is not modified.
func (b *WriteBatch) ops(prefix []byte) []engine.Op {
	keys := make([]string, 0, b.Len())
	for k := range b.puts {
		keys = append(keys, k)
	}
	for k := range b.deletes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	ops := make([]engine.Op, len(keys))
	for i, k := range keys {
		ops[i].Key = join(prefix, []byte(k))
		if v, ok := b.puts[k]; ok {
			ops[i].Value = v
		} else {
			ops[i].Delete = true
		}
	}
	return ops
}
