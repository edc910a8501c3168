package db

import (
	"bytes"
	"runtime"

	"github.com/eigerco/ldb/internal/handle"
	"github.com/eigerco/ldb/pkg/db/engine"
)

// cursor wraps one engine iterator handle. Positioning calls consult the
// engine's error channel and report failures as *StorageError; the position
// after a failure is engine defined.
type cursor struct {
	h handle.Handle
	// keeps the adapter, and with it the database, reachable
	a *adapter
}

func newCursor(a *adapter, h handle.Handle) *cursor {
	c := &cursor{h: h, a: a}
	runtime.SetFinalizer(c, (*cursor).Close)
	return c
}

func (c *cursor) move(op string, fn func(engine.Iterator)) error {
	return closedError(handle.With(c.h, func(it engine.Iterator) error {
		fn(it)
		return storageError(op, it.Error())
	}))
}

// valid reports whether the cursor is positioned on a key starting with prefix.
func (c *cursor) valid(prefix []byte) bool {
	var ok bool
	_ = handle.With(c.h, func(it engine.Iterator) error {
		ok = it.Valid() && bytes.HasPrefix(it.Key(), prefix)
		return nil
	})
	return ok
}

// entry copies the current key and value. It panics with
// ErrInvalidIteratorState when the cursor is not valid or closed.
func (c *cursor) entry(wantKey, wantValue bool) (key, value []byte) {
	err := handle.With(c.h, func(it engine.Iterator) error {
		if !it.Valid() {
			return ErrInvalidIteratorState
		}
		if wantKey {
			key = append([]byte{}, it.Key()...)
		}
		if wantValue {
			value = append([]byte{}, it.Value()...)
		}
		return nil
	})
	if err != nil {
		panic(ErrInvalidIteratorState)
	}
	return key, value
}

func (c *cursor) Key() []byte {
	k, _ := c.entry(true, false)
	return k
}

func (c *cursor) Value() []byte {
	_, v := c.entry(false, true)
	return v
}

func (c *cursor) Seek(key []byte) error {
	return c.move("seek", func(it engine.Iterator) { it.Seek(key) })
}

func (c *cursor) SeekToFirst() error {
	return c.move("seek_to_first", func(it engine.Iterator) { it.SeekToFirst() })
}

func (c *cursor) SeekToLast() error {
	return c.move("seek_to_last", func(it engine.Iterator) { it.SeekToLast() })
}

func (c *cursor) Next() error {
	return c.move("next", func(it engine.Iterator) { it.Next() })
}

func (c *cursor) Prev() error {
	return c.move("prev", func(it engine.Iterator) { it.Prev() })
}

// Close releases the engine iterator. Closing twice, or after the database
// was closed, is a no-op.
func (c *cursor) Close() error {
	runtime.SetFinalizer(c, nil)
	return closedError(c.h.Close())
}
