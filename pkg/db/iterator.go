package db

import (
	"bytes"
	"iter"

	"github.com/cockroachdb/errors"
)

// Bounds select a key span for Range, Keys and Values. A nil Start begins at
// the first key, a nil End runs to the last one. Start is inclusive and End
// exclusive unless the flags say otherwise.
type Bounds struct {
	Start          []byte
	End            []byte
	StartExclusive bool
	EndInclusive   bool
}

// Iterator is a bidirectional cursor restricted to the keys under a prefix.
// Keys are reported with the prefix stripped. It sees the database as it was
// when the iterator was created.
//
// Key and Value panic with ErrInvalidIteratorState unless Valid is true.
// Iterators are not safe for concurrent use; distinct iterators over the
// same database are independent.
type Iterator struct {
	cur    *cursor
	prefix []byte
	err    error
}

func newIterator(cur *cursor, prefix []byte) *Iterator {
	return &Iterator{cur: cur, prefix: prefix}
}

// Prefix returns the scope of the iterator.
func (it *Iterator) Prefix() []byte {
	return bytes.Clone(it.prefix)
}

// Valid reports whether the iterator is positioned on a key under its prefix.
func (it *Iterator) Valid() bool {
	return it.cur.valid(it.prefix)
}

func (it *Iterator) Key() []byte {
	k := it.cur.Key()
	if !bytes.HasPrefix(k, it.prefix) {
		panic(ErrInvalidIteratorState)
	}
	return k[len(it.prefix):]
}

func (it *Iterator) Value() []byte {
	if !it.Valid() {
		panic(ErrInvalidIteratorState)
	}
	return it.cur.Value()
}

// Seek positions the iterator at the first key at or after key.
func (it *Iterator) Seek(key []byte) error {
	return it.cur.Seek(join(it.prefix, key))
}

func (it *Iterator) SeekToFirst() error {
	if len(it.prefix) == 0 {
		return it.cur.SeekToFirst()
	}
	return it.cur.Seek(it.prefix)
}

// SeekToLast positions the iterator at the last key under the prefix. The
// engine can only seek forward to a key, so it seeks to the successor of the
// prefix and steps back once; when nothing follows the prefix the global
// last key is the answer.
func (it *Iterator) SeekToLast() error {
	succ := Successor(it.prefix)
	if succ == nil {
		return it.cur.SeekToLast()
	}
	if err := it.cur.Seek(succ); err != nil {
		return err
	}
	if it.cur.valid(nil) {
		return it.cur.Prev()
	}
	return it.cur.SeekToLast()
}

// Next and Prev take one unchecked step; check Valid afterwards.
func (it *Iterator) Next() error {
	return it.cur.Next()
}

func (it *Iterator) Prev() error {
	return it.cur.Prev()
}

// Close releases the iterator. It is safe to call more than once and after
// the database was closed.
func (it *Iterator) Close() error {
	return it.cur.Close()
}

// Err returns the first error met by Range, Keys, Values or All.
func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) fail(err error) {
	if err != nil && it.err == nil {
		it.err = err
	}
}

// Range yields the key/value pairs within b in ascending order, stopping as
// soon as a key passes the end bound. The sequence consumes the iterator:
// it is closed when the loop ends, also on break. Check Err afterwards.
func (it *Iterator) Range(b Bounds) iter.Seq2[[]byte, []byte] {
	return func(yield func(key, value []byte) bool) {
		defer func() {
			it.fail(it.Close())
		}()

		var err error
		if b.Start == nil {
			err = it.SeekToFirst()
		} else {
			err = it.Seek(b.Start)
		}
		if err != nil {
			it.fail(err)
			return
		}
		if b.StartExclusive && b.Start != nil && it.Valid() && bytes.Equal(it.Key(), b.Start) {
			if err := it.Next(); err != nil {
				it.fail(err)
				return
			}
		}

		for it.Valid() {
			k := it.Key()
			if b.End != nil {
				c := bytes.Compare(k, b.End)
				if c > 0 || (c == 0 && !b.EndInclusive) {
					return
				}
			}
			if !yield(k, it.cur.Value()) {
				return
			}
			if err := it.Next(); err != nil {
				it.fail(err)
				return
			}
		}
	}
}

// Keys yields the keys from the current position forward while the iterator
// stays valid. Unlike Range it neither seeks nor closes the iterator; an
// unpositioned iterator yields nothing. Check Err afterwards.
func (it *Iterator) Keys() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for it.Valid() {
			if !yield(it.Key()) {
				return
			}
			if err := it.Next(); err != nil {
				it.fail(err)
				return
			}
		}
	}
}

// Values is Keys for the values.
func (it *Iterator) Values() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for it.Valid() {
			if !yield(it.Value()) {
				return
			}
			if err := it.Next(); err != nil {
				it.fail(err)
				return
			}
		}
	}
}

// All is Range over every key under the prefix.
func (it *Iterator) All() iter.Seq2[[]byte, []byte] {
	return it.Range(Bounds{})
}

// scan drives Range for the callback-style helpers of DB.
func scan(it *Iterator, b Bounds, fn func(key, value []byte) (stop bool, err error)) error {
	var cbErr error
	for k, v := range it.Range(b) {
		stop, err := fn(k, v)
		if err != nil {
			cbErr = err
			break
		}
		if stop {
			break
		}
	}
	return errors.CombineErrors(cbErr, it.Err())
}
