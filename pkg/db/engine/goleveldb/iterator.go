package goleveldb

import (
	"github.com/syndtr/goleveldb/leveldb/iterator"

	"github.com/eigerco/ldb/pkg/db/engine"
)

// Iterator adapts a goleveldb iterator (database, snapshot or memdb) to the
// engine contract.
type Iterator struct {
	iter iterator.Iterator
}

func WrapIterator(it iterator.Iterator) *Iterator {
	return &Iterator{iter: it}
}

var _ engine.Iterator = (*Iterator)(nil)

func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

func (it *Iterator) Key() []byte {
	return it.iter.Key()
}

func (it *Iterator) Value() []byte {
	return it.iter.Value()
}

func (it *Iterator) Seek(key []byte) {
	it.iter.Seek(key)
}

func (it *Iterator) SeekToFirst() {
	it.iter.First()
}

func (it *Iterator) SeekToLast() {
	it.iter.Last()
}

func (it *Iterator) Next() {
	it.iter.Next()
}

func (it *Iterator) Prev() {
	it.iter.Prev()
}

func (it *Iterator) Error() error {
	return it.iter.Error()
}

func (it *Iterator) Release() error {
	it.iter.Release()
	return nil
}
