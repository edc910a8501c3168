package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/ldb/pkg/db/engine"
)

type Iterator struct {
	iter *pebble.Iterator
}

var _ engine.Iterator = (*Iterator)(nil)

func (p *KVStore) NewIterator(_ engine.ReadOptions) (engine.Iterator, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf(ErrInIteratorCreation, err)
	}
	return &Iterator{iter: iter}, nil
}

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
	it.iter.SeekGE(key)
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
	return it.iter.Close()
}
