package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/ldb/pkg/db/engine"
)

type Snapshot struct {
	snap *pebble.Snapshot
}

func (p *KVStore) NewSnapshot() (engine.Snapshot, error) {
	return &Snapshot{snap: p.db.NewSnapshot()}, nil
}

func (s *Snapshot) Get(key []byte, _ engine.ReadOptions) ([]byte, bool, error) {
	v, ok, err := get(s.snap.Get(key))
	if err != nil {
		return nil, false, fmt.Errorf(ErrInSnapshotRead, err)
	}
	return v, ok, nil
}

func (s *Snapshot) NewIterator(_ engine.ReadOptions) (engine.Iterator, error) {
	iter, err := s.snap.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf(ErrInIteratorCreation, err)
	}
	return &Iterator{iter: iter}, nil
}

func (s *Snapshot) Release() error {
	return s.snap.Close()
}
