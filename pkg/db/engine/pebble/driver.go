package pebble

import (
	"github.com/eigerco/ldb/pkg/db/engine"
)

const Name = "pebble"

type driver struct{}

func (driver) Open(path string, opts *engine.Options) (engine.DB, []engine.Resource, error) {
	db, resources, err := NewKVStore(path, opts)
	if err != nil {
		return nil, nil, err
	}
	return db, resources, nil
}

func init() {
	engine.Register(Name, driver{})
}
