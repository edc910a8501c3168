package db

import (
	"github.com/eigerco/ldb/pkg/db/engine"
)

// Defaults are the read and write options a handle applies when a call does
// not override them.
type Defaults struct {
	Sync            bool `toml:"sync"`
	VerifyChecksums bool `toml:"verify_checksums"`
	FillCache       bool `toml:"fill_cache"`
}

type ReadOption func(*engine.ReadOptions)

type WriteOption func(*engine.WriteOptions)

// DefaultsOption changes the defaults of a derived handle (see DB.Scope and
// DB.Snapshot).
type DefaultsOption func(*Defaults)

func VerifyChecksums(v bool) ReadOption {
	return func(o *engine.ReadOptions) { o.VerifyChecksums = v }
}

func FillCache(v bool) ReadOption {
	return func(o *engine.ReadOptions) { o.FillCache = v }
}

func Sync(v bool) WriteOption {
	return func(o *engine.WriteOptions) { o.Sync = v }
}

func DefaultSync(v bool) DefaultsOption {
	return func(d *Defaults) { d.Sync = v }
}

func DefaultVerifyChecksums(v bool) DefaultsOption {
	return func(d *Defaults) { d.VerifyChecksums = v }
}

func DefaultFillCache(v bool) DefaultsOption {
	return func(d *Defaults) { d.FillCache = v }
}

// read merges per-call options over the defaults.
func (d Defaults) read(opts []ReadOption) engine.ReadOptions {
	ro := engine.ReadOptions{VerifyChecksums: d.VerifyChecksums, FillCache: d.FillCache}
	for _, o := range opts {
		o(&ro)
	}
	return ro
}

func (d Defaults) write(opts []WriteOption) engine.WriteOptions {
	wo := engine.WriteOptions{Sync: d.Sync}
	for _, o := range opts {
		o(&wo)
	}
	return wo
}

func (d Defaults) with(opts []DefaultsOption) Defaults {
	for _, o := range opts {
		o(&d)
	}
	return d
}
