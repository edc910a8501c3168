package db

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/eigerco/ldb/pkg/db/engine"
)

// Options configure Open.
type Options struct {
	// Engine is the registered driver name, see engine.Drivers.
	Engine string `toml:"engine"`
	engine.Options
	Defaults Defaults `toml:"defaults"`
}

func DefaultOptions() *Options {
	return &Options{
		Engine:   "goleveldb",
		Options:  *engine.DefaultOptions(),
		Defaults: Defaults{FillCache: true},
	}
}

// LoadOptions reads a TOML file over DefaultOptions. Unknown keys are rejected.
//
//	engine = "pebble"
//	create_if_missing = true
//	block_cache_size = "64MiB"
//
//	[defaults]
//	sync = true
func LoadOptions(path string) (*Options, error) {
	opts := DefaultOptions()
	md, err := toml.DecodeFile(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load options %q", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Newf("load options %q: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return opts, nil
}
