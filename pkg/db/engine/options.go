package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

// ByteSize is a size in bytes that reads and writes human-readable strings
// ("8MB", "4 KiB") in configuration files.
type ByteSize uint64

const (
	KiB ByteSize = 1 << 10
	MiB ByteSize = 1 << 20
)

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid byte size %q", text)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Options configure how an engine is opened. Engines ignore the knobs they
// have no equivalent for.
type Options struct {
	// BloomFilterBits is the bits-per-key of the bloom filter policy; 0 disables it.
	BloomFilterBits int      `toml:"bloom_filter_bits"`
	CreateIfMissing bool     `toml:"create_if_missing"`
	ErrorIfExists   bool     `toml:"error_if_exists"`
	ParanoidChecks  bool     `toml:"paranoid_checks"`
	WriteBufferSize ByteSize `toml:"write_buffer_size"`
	MaxOpenFiles    int      `toml:"max_open_files"`
	BlockCacheSize  ByteSize `toml:"block_cache_size"`
	BlockSize       ByteSize `toml:"block_size"`
	// InMemory keeps the engine's files in memory; path is ignored.
	InMemory bool `toml:"in_memory"`
}

func DefaultOptions() *Options {
	return &Options{
		BloomFilterBits: 10,
		WriteBufferSize: 4 * MiB,
		MaxOpenFiles:    1000,
		BlockCacheSize:  8 * MiB,
		BlockSize:       4 * KiB,
	}
}
