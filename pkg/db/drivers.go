package db

// Engines register themselves with package engine on import.
import (
	_ "github.com/eigerco/ldb/pkg/db/engine/goleveldb"
	_ "github.com/eigerco/ldb/pkg/db/engine/native"
	_ "github.com/eigerco/ldb/pkg/db/engine/pebble"
)
