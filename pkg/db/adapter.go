package db

import (
	"runtime"

	"github.com/cockroachdb/errors"

	"github.com/eigerco/ldb/internal/handle"
	"github.com/eigerco/ldb/pkg/db/engine"
	"github.com/eigerco/ldb/pkg/log"
	"github.com/eigerco/ldb/pkg/metrics"
)

// adapter calls through to an engine database, or to one of its snapshots,
// via arena handles so that nothing is used after it has been released.
// A snapshot-bound adapter is read-only.
type adapter struct {
	arena *handle.Arena
	db    handle.Handle
	// aux are resources the database depends on (cache, filter policy).
	aux []handle.Handle

	// set on snapshot-bound adapters only
	snap handle.Handle
	root *adapter
}

func openAdapter(name, path string, opts *engine.Options) (*adapter, error) {
	edb, resources, err := engine.Open(name, path, opts)
	if errors.Is(err, engine.ErrUnknownDriver) {
		return nil, err
	}
	if err != nil {
		return nil, storageError("open", err)
	}

	a := &adapter{arena: handle.NewArena()}
	for _, r := range resources {
		h, err := a.arena.Register(r.Kind, r.Value, r.Release)
		if err != nil {
			_ = edb.Close()
			_ = a.close()
			return nil, err
		}
		a.aux = append(a.aux, h)
	}
	a.db, err = a.arena.Register("db", edb, edb.Close, a.aux...)
	if err != nil {
		_ = edb.Close()
		_ = a.close()
		return nil, err
	}

	runtime.SetFinalizer(a, (*adapter).finalize)
	log.Engine.Info().Str("engine", name).Str("path", path).Int("resources", len(resources)).Msg("opened database")
	return a, nil
}

func (a *adapter) readOnly() bool {
	return a.root != nil
}

// read runs fn against the snapshot when bound to one, else the database.
func (a *adapter) read(fn func(engine.Reader) error) error {
	if a.readOnly() {
		return closedError(handle.With(a.snap, func(s engine.Snapshot) error {
			return fn(s)
		}))
	}
	return closedError(handle.With(a.db, func(db engine.DB) error {
		return fn(db)
	}))
}

func (a *adapter) write(op string, fn func(engine.DB) error) error {
	if a.readOnly() {
		return ErrReadOnlySnapshot
	}
	metrics.Operations.WithLabelValues(op).Inc()
	return closedError(handle.With(a.db, func(db engine.DB) error {
		return storageError(op, fn(db))
	}))
}

func (a *adapter) get(key []byte, ro engine.ReadOptions) (value []byte, found bool, err error) {
	metrics.Operations.WithLabelValues("get").Inc()
	err = a.read(func(r engine.Reader) error {
		var err error
		value, found, err = r.Get(key, ro)
		return storageError("get", err)
	})
	return value, found, err
}

func (a *adapter) put(key, value []byte, wo engine.WriteOptions) error {
	return a.write("put", func(db engine.DB) error {
		return db.Put(key, value, wo)
	})
}

func (a *adapter) delete(key []byte, wo engine.WriteOptions) error {
	return a.write("delete", func(db engine.DB) error {
		return db.Delete(key, wo)
	})
}

func (a *adapter) apply(ops []engine.Op, wo engine.WriteOptions) error {
	return a.write("write", func(db engine.DB) error {
		return db.Write(ops, wo)
	})
}

func (a *adapter) approximateSizes(ranges []engine.Range) (sizes []uint64, err error) {
	err = a.write("approximate_sizes", func(db engine.DB) error {
		var err error
		sizes, err = db.ApproximateSizes(ranges)
		return err
	})
	return sizes, err
}

func (a *adapter) compactRange(r engine.Range) error {
	return a.write("compact_range", func(db engine.DB) error {
		return db.CompactRange(r)
	})
}

// iterator creates a cursor over the adapter's read view. The cursor is
// registered while the view is pinned, so it is either torn down by a
// concurrent close or never becomes visible.
func (a *adapter) iterator(ro engine.ReadOptions) (*cursor, error) {
	metrics.Operations.WithLabelValues("iterator").Inc()
	parents := []handle.Handle{a.db}
	if a.readOnly() {
		parents = append(parents, a.snap)
	}

	var h handle.Handle
	err := a.read(func(r engine.Reader) error {
		it, err := r.NewIterator(ro)
		if err != nil {
			return storageError("iterator", err)
		}
		h, err = a.arena.Register("iterator", it, it.Release, parents...)
		if err != nil {
			return errors.CombineErrors(err, it.Release())
		}
		return nil
	})
	if err != nil {
		return nil, closedError(err)
	}
	return newCursor(a, h), nil
}

// snapshot returns a read-only adapter bound to a new engine snapshot.
func (a *adapter) snapshot() (*adapter, error) {
	if a.readOnly() {
		return nil, ErrReadOnlySnapshot
	}
	metrics.Operations.WithLabelValues("snapshot").Inc()

	var h handle.Handle
	err := closedError(handle.With(a.db, func(db engine.DB) error {
		snap, err := db.NewSnapshot()
		if err != nil {
			return storageError("snapshot", err)
		}
		h, err = a.arena.Register("snapshot", snap, snap.Release, a.db)
		if err != nil {
			return errors.CombineErrors(err, snap.Release())
		}
		return nil
	}))
	if err != nil {
		return nil, closedError(err)
	}

	s := &adapter{arena: a.arena, db: a.db, snap: h, root: a}
	runtime.SetFinalizer(s, (*adapter).finalize)
	return s, nil
}

// close releases what this adapter owns: the snapshot for a snapshot-bound
// adapter, otherwise the auxiliary resources and with them (as dependents)
// the database, its snapshots and iterators.
func (a *adapter) close() error {
	runtime.SetFinalizer(a, nil)
	if a.readOnly() {
		return closedError(a.snap.Close())
	}

	var errs error
	for _, h := range a.aux {
		errs = errors.CombineErrors(errs, h.Close())
	}
	errs = errors.CombineErrors(errs, a.db.Close())
	if errs != nil {
		return storageError("close", errs)
	}
	log.Engine.Info().Msg("closed database")
	return nil
}

func (a *adapter) finalize() {
	if err := a.close(); err != nil {
		log.Lifecycle.Error().Err(err).Msg("closing unreachable database handle")
	}
}
