// Package handle tracks externally owned resources (databases, snapshots,
// iterators, caches, filter policies) and the dependency edges between them.
//
// Every resource lives in an Arena slot addressed by a Handle. A resource
// registered with parents becomes a dependent of each of them; closing a
// handle first tears down everything that (transitively) depends on it, then
// invokes its own release function. Release functions run at most once.
package handle

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/eigerco/ldb/pkg/log"
	"github.com/eigerco/ldb/pkg/metrics"
)

var ErrClosed = errors.New("handle: resource is closed")

type ID uint64

type entry struct {
	id      ID
	kind    string
	value   any
	release func() error

	// pin is held shared by Use and exclusively while releasing.
	pin      sync.RWMutex
	released bool

	// guarded by Arena.mu
	closing    bool
	parents    []ID
	dependents []ID
	waitFor    []*entry

	done chan struct{}
}

// Arena owns the table of live resources. The zero value is not usable,
// create one with NewArena.
type Arena struct {
	mu      sync.Mutex
	next    ID
	entries map[ID]*entry
}

func NewArena() *Arena {
	return &Arena{entries: make(map[ID]*entry)}
}

// Handle addresses one resource of an Arena. The zero Handle is permanently closed.
type Handle struct {
	arena *Arena
	id    ID
}

// Register adds value to the arena. release is called with the arena unlocked
// when the handle is closed, it may be nil. Each parent gains the new handle as
// a dependent; registering against a parent that is closed or closing fails
// with ErrClosed and leaves the caller responsible for value.
func (a *Arena) Register(kind string, value any, release func() error, parents ...Handle) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range parents {
		if p.arena != a {
			return Handle{}, errors.Newf("handle: parent %d belongs to another arena", p.id)
		}
		pe, ok := a.entries[p.id]
		if !ok || pe.closing {
			return Handle{}, ErrClosed
		}
	}

	a.next++
	e := &entry{
		id:      a.next,
		kind:    kind,
		value:   value,
		release: release,
		done:    make(chan struct{}),
	}
	for _, p := range parents {
		pe := a.entries[p.id]
		pe.dependents = append(pe.dependents, e.id)
		e.parents = append(e.parents, p.id)
	}
	a.entries[e.id] = e

	metrics.OpenHandles.WithLabelValues(kind).Inc()
	log.Lifecycle.Debug().Str("kind", kind).Uint64("id", uint64(e.id)).Int("parents", len(parents)).Msg("registered handle")
	return Handle{arena: a, id: e.id}, nil
}

// Len returns the number of handles not yet released.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Count returns the number of handles of kind not yet released.
func (a *Arena) Count(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (h Handle) ID() ID {
	return h.id
}

// Closed reports whether the handle is released or being released.
func (h Handle) Closed() bool {
	if h.arena == nil {
		return true
	}
	h.arena.mu.Lock()
	defer h.arena.mu.Unlock()
	e, ok := h.arena.entries[h.id]
	return !ok || e.closing
}

// AddDependent records dep as depending on h: closing h closes dep first.
// The edge is weak, h never keeps dep open.
func (h Handle) AddDependent(dep Handle) error {
	if h.arena == nil || h.arena != dep.arena {
		return ErrClosed
	}
	a := h.arena
	a.mu.Lock()
	defer a.mu.Unlock()

	pe, ok := a.entries[h.id]
	if !ok || pe.closing {
		return ErrClosed
	}
	de, ok := a.entries[dep.id]
	if !ok || de.closing {
		return ErrClosed
	}
	for _, id := range pe.dependents {
		if id == dep.id {
			return nil
		}
	}
	if dep.id == h.id || a.reaches(dep.id, h.id) {
		return errors.Newf("handle: %d depending on %d would form a cycle", dep.id, h.id)
	}
	pe.dependents = append(pe.dependents, dep.id)
	de.parents = append(de.parents, h.id)
	return nil
}

// Use calls fn with the resource while keeping it from being released.
// Close blocks until every in-flight Use returns; fn must not close h.
func (h Handle) Use(fn func(value any) error) error {
	if h.arena == nil {
		return ErrClosed
	}
	h.arena.mu.Lock()
	e, ok := h.arena.entries[h.id]
	if !ok || e.closing {
		h.arena.mu.Unlock()
		return ErrClosed
	}
	h.arena.mu.Unlock()

	e.pin.RLock()
	defer e.pin.RUnlock()
	if e.released {
		return ErrClosed
	}
	return fn(e.value)
}

// With is Use with the resource asserted to T.
func With[T any](h Handle, fn func(T) error) error {
	return h.Use(func(v any) error {
		return fn(v.(T))
	})
}

// Close releases h and, before it, every live dependent reachable from h.
// Closing an already closed handle is a no-op; closing a handle that another
// goroutine is closing waits until it is released. Release failures do not
// stop the teardown; they are combined into the returned error.
func (h Handle) Close() error {
	a := h.arena
	if a == nil {
		return nil
	}

	a.mu.Lock()
	root, ok := a.entries[h.id]
	if !ok {
		a.mu.Unlock()
		return nil
	}
	if root.closing {
		// another goroutine is releasing it; return once that is done
		done := root.done
		a.mu.Unlock()
		<-done
		return nil
	}
	var order []*entry
	a.collect(root, &order)
	a.mu.Unlock()

	if len(order) > 1 {
		metrics.Cascades.Inc()
		log.Lifecycle.Debug().Str("kind", root.kind).Uint64("id", uint64(root.id)).Int("dependents", len(order)-1).Msg("cascading close")
	}

	var errs error
	for _, e := range order {
		errs = errors.CombineErrors(errs, a.release(e))
	}
	return errs
}

// collect marks e and its open dependents as closing and appends them in
// post-order, so every dependent precedes the handles it depends on.
// Dependents already being closed by another goroutine are waited on instead.
func (a *Arena) collect(e *entry, order *[]*entry) {
	e.closing = true
	for _, id := range e.dependents {
		d, ok := a.entries[id]
		if !ok {
			continue
		}
		if !d.closing {
			a.collect(d, order)
		}
		e.waitFor = append(e.waitFor, d)
	}
	*order = append(*order, e)
}

func (a *Arena) release(e *entry) error {
	for _, d := range e.waitFor {
		<-d.done
	}

	e.pin.Lock()
	var err error
	if e.release != nil {
		err = e.release()
	}
	e.released = true
	e.value = nil
	e.release = nil
	e.pin.Unlock()

	a.mu.Lock()
	delete(a.entries, e.id)
	for _, pid := range e.parents {
		if p, ok := a.entries[pid]; ok {
			p.dependents = removeID(p.dependents, e.id)
		}
	}
	e.dependents = nil
	e.waitFor = nil
	a.mu.Unlock()
	close(e.done)

	metrics.OpenHandles.WithLabelValues(e.kind).Dec()
	if err != nil {
		metrics.HandleReleases.WithLabelValues(e.kind, "error").Inc()
		log.Lifecycle.Error().Err(err).Str("kind", e.kind).Uint64("id", uint64(e.id)).Msg("release failed")
		return errors.Wrapf(err, "release %s", e.kind)
	}
	metrics.HandleReleases.WithLabelValues(e.kind, "ok").Inc()
	log.Lifecycle.Debug().Str("kind", e.kind).Uint64("id", uint64(e.id)).Msg("released handle")
	return nil
}

// reaches reports whether to is a transitive dependent of from.
func (a *Arena) reaches(from, to ID) bool {
	e, ok := a.entries[from]
	if !ok {
		return false
	}
	for _, id := range e.dependents {
		if id == to || a.reaches(id, to) {
			return true
		}
	}
	return false
}

func removeID(ids []ID, id ID) []ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
