package depcontainer

import (
	"sync"
	"time"
)

// WriteGuard serializes writers to one Dependency[T] via the container's
// per-type mutex, mirroring original_source's WriteGuard commit-on-drop
// pattern. Go has no destructors, so Commit (or Discard) must be called
// explicitly — typically via defer immediately after BeginWrite.
type WriteGuard[T any] struct {
	dep *Dependency[T]
	mu  *sync.Mutex

	Value T

	acquiredAt time.Time
	done       bool
}

// Commit publishes Value and releases the writer mutex. Safe to call via
// defer; a second call is a no-op.
func (g *WriteGuard[T]) Commit() {
	if g.done {
		return
	}
	g.dep.value.Store(box[T]{v: g.Value})
	g.mu.Unlock()
	g.done = true

	if g.dep.container.traceLocks {
		g.dep.container.log.WithField("type", g.dep.typ.String()).WithField("held", time.Since(g.acquiredAt)).
			Debug("depcontainer: write lock released (commit)")
	}
}

// Discard releases the writer mutex without publishing Value, for callers
// that acquired a write guard speculatively and decided not to mutate.
func (g *WriteGuard[T]) Discard() {
	if g.done {
		return
	}
	g.mu.Unlock()
	g.done = true

	if g.dep.container.traceLocks {
		g.dep.container.log.WithField("type", g.dep.typ.String()).WithField("held", time.Since(g.acquiredAt)).
			Debug("depcontainer: write lock released (discard)")
	}
}
