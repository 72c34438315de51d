package depcontainer

import (
	"reflect"
	"sync/atomic"
	"time"
)

// Dependency is a clone-safe, lock-free-for-readers wrapper around one
// shared value of type T: reads are an atomic load, writes go through a
// WriteGuard that serializes on Container's per-type mutex.
type Dependency[T any] struct {
	container *Container
	value     atomic.Value
	typ       reflect.Type
}

// NewDependency registers a dependency of type T with an initial value.
func NewDependency[T any](container *Container, initial T) *Dependency[T] {
	d := &Dependency[T]{
		container: container,
		typ:       reflect.TypeOf((*T)(nil)).Elem(),
	}
	d.value.Store(box[T]{v: initial})
	return d
}

// box avoids storing T (which may be an interface or non-comparable type)
// directly in atomic.Value, whose Store requires a consistent concrete
// type across calls.
type box[T any] struct{ v T }

// Read returns the current value without blocking any writer.
func (d *Dependency[T]) Read() T {
	return d.value.Load().(box[T]).v
}

// BeginWrite acquires this dependency type's writer mutex and returns a
// guard seeded with the current value; the caller mutates Guard.Value and
// calls Commit to publish it and release the mutex. When MEMSCAN_TRACE_LOCKS
// is set, the wait to acquire the mutex and the time the mutex is held are
// both logged.
func (d *Dependency[T]) BeginWrite() *WriteGuard[T] {
	start := time.Now()
	mu := d.container.writeMutexFor(d.typ)
	mu.Lock()

	if d.container.traceLocks {
		d.container.log.WithField("type", d.typ.String()).WithField("wait", time.Since(start)).
			Debug("depcontainer: write lock acquired")
	}
	return &WriteGuard[T]{dep: d, mu: mu, Value: d.Read(), acquiredAt: time.Now()}
}
