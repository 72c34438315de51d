// Package depcontainer is the engine's dependency container, grounded on
// original_source's dependency_injection module: lock-free atomic-swap
// reads plus a per-dependency-type writer mutex, so concurrent writers to
// the same dependency never lose an update while readers never block.
package depcontainer

import (
	"os"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// Container owns the per-type writer mutex map. One Container is shared by
// every Dependency the engine constructs.
type Container struct {
	mu           sync.Mutex
	writeMutexes map[reflect.Type]*sync.Mutex

	log        *logrus.Entry
	traceLocks bool
}

// NewContainer creates a Container. Writer-lock wait/hold tracing is
// gated on the MEMSCAN_TRACE_LOCKS environment variable, per spec.md §6.
func NewContainer(log *logrus.Entry) *Container {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Container{
		writeMutexes: make(map[reflect.Type]*sync.Mutex),
		log:          log,
		traceLocks:   os.Getenv("MEMSCAN_TRACE_LOCKS") != "",
	}
}

// writeMutexFor returns the stable writer mutex for t, creating it on
// first use. A static per-call mutex would be shared across every type
// instantiation in Go the same way it would in a naive Rust translation,
// so the mutex lives in a map keyed by reflect.Type instead.
func (c *Container) writeMutexFor(t reflect.Type) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.writeMutexes[t]
	if !ok {
		m = &sync.Mutex{}
		c.writeMutexes[t] = m
	}
	return m
}
