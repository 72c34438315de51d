package depcontainer

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type depA struct{ n int }
type depB struct{ n int }

func TestWriteMutexIsPerDependencyType(t *testing.T) {
	c := NewContainer(nil)
	a1 := NewDependency[depA](c, depA{})
	a2 := NewDependency[depA](c, depA{})
	b1 := NewDependency[depB](c, depB{})

	mA1 := c.writeMutexFor(a1.typ)
	mA2 := c.writeMutexFor(a2.typ)
	mB1 := c.writeMutexFor(b1.typ)

	assert.Same(t, mA1, mA2, "mutex for same type should be stable")
	assert.NotSame(t, mA1, mB1, "mutex must be per dependency type")
}

func TestWriteGuardCommitPublishesValue(t *testing.T) {
	c := NewContainer(nil)
	dep := NewDependency[depA](c, depA{n: 1})

	g := dep.BeginWrite()
	g.Value = depA{n: 2}
	g.Commit()

	assert.Equal(t, depA{n: 2}, dep.Read())
}

func TestConcurrentWritesSerializeWithoutLosingUpdates(t *testing.T) {
	c := NewContainer(nil)
	dep := NewDependency[depA](c, depA{n: 0})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := dep.BeginWrite()
			g.Value = depA{n: g.Value.n + 1}
			g.Commit()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, dep.Read().n)
}

func TestTraceLocksGatedOnEnvVar(t *testing.T) {
	require.NoError(t, os.Unsetenv("MEMSCAN_TRACE_LOCKS"))
	c := NewContainer(nil)
	assert.False(t, c.traceLocks, "tracing must default to off")

	t.Setenv("MEMSCAN_TRACE_LOCKS", "1")
	c = NewContainer(nil)
	assert.True(t, c.traceLocks, "tracing must turn on when the env var is set")

	// Exercising a write with tracing enabled must not panic or deadlock.
	dep := NewDependency[depA](c, depA{n: 1})
	g := dep.BeginWrite()
	g.Value = depA{n: 2}
	g.Commit()
	assert.Equal(t, depA{n: 2}, dep.Read())
}
