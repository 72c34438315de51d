package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	ch, id := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	bus.Publish(Event{Kind: ScanResultsUpdated, Payload: 42})

	select {
	case ev := <-ch:
		assert.Equal(t, ScanResultsUpdated, ev.Kind)
		assert.Equal(t, 42, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, id := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, ok := <-ch
	require.False(t, ok)
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	_, id := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Kind: ProcessChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}
