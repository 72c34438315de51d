// Package events is the engine's pub/sub event bus of spec.md §5/§6: the UI
// subscribes to named events (ScanResultsUpdated, PointerScanResultsUpdated,
// TrackableTaskProgressChanged, ProcessChanged) instead of polling.
package events

import "sync"

// Kind identifies one of the engine's published event types.
type Kind string

const (
	ScanResultsUpdated           Kind = "ScanResultsUpdated"
	PointerScanResultsUpdated    Kind = "PointerScanResultsUpdated"
	TrackableTaskProgressChanged Kind = "TrackableTaskProgressChanged"
	ProcessChanged               Kind = "ProcessChanged"
)

// Event is one published notification; Payload's shape depends on Kind and
// is documented alongside each api command that triggers it.
type Event struct {
	Kind    Kind
	Payload interface{}
}

// Bus is a fan-out publisher: every Subscribe call gets every event
// published after it subscribes, delivered on a buffered channel so a slow
// subscriber can't stall the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new listener with the given channel buffer size,
// returning the channel and an id to pass to Unsubscribe.
func (b *Bus) Subscribe(buffer int) (ch <-chan Event, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := make(chan Event, buffer)
	id = b.next
	b.next++
	b.subs[id] = c
	return c, id
}

func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.subs[id]; ok {
		close(c)
		delete(b.subs, id)
	}
}

// Publish fans ev out to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.subs {
		select {
		case c <- ev:
		default:
		}
	}
}
