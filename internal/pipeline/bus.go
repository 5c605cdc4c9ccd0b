package pipeline

import (
	"context"
	"sync"

	"screensage/internal/types"
)

// Bus is the bounded out-bound event queue feeding the overlay UI.
// Publishing never blocks: when the queue is full, the oldest SkippedFrame
// is dropped first, then the oldest PipelineError, then the oldest
// ProblemDetected. SolutionReady events are never dropped; if the queue
// holds nothing else, it grows past its capacity rather than lose one.
type Bus struct {
	mu       sync.Mutex
	capacity int
	queue    []types.Event
	notify   chan struct{}
	dropped  int
}

// NewBus creates a bus with the given capacity.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

var dropOrder = []types.EventKind{
	types.EventSkippedFrame,
	types.EventPipelineError,
	types.EventProblemDetected,
}

// Publish enqueues an event, applying the drop policy when full.
func (b *Bus) Publish(event types.Event) {
	b.mu.Lock()
	if len(b.queue) >= b.capacity {
		b.evictLocked()
	}
	b.queue = append(b.queue, event)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bus) evictLocked() {
	for _, kind := range dropOrder {
		for i, queued := range b.queue {
			if queued.Kind == kind {
				b.queue = append(b.queue[:i], b.queue[i+1:]...)
				b.dropped++
				return
			}
		}
	}
	// Queue is all SolutionReady; keep everything.
}

// Next blocks until an event is available or the context is canceled.
func (b *Bus) Next(ctx context.Context) (types.Event, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			event := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return event, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return types.Event{}, ctx.Err()
		case <-b.notify:
		}
	}
}

// Drain returns and clears every queued event.
func (b *Bus) Drain() []types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// Dropped reports how many events the drop policy discarded.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
