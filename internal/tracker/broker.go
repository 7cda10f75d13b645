package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 64

// broker fans transition events out to subscribers.
// Publish never blocks: a subscriber whose buffer is full misses the event
// and the drop is counted.
type broker struct {
	subs       map[chan Event]struct{}
	mu         sync.RWMutex
	closed     bool
	done       chan struct{}
	bufferSize int
	dropped    atomic.Uint64
}

func newBroker(size int) *broker {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &broker{
		subs:       make(map[chan Event]struct{}),
		done:       make(chan struct{}),
		bufferSize: size,
	}
}

// subscribe registers a channel that is closed when ctx is done or the broker closes.
func (b *broker) subscribe(ctx context.Context) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := make(chan Event, b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub)
		}
	}()

	return sub
}

func (b *broker) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub <- ev:
		default:
			count := b.dropped.Add(1)
			if count%10 == 1 {
				slog.Warn("tracker subscriber buffer full, dropped event",
					"request_id", ev.RequestID, "type", ev.Type, "total_dropped", count)
			}
		}
	}
}

// close closes every subscriber channel. Later subscribers get a closed channel.
func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for sub := range b.subs {
		close(sub)
		delete(b.subs, sub)
	}
}

func (b *broker) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
