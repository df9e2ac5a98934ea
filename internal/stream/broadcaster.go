package stream

import (
	"context"
	"sync"
)

// FrameBuffer is the per-listener buffer for PCM frames, ~3 seconds at
// 20ms/frame.
const FrameBuffer = 150

// Broadcaster fans out values from one source to N listeners.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	buffer    int
	listeners map[*Listener[T]]struct{}
	dropped   uint64
}

// Listener receives values from the broadcaster.
type Listener[T any] struct {
	C    chan T
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener[T]) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a broadcaster whose listeners buffer up to buffer
// values.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	return &Broadcaster[T]{
		buffer:    buffer,
		listeners: make(map[*Listener[T]]struct{}),
	}
}

// NewFrameBroadcaster creates a broadcaster for PCM frames.
func NewFrameBroadcaster() *Broadcaster[[]int16] {
	return NewBroadcaster[[]int16](FrameBuffer)
}

// Subscribe registers a new listener.
func (b *Broadcaster[T]) Subscribe() *Listener[T] {
	l := &Listener[T]{
		C:    make(chan T, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Unsubscribing twice
// is a no-op.
func (b *Broadcaster[T]) Unsubscribe(l *Listener[T]) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped returns how many deliveries were skipped for slow listeners.
func (b *Broadcaster[T]) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Broadcast delivers v to every listener without blocking. Slow listeners
// miss v rather than holding up the rest.
func (b *Broadcaster[T]) Broadcast(v T) {
	var dropped uint64
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- v:
		default:
			dropped++
		}
	}
	b.mu.RUnlock()
	if dropped > 0 {
		b.mu.Lock()
		b.dropped += dropped
		b.mu.Unlock()
	}
}

// Run reads values from source and fans them out until ctx is done or
// source is closed.
func (b *Broadcaster[T]) Run(ctx context.Context, source <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-source:
			if !ok {
				return
			}
			b.Broadcast(v)
		}
	}
}
