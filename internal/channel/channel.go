// Package channel provides a fixed-capacity, thread-safe FIFO with a
// drop-oldest overflow policy.
//
// A Bounded channel never blocks its producer: when it is full, the
// oldest queued message is evicted to make room for the new one.  A slow
// or stalled consumer therefore costs at most Cap() messages of memory
// and never stalls the code that posts.
package channel

import "sync"

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 32

// Bounded is a ring-buffer FIFO of T.  All methods are safe for
// concurrent use.
type Bounded[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // index of the oldest element
	count int

	ready chan struct{}
}

// New returns an empty channel holding at most capacity messages.
func New[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bounded[T]{
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Post appends msg.  If the channel was already full the oldest message
// is evicted first and Post returns false; otherwise it returns true.
func (b *Bounded[T]) Post(msg T) bool {
	b.mu.Lock()
	accepted := true
	if b.count == len(b.buf) {
		var zero T
		b.buf[b.head] = zero
		b.head = (b.head + 1) % len(b.buf)
		b.count--
		accepted = false
	}
	b.buf[(b.head+b.count)%len(b.buf)] = msg
	b.count++
	b.mu.Unlock()

	b.signal()
	return accepted
}

// Fetch removes and returns the oldest message.  The boolean is false
// when the channel is empty.
func (b *Bounded[T]) Fetch() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.count == 0 {
		return zero, false
	}
	msg := b.buf[b.head]
	b.buf[b.head] = zero
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	return msg, true
}

// Drain removes every queued message and returns them oldest first.
func (b *Bounded[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	var zero T
	out := make([]T, 0, b.count)
	for b.count > 0 {
		out = append(out, b.buf[b.head])
		b.buf[b.head] = zero
		b.head = (b.head + 1) % len(b.buf)
		b.count--
	}
	return out
}

// Len returns the number of queued messages.
func (b *Bounded[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the channel capacity.
func (b *Bounded[T]) Cap() int { return len(b.buf) }

// Ready returns a channel that receives a value after a Post.  At most
// one signal is pending at a time and a signal may arrive after the
// message was already fetched, so consumers must drain with Fetch until
// it reports empty.
func (b *Bounded[T]) Ready() <-chan struct{} { return b.ready }

func (b *Bounded[T]) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}
