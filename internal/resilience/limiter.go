package resilience

import (
	"container/list"
	"context"
	"sync"
)

// Priority orders queued calls. It never changes the concurrency ceiling.
type Priority int

const (
	PriorityNormal Priority = iota
	// PriorityHigh jumps to the head of the queue.
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// Limiter caps concurrent upstream calls. Waiters are served FIFO except
// that high priority waiters are inserted at the head.
type Limiter struct {
	mu       sync.Mutex
	max      int
	active   int
	queue    *list.List
	onChange func(queued, active int)
}

type waiter struct {
	ready chan struct{}
}

// NewLimiter allows up to limit concurrent holders. onChange, if set, is
// called under the lock after every queue or slot change.
func NewLimiter(limit int, onChange func(queued, active int)) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	return &Limiter{max: limit, queue: list.New(), onChange: onChange}
}

// Acquire blocks until a slot is free or ctx ends. A nil return must be
// paired with Release.
func (l *Limiter) Acquire(ctx context.Context, p Priority) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.active < l.max && l.queue.Len() == 0 {
		l.active++
		l.notify()
		l.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	var elem *list.Element
	if p == PriorityHigh {
		elem = l.queue.PushFront(w)
	} else {
		elem = l.queue.PushBack(w)
	}
	l.notify()
	l.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	select {
	case <-w.ready:
		// Granted while we were giving up: pass the slot on.
		l.release()
	default:
		l.queue.Remove(elem)
		l.notify()
	}
	l.mu.Unlock()
	return ctx.Err()
}

// Release frees a slot, handing it straight to the next waiter if any.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release()
}

func (l *Limiter) release() {
	if front := l.queue.Front(); front != nil {
		l.queue.Remove(front)
		close(front.Value.(*waiter).ready)
	} else {
		l.active--
	}
	l.notify()
}

// Queued returns the number of waiting callers.
func (l *Limiter) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Active returns the number of held slots.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Max returns the ceiling.
func (l *Limiter) Max() int {
	return l.max
}

func (l *Limiter) notify() {
	if l.onChange != nil {
		l.onChange(l.queue.Len(), l.active)
	}
}
