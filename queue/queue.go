// Package queue provides the bounded, thread-safe FIFO that sits between
// producer goroutines and a writer's background worker.
package queue

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehsaniara/shiplog/logmsg"
)

// DiscardAction selects how the queue sheds messages once it exceeds its
// discard threshold.
type DiscardAction int32

const (
	// DiscardNone never removes messages regardless of threshold.
	DiscardNone DiscardAction = iota
	// DiscardOldest removes from the head, keeping the most recent messages.
	DiscardOldest
	// DiscardNewest removes from the tail, keeping the oldest messages.
	DiscardNewest
)

func (a DiscardAction) String() string {
	switch a {
	case DiscardOldest:
		return "oldest"
	case DiscardNewest:
		return "newest"
	default:
		return "none"
	}
}

// Queue is a bounded FIFO of logmsg.Message. It never blocks producers and
// never panics on a full queue; overflow is handled entirely by the
// discard policy, applied after every mutation. Dequeue may block a single
// consumer goroutine up to a timeout.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	l    *list.List

	size    atomic.Int64
	dropped atomic.Int64

	discardThreshold atomic.Int32
	discardAction    atomic.Int32

	interruptSeq atomic.Int64
}

// New creates a Queue with the given discard threshold and action.
func New(discardThreshold int, discardAction DiscardAction) *Queue {
	q := &Queue{l: list.New()}
	q.cond = sync.NewCond(&q.mu)
	q.discardThreshold.Store(int32(discardThreshold))
	q.discardAction.Store(int32(discardAction))
	return q
}

// SetDiscardThreshold live-updates the discard threshold.
func (q *Queue) SetDiscardThreshold(n int) { q.discardThreshold.Store(int32(n)) }

// SetDiscardAction live-updates the discard action.
func (q *Queue) SetDiscardAction(a DiscardAction) { q.discardAction.Store(int32(a)) }

// Size returns the approximate current queue length. O(1), may be briefly
// stale under concurrent mutation.
func (q *Queue) Size() int64 { return q.size.Load() }

// Dropped returns the monotonic count of messages removed by the discard
// policy.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Enqueue appends m to the tail, then applies the discard policy.
func (q *Queue) Enqueue(m logmsg.Message) {
	q.mu.Lock()
	q.l.PushBack(m)
	q.size.Add(1)
	q.applyDiscardLocked()
	q.mu.Unlock()
	q.cond.Signal()
}

// Requeue prepends m to the head, then applies the discard policy. Under
// DiscardOldest, a requeued message is itself the first candidate for
// eviction — this is documented behavior, not a defect: it keeps the
// retained set equal to the most recently arrived messages even when some
// of them had to bounce off a failed send.
func (q *Queue) Requeue(m logmsg.Message) {
	q.mu.Lock()
	q.l.PushFront(m)
	q.size.Add(1)
	q.applyDiscardLocked()
	q.mu.Unlock()
	q.cond.Signal()
}

// Dequeue removes and returns the message at the head, if any, without
// blocking.
func (q *Queue) Dequeue() (logmsg.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popFrontLocked()
}

// DequeueTimeout removes and returns the message at the head, blocking up
// to d if the queue is empty. Returns (zero, false) on timeout.
func (q *Queue) DequeueTimeout(d time.Duration) (logmsg.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if m, ok := q.popFrontLocked(); ok {
		return m, true
	}
	if d <= 0 {
		return logmsg.Message{}, false
	}

	deadline := time.Now().Add(d)
	startSeq := q.interruptSeq.Load()
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	for q.l.Len() == 0 {
		if q.interruptSeq.Load() != startSeq {
			return logmsg.Message{}, false
		}
		if time.Now().After(deadline) {
			return logmsg.Message{}, false
		}
		q.cond.Wait()
	}
	return q.popFrontLocked()
}

// Interrupt wakes any goroutine blocked in DequeueTimeout without removing
// a message, returning it immediately instead of waiting out the full
// timeout. Used to make shutdown responsive.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	q.interruptSeq.Add(1)
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *Queue) popFrontLocked() (logmsg.Message, bool) {
	front := q.l.Front()
	if front == nil {
		return logmsg.Message{}, false
	}
	q.l.Remove(front)
	q.size.Add(-1)
	return front.Value.(logmsg.Message), true
}

// applyDiscardLocked must be called with q.mu held. It removes messages
// from the head (oldest) or tail (newest) until size <= threshold, unless
// the action is DiscardNone.
func (q *Queue) applyDiscardLocked() {
	action := DiscardAction(q.discardAction.Load())
	if action == DiscardNone {
		return
	}
	threshold := int(q.discardThreshold.Load())

	for q.l.Len() > threshold {
		var victim *list.Element
		switch action {
		case DiscardOldest:
			victim = q.l.Front()
		case DiscardNewest:
			victim = q.l.Back()
		default:
			return
		}
		if victim == nil {
			return
		}
		q.l.Remove(victim)
		q.size.Add(-1)
		q.dropped.Add(1)
	}
}
