// Package stats holds the per-writer counters and last-error record
// described by the writer core's statistics object.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// LastError bundles a timestamp, message, and cause together so readers
// never observe a half-updated record.
type LastError struct {
	Message string
	Err     error
	At      time.Time
}

// Writer holds monotonic counters for one writer instance. All counter
// fields are atomic.Int64 and safe for concurrent use; LastError is
// guarded by a mutex because it must be set as an atomic group, not
// field-by-field.
type Writer struct {
	messagesSent                 atomic.Int64
	messagesRequeued             atomic.Int64
	messagesDiscarded            atomic.Int64
	oversizeDropped              atomic.Int64
	lastBatchSize                atomic.Int64
	throttledWrites              atomic.Int64
	writerRaceRetries            atomic.Int64
	unrecoveredWriterRaceRetries atomic.Int64

	mu        sync.Mutex
	lastError LastError
}

// New returns a zeroed Writer statistics object.
func New() *Writer {
	return &Writer{}
}

func (w *Writer) AddMessagesSent(n int64)      { w.messagesSent.Add(n) }
func (w *Writer) AddMessagesRequeued(n int64)  { w.messagesRequeued.Add(n) }
func (w *Writer) AddMessagesDiscarded(n int64) { w.messagesDiscarded.Add(n) }
func (w *Writer) AddOversizeDropped(n int64)   { w.oversizeDropped.Add(n) }
func (w *Writer) SetLastBatchSize(n int64)     { w.lastBatchSize.Store(n) }
func (w *Writer) IncThrottledWrites()          { w.throttledWrites.Add(1) }
func (w *Writer) IncWriterRaceRetries()        { w.writerRaceRetries.Add(1) }
func (w *Writer) IncUnrecoveredWriterRaceRetries() {
	w.unrecoveredWriterRaceRetries.Add(1)
}

// SetLastError records err as the most recent failure, with the current
// time and a human-readable message, under the statistics mutex.
func (w *Writer) SetLastError(message string, err error) {
	w.mu.Lock()
	w.lastError = LastError{Message: message, Err: err, At: time.Now()}
	w.mu.Unlock()
}

// Snapshot is a point-in-time, plain-value copy of a Writer's counters,
// suitable for JMX-equivalent export (see internal/metrics) without
// holding any lock on the live object.
type Snapshot struct {
	MessagesSent                 int64
	MessagesRequeued             int64
	MessagesDiscarded            int64
	OversizeDropped              int64
	LastBatchSize                int64
	ThrottledWrites              int64
	WriterRaceRetries            int64
	UnrecoveredWriterRaceRetries int64
	LastError                    LastError
}

// Snapshot returns a consistent-enough point-in-time copy of the counters.
func (w *Writer) Snapshot() Snapshot {
	w.mu.Lock()
	lastErr := w.lastError
	w.mu.Unlock()

	return Snapshot{
		MessagesSent:                 w.messagesSent.Load(),
		MessagesRequeued:             w.messagesRequeued.Load(),
		MessagesDiscarded:            w.messagesDiscarded.Load(),
		OversizeDropped:              w.oversizeDropped.Load(),
		LastBatchSize:                w.lastBatchSize.Load(),
		ThrottledWrites:              w.throttledWrites.Load(),
		WriterRaceRetries:            w.writerRaceRetries.Load(),
		UnrecoveredWriterRaceRetries: w.unrecoveredWriterRaceRetries.Load(),
		LastError:                    lastErr,
	}
}
