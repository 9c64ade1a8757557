// Package writer implements the scheduling core shared by every
// destination: the background worker loop, greedy batch construction
// subject to service limits, send dispatch, requeue-on-failure, and
// bounded-grace shutdown. Destination specifics (CloudWatch, Kinesis,
// SNS) plug in through the Specialization interface; see
// writer/cloudwatch, writer/kinesis, writer/sns.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehsaniara/shiplog/internal/logging"
	"github.com/ehsaniara/shiplog/logmsg"
	"github.com/ehsaniara/shiplog/queue"
	"github.com/ehsaniara/shiplog/stats"
)

// ErrNeedsReinit signals that a send failed because the destination
// itself went away (CloudWatch's MISSING_LOG_GROUP/MISSING_LOG_STREAM,
// Kinesis's stream disappearing mid-flight). Core reacts by re-running
// EnsureDestinationAvailable and requeuing the whole batch.
type ErrNeedsReinit struct{ Cause error }

func (e *ErrNeedsReinit) Error() string {
	return fmt.Sprintf("destination unavailable, reinitializing: %v", e.Cause)
}
func (e *ErrNeedsReinit) Unwrap() error { return e.Cause }

// Specialization supplies everything destination-specific that the
// scheduling core needs: lifecycle, limits, and the send path.
type Specialization interface {
	// EnsureDestinationAvailable provisions/verifies the remote
	// destination, blocking up to the writer's InitializationTimeout.
	EnsureDestinationAvailable(ctx context.Context) error

	// EffectiveSize returns the byte cost of m as counted against
	// ServiceMaxBatchBytes, including any per-message overhead the
	// destination's wire format imposes.
	EffectiveSize(m logmsg.Message) int
	// MaxMessageSize is the largest single message this destination
	// accepts, after subtracting its own per-message overhead.
	MaxMessageSize() int
	ServiceMaxBatchBytes() int
	ServiceMaxBatchCount() int
	// AcceptableWindow returns how far into the past and future a
	// message's timestamp may stray from a batch's first message before
	// it is dropped rather than sent. Destinations with no such window
	// (Kinesis, SNS) return bounds wide enough to never trigger.
	AcceptableWindow(first time.Time) (past, future time.Duration)

	// SendBatch sends batch, performing any destination-specific
	// retry-with-backoff internally (e.g. CloudWatch throttling,
	// sequence-token refresh). It returns the subset of batch that must
	// be requeued. An ErrNeedsReinit error means the whole batch should
	// be requeued and EnsureDestinationAvailable re-run before the next
	// send attempt.
	//
	// ctx is cancelled when Stop() is called; implementations must use it
	// only to abort backoff waiting (e.g. as retry.Run's ctx), never as
	// the context for the underlying AWS call itself — an in-flight
	// facade call is allowed to complete or fail on its own, not be
	// cancelled out from under it.
	SendBatch(ctx context.Context, batch []logmsg.Message) (unsent []logmsg.Message, err error)

	Shutdown(ctx context.Context) error
}

// Config holds the common, destination-agnostic writer settings from
// spec §3's WriterConfig.
type Config struct {
	BatchDelay               time.Duration
	DiscardThreshold         int
	DiscardAction            queue.DiscardAction
	TruncateOversizeMessages bool
	Synchronous              bool
	UseShutdownHook          bool
	InitializationTimeout    time.Duration
	EnableBatchLogging       bool
	// DrainGrace bounds how long Stop() waits, beyond batch-delay-scaled
	// draining, before abandoning any remaining queued messages.
	DrainGrace time.Duration
}

// Core is the scheduling engine embedded by each destination writer.
type Core struct {
	cfg   Config
	stats *stats.Writer
	log   *logging.Logger
	spec  Specialization
	q     *queue.Queue

	state atomicState

	batchDelay    atomic.Int64 // time.Duration, live-updatable
	shuttingDown  atomic.Bool
	stopOnce      sync.Once
	workerDone    chan struct{}
	cancelWorker  context.CancelFunc
}

// New constructs a Core. It does not start the worker; call Start.
func New(cfg Config, st *stats.Writer, log *logging.Logger, spec Specialization) *Core {
	c := &Core{
		cfg:        cfg,
		stats:      st,
		log:        log,
		spec:       spec,
		q:          queue.New(cfg.DiscardThreshold, cfg.DiscardAction),
		workerDone: make(chan struct{}),
	}
	c.batchDelay.Store(int64(cfg.BatchDelay))
	c.state.store(StateCreated)
	return c
}

// State returns the writer's current lifecycle state.
func (c *Core) State() State { return c.state.load() }

// SetBatchDelay live-updates the max wait for additional batch messages.
func (c *Core) SetBatchDelay(d time.Duration) { c.batchDelay.Store(int64(d)) }

// SetDiscardThreshold live-updates the queue's discard threshold.
func (c *Core) SetDiscardThreshold(n int) { c.q.SetDiscardThreshold(n) }

// SetDiscardAction live-updates the queue's discard policy.
func (c *Core) SetDiscardAction(a queue.DiscardAction) { c.q.SetDiscardAction(a) }

// IsMessageTooLarge reports whether m exceeds the destination's single
// message limit.
func (c *Core) IsMessageTooLarge(m logmsg.Message) bool {
	return m.Size() > c.spec.MaxMessageSize()
}

// MaxMessageSize returns the destination's single message limit.
func (c *Core) MaxMessageSize() int { return c.spec.MaxMessageSize() }

// Start brings the writer up. In synchronous mode it provisions the
// destination on the calling goroutine and returns without starting a
// worker. Otherwise it spawns the background worker goroutine.
func (c *Core) Start(ctx context.Context) error {
	if c.cfg.Synchronous {
		c.state.store(StateInitializing)
		initCtx, cancel := context.WithTimeout(ctx, c.cfg.InitializationTimeout)
		defer cancel()
		if err := c.spec.EnsureDestinationAvailable(initCtx); err != nil {
			c.log.Error("initialization failed", "error", err)
			c.stats.SetLastError("initialization failed", err)
			c.state.store(StateStopped)
			return err
		}
		c.state.store(StateReady)
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancelWorker = cancel
	go c.run(workerCtx)
	return nil
}

// AddMessage is called by any producer goroutine. Oversize messages are
// truncated or dropped per the writer's TruncateOversizeMessages policy
// before ever reaching the queue.
func (c *Core) AddMessage(ctx context.Context, m logmsg.Message) {
	if c.IsMessageTooLarge(m) {
		if c.cfg.TruncateOversizeMessages {
			m = m.Truncate(c.spec.MaxMessageSize())
		} else {
			c.stats.AddOversizeDropped(1)
			return
		}
	}

	if c.cfg.Synchronous {
		c.sendAndUpdate(ctx, []logmsg.Message{m})
		return
	}

	c.q.Enqueue(m)
}

// Stop requests shutdown. Safe to call more than once or from any
// goroutine; subsequent calls are no-ops.
func (c *Core) Stop() {
	c.stopOnce.Do(func() {
		c.shuttingDown.Store(true)
		c.q.Interrupt()
		if c.cancelWorker != nil {
			c.cancelWorker()
		}
	})
}

// AwaitTermination blocks until the worker has fully stopped or d
// elapses, whichever comes first. Returns true if the worker stopped.
func (c *Core) AwaitTermination(d time.Duration) bool {
	if c.cfg.Synchronous {
		return true
	}
	select {
	case <-c.workerDone:
		return true
	case <-time.After(d):
		return false
	}
}

func (c *Core) getBatchDelay() time.Duration {
	return time.Duration(c.batchDelay.Load())
}

// run is the background worker loop (spec §4.4).
func (c *Core) run(ctx context.Context) {
	defer close(c.workerDone)

	c.state.store(StateInitializing)
	initCtx, cancel := context.WithTimeout(ctx, c.cfg.InitializationTimeout)
	err := c.spec.EnsureDestinationAvailable(initCtx)
	cancel()
	if err != nil {
		c.log.Error("initialization failed, writer will not start", "error", err)
		c.stats.SetLastError("initialization failed", err)
		c.state.store(StateStopped)
		return
	}
	c.state.store(StateReady)

	var shutdownDeadline time.Time
	for {
		if c.shuttingDown.Load() {
			c.state.store(StateShuttingDown)
			if shutdownDeadline.IsZero() {
				shutdownDeadline = time.Now().Add(c.shutdownGrace())
			}
		}

		m, ok := c.q.DequeueTimeout(c.getBatchDelay())
		if !ok {
			if c.shuttingDown.Load() {
				if c.q.Size() == 0 {
					break
				}
				if time.Now().After(shutdownDeadline) {
					c.abandonRemaining()
					break
				}
			}
			continue
		}

		batch := c.buildBatch(m)
		c.sendAndUpdate(ctx, batch)

		if c.shuttingDown.Load() {
			if c.q.Size() == 0 {
				break
			}
			if time.Now().After(shutdownDeadline) {
				c.abandonRemaining()
				break
			}
		}
	}

	c.state.store(StateStopped)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := c.spec.Shutdown(shutdownCtx); err != nil {
		c.log.Warn("facade shutdown returned error", "error", err)
	}
	shutdownCancel()
}

// shutdownGrace bounds how long the drain loop runs past the point
// Stop() was observed: batchDelay scaled by a fixed iteration budget,
// plus an explicit grace period.
func (c *Core) shutdownGrace() time.Duration {
	const drainIterations = 50
	grace := c.cfg.DrainGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return c.getBatchDelay()*drainIterations + grace
}

func (c *Core) abandonRemaining() {
	var abandoned int64
	for {
		_, ok := c.q.Dequeue()
		if !ok {
			break
		}
		abandoned++
	}
	if abandoned > 0 {
		c.stats.AddMessagesDiscarded(abandoned)
		c.log.Warn("abandoned messages at shutdown deadline", "count", abandoned)
	}
}

// buildBatch greedily extends a batch starting from first, pulling
// further messages off the queue while service limits allow (spec §4.4
// step 3).
func (c *Core) buildBatch(first logmsg.Message) []logmsg.Message {
	batch := []logmsg.Message{first}
	bytesUsed := c.spec.EffectiveSize(first)
	maxBytes := c.spec.ServiceMaxBatchBytes()
	maxCount := c.spec.ServiceMaxBatchCount()
	pastWindow, futureWindow := c.spec.AcceptableWindow(first.Timestamp())

	for {
		next, ok := c.q.Dequeue()
		if !ok {
			break
		}

		if outsideWindow(next.Timestamp(), first.Timestamp(), pastWindow, futureWindow) {
			c.stats.AddMessagesDiscarded(1)
			break
		}

		size := c.spec.EffectiveSize(next)
		if bytesUsed+size > maxBytes || len(batch)+1 > maxCount {
			c.q.Requeue(next)
			break
		}

		batch = append(batch, next)
		bytesUsed += size
	}

	if c.cfg.EnableBatchLogging {
		c.log.Debug("built batch", "count", len(batch), "bytes", bytesUsed)
	}
	return batch
}

func outsideWindow(ts, first time.Time, past, future time.Duration) bool {
	if ts.Before(first.Add(-past)) {
		return true
	}
	if ts.After(first.Add(future)) {
		return true
	}
	return false
}

// sendAndUpdate dispatches batch to the facade and reconciles queue and
// statistics per spec §4.4 steps 4–5. No error escapes this method: a
// panic inside SendBatch is recovered, recorded as lastError, and the
// whole batch is requeued, so the worker goroutine never dies.
func (c *Core) sendAndUpdate(ctx context.Context, batch []logmsg.Message) {
	unsent, err := c.safeSendBatch(ctx, batch)

	if err != nil {
		c.log.Error("send batch failed", "error", err, "batchSize", len(batch))
		c.stats.SetLastError("send batch failed", err)

		var reinit *ErrNeedsReinit
		if errors.As(err, &reinit) {
			reinitCtx, cancel := context.WithTimeout(ctx, c.cfg.InitializationTimeout)
			if reErr := c.spec.EnsureDestinationAvailable(reinitCtx); reErr != nil {
				c.log.Error("re-initialization failed", "error", reErr)
			}
			cancel()
		}

		if sent := len(batch) - len(unsent); sent > 0 {
			c.stats.AddMessagesSent(int64(sent))
		}
		c.requeueReverse(unsent)
		c.stats.AddMessagesRequeued(int64(len(unsent)))
		return
	}

	sent := len(batch) - len(unsent)
	c.stats.AddMessagesSent(int64(sent))
	c.stats.SetLastBatchSize(int64(len(batch)))
	if len(unsent) > 0 {
		c.requeueReverse(unsent)
		c.stats.AddMessagesRequeued(int64(len(unsent)))
	}
}

// safeSendBatch recovers any panic out of the Specialization's SendBatch
// so the worker loop never dies from it (spec §4.4 step 5 / §7).
func (c *Core) safeSendBatch(ctx context.Context, batch []logmsg.Message) (unsent []logmsg.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			unsent = batch
			err = fmt.Errorf("panic in SendBatch: %v", r)
		}
	}()
	return c.spec.SendBatch(ctx, batch)
}

// requeueReverse puts msgs back at the head of the queue, iterating in
// reverse so relative order within msgs is preserved across the queue's
// LIFO-prepend Requeue.
func (c *Core) requeueReverse(msgs []logmsg.Message) {
	for i := len(msgs) - 1; i >= 0; i-- {
		c.q.Requeue(msgs[i])
	}
}

// QueueSize exposes the current approximate queue depth, e.g. for
// metrics export.
func (c *Core) QueueSize() int64 { return c.q.Size() }
