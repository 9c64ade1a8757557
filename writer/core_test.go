package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehsaniara/shiplog/internal/logging"
	"github.com/ehsaniara/shiplog/logmsg"
	"github.com/ehsaniara/shiplog/queue"
	"github.com/ehsaniara/shiplog/stats"
)

// fakeSpec is a programmable Specialization for exercising Core in
// isolation from any real AWS facade.
type fakeSpec struct {
	mu sync.Mutex

	maxMessageSize    int
	maxBatchBytes     int
	maxBatchCount     int
	overheadPerMsg    int
	pastWindow        time.Duration
	futureWindow      time.Duration
	initErr           error
	initCalls         int
	sentBatches       [][]logmsg.Message
	nextUnsent        []logmsg.Message
	nextErr           error
	sendFunc          func(batch []logmsg.Message) ([]logmsg.Message, error)
}

func newFakeSpec() *fakeSpec {
	return &fakeSpec{
		maxMessageSize: 1 << 20,
		maxBatchBytes:  1 << 20,
		maxBatchCount:  10000,
		pastWindow:     365 * 24 * time.Hour,
		futureWindow:   365 * 24 * time.Hour,
	}
}

func (f *fakeSpec) EnsureDestinationAvailable(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeSpec) EffectiveSize(m logmsg.Message) int { return m.Size() + f.overheadPerMsg }
func (f *fakeSpec) MaxMessageSize() int                { return f.maxMessageSize }
func (f *fakeSpec) ServiceMaxBatchBytes() int          { return f.maxBatchBytes }
func (f *fakeSpec) ServiceMaxBatchCount() int          { return f.maxBatchCount }
func (f *fakeSpec) AcceptableWindow(first time.Time) (time.Duration, time.Duration) {
	return f.pastWindow, f.futureWindow
}

func (f *fakeSpec) SendBatch(ctx context.Context, batch []logmsg.Message) ([]logmsg.Message, error) {
	f.mu.Lock()
	f.sentBatches = append(f.sentBatches, batch)
	fn := f.sendFunc
	unsent, err := f.nextUnsent, f.nextErr
	f.nextUnsent, f.nextErr = nil, nil
	f.mu.Unlock()

	if fn != nil {
		return fn(batch)
	}
	return unsent, err
}

func (f *fakeSpec) Shutdown(ctx context.Context) error { return nil }

func (f *fakeSpec) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sentBatches)
}

func (f *fakeSpec) totalSent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.sentBatches {
		n += len(b)
	}
	return n
}

func baseConfig() Config {
	return Config{
		BatchDelay:            20 * time.Millisecond,
		DiscardThreshold:      10000,
		DiscardAction:         queue.DiscardOldest,
		InitializationTimeout: time.Second,
		DrainGrace:            500 * time.Millisecond,
	}
}

func testLogger() *logging.Logger {
	return logging.NewWithConfig(logging.Config{Level: logging.Error})
}

func TestCore_SmokeAllMessagesSent(t *testing.T) {
	spec := newFakeSpec()
	spec.maxBatchCount = 300
	st := stats.New()
	c := New(baseConfig(), st, testLogger(), spec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	total := 1001
	for i := 0; i < total; i++ {
		c.AddMessage(ctx, logmsg.New(time.Now(), "m"))
	}

	require.Eventually(t, func() bool {
		return st.Snapshot().MessagesSent == int64(total)
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(0), st.Snapshot().MessagesDiscarded)
	assert.LessOrEqual(t, spec.batchCount(), 10) // well within "a handful of batches"
}

func TestCore_OversizeDropWhenNotTruncating(t *testing.T) {
	spec := newFakeSpec()
	spec.maxMessageSize = 10
	st := stats.New()
	cfg := baseConfig()
	cfg.TruncateOversizeMessages = false
	c := New(cfg, st, testLogger(), spec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	c.AddMessage(ctx, logmsg.New(time.Now(), "this message is definitely too long"))

	require.Eventually(t, func() bool {
		return st.Snapshot().OversizeDropped == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), st.Snapshot().MessagesSent)
}

func TestCore_OversizeTruncates(t *testing.T) {
	spec := newFakeSpec()
	spec.maxMessageSize = 5
	st := stats.New()
	cfg := baseConfig()
	cfg.TruncateOversizeMessages = true
	c := New(cfg, st, testLogger(), spec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	c.AddMessage(ctx, logmsg.New(time.Now(), "abcdefgh"))

	require.Eventually(t, func() bool {
		return st.Snapshot().MessagesSent == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, 1, spec.batchCount())
	assert.LessOrEqual(t, spec.sentBatches[0][0].Size(), 5)
}

func TestCore_RequeueOnPartialFailure(t *testing.T) {
	spec := newFakeSpec()
	st := stats.New()
	cfg := baseConfig()
	c := New(cfg, st, testLogger(), spec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failOnce := true
	spec.sendFunc = func(batch []logmsg.Message) ([]logmsg.Message, error) {
		if failOnce {
			failOnce = false
			return []logmsg.Message{batch[len(batch)-1]}, nil
		}
		return nil, nil
	}

	require.NoError(t, c.Start(ctx))
	c.AddMessage(ctx, logmsg.New(time.Now(), "only"))

	require.Eventually(t, func() bool {
		return st.Snapshot().MessagesSent == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), st.Snapshot().MessagesRequeued)
}

func TestCore_RequeueOnlyUnsentWhenSendBatchErrors(t *testing.T) {
	spec := newFakeSpec()
	spec.maxBatchCount = 5
	st := stats.New()
	c := New(baseConfig(), st, testLogger(), spec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failOnce := true
	spec.sendFunc = func(batch []logmsg.Message) ([]logmsg.Message, error) {
		if failOnce {
			failOnce = false
			return []logmsg.Message{batch[len(batch)-1]}, errors.New("one message failed to publish")
		}
		return nil, nil
	}

	require.NoError(t, c.Start(ctx))
	for i := 0; i < 5; i++ {
		c.AddMessage(ctx, logmsg.New(time.Now(), "m"))
	}

	require.Eventually(t, func() bool {
		return st.Snapshot().MessagesSent == 5
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), st.Snapshot().MessagesRequeued)
}

func TestCore_StopIsIdempotent(t *testing.T) {
	spec := newFakeSpec()
	st := stats.New()
	c := New(baseConfig(), st, testLogger(), spec)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	c.Stop()
	c.Stop()
	c.Stop()

	assert.True(t, c.AwaitTermination(2*time.Second))
}

func TestCore_SynchronousModeSendsBeforeReturn(t *testing.T) {
	spec := newFakeSpec()
	st := stats.New()
	cfg := baseConfig()
	cfg.Synchronous = true
	c := New(cfg, st, testLogger(), spec)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	c.AddMessage(ctx, logmsg.New(time.Now(), "sync"))

	assert.Equal(t, int64(1), st.Snapshot().MessagesSent)
	assert.Equal(t, 1, spec.batchCount())
}

func TestCore_InitializationFailureStopsWithoutDraining(t *testing.T) {
	spec := newFakeSpec()
	spec.initErr = assertErr{"boom"}
	st := stats.New()
	c := New(baseConfig(), st, testLogger(), spec)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		return c.State() == StateStopped
	}, time.Second, 10*time.Millisecond)

	assert.NotNil(t, st.Snapshot().LastError.Err)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestCore_WindowViolationDropsNotRequeues(t *testing.T) {
	spec := newFakeSpec()
	spec.pastWindow = time.Hour
	spec.futureWindow = time.Hour
	st := stats.New()
	c := New(baseConfig(), st, testLogger(), spec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	now := time.Now()
	c.AddMessage(ctx, logmsg.New(now, "first"))
	c.AddMessage(ctx, logmsg.New(now.Add(-3*time.Hour), "too old"))

	require.Eventually(t, func() bool {
		return st.Snapshot().MessagesSent+st.Snapshot().MessagesDiscarded >= 1
	}, time.Second, 10*time.Millisecond)

	// the out-of-window message must never appear in a sent batch
	for _, batch := range spec.sentBatches {
		for _, m := range batch {
			assert.NotEqual(t, "too old", m.Text())
		}
	}
}
