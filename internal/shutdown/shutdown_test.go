package shutdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeWriter struct {
	mu       sync.Mutex
	stopped  bool
	awaited  bool
	awaitDur time.Duration
}

func (f *fakeWriter) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeWriter) AwaitTermination(d time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awaited = true
	f.awaitDur = d
	return true
}

func (f *fakeWriter) snapshot() (stopped, awaited bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped, f.awaited
}

func TestStopAll_StopsAndAwaitsEveryRegisteredWriter(t *testing.T) {
	r := New(5 * time.Second)
	w1, w2 := &fakeWriter{}, &fakeWriter{}
	r.Register(w1)
	r.Register(w2)

	r.StopAll()

	for _, w := range []*fakeWriter{w1, w2} {
		stopped, awaited := w.snapshot()
		assert.True(t, stopped)
		assert.True(t, awaited)
	}
}

func TestStopAll_IsIdempotent(t *testing.T) {
	r := New(time.Second)
	w := &fakeWriter{}
	r.Register(w)

	r.StopAll()
	r.StopAll()

	stopped, awaited := w.snapshot()
	assert.True(t, stopped)
	assert.True(t, awaited)
}

func TestNew_DefaultsTimeoutWhenNonPositive(t *testing.T) {
	r := New(0)
	assert.Equal(t, 10*time.Second, r.timeout)
}

func TestArm_IsIdempotent(t *testing.T) {
	r := New(time.Second)
	r.Arm()
	first := r.sigCh
	r.Arm()
	assert.Same(t, first, r.sigCh)
	r.Disarm()
}

func TestDisarm_WithoutArmIsNoop(t *testing.T) {
	r := New(time.Second)
	assert.NotPanics(t, func() { r.Disarm() })
}
