package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SucceedsImmediately(t *testing.T) {
	calls := 0
	value, ok := Run(context.Background(), time.Now().Add(time.Second), time.Millisecond, 0, false,
		func() (Result[int], error) {
			calls++
			return Result[int]{Value: 42, Done: true}, nil
		}, nil)

	require.True(t, ok)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, calls)
}

func TestRun_RetriesUntilDone(t *testing.T) {
	calls := 0
	value, ok := Run(context.Background(), time.Now().Add(2*time.Second), time.Millisecond, 10*time.Millisecond, false,
		func() (Result[string], error) {
			calls++
			if calls < 3 {
				return Result[string]{}, nil
			}
			return Result[string]{Value: "ready", Done: true}, nil
		}, nil)

	require.True(t, ok)
	assert.Equal(t, "ready", value)
	assert.Equal(t, 3, calls)
}

func TestRun_DeadlineExpires(t *testing.T) {
	_, ok := Run(context.Background(), time.Now().Add(30*time.Millisecond), 10*time.Millisecond, 0, false,
		func() (Result[int], error) {
			return Result[int]{}, nil
		}, nil)

	assert.False(t, ok)
}

func TestRun_ContextCancelReturnsFalse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, ok := Run(ctx, time.Now().Add(5*time.Second), 10*time.Millisecond, 0, false,
		func() (Result[int], error) {
			return Result[int]{}, nil
		}, nil)

	assert.False(t, ok)
}

func TestRun_ErrorSwallowedAndRetried(t *testing.T) {
	calls := 0
	boom := errors.New("transient")

	value, ok := Run(context.Background(), time.Now().Add(2*time.Second), time.Millisecond, 10*time.Millisecond, false,
		func() (Result[int], error) {
			calls++
			if calls < 2 {
				return Result[int]{}, boom
			}
			return Result[int]{Value: 7, Done: true}, nil
		},
		func(err error) ErrAction { return ErrRetry })

	require.True(t, ok)
	assert.Equal(t, 7, value)
}

func TestRun_ErrorAborts(t *testing.T) {
	boom := errors.New("fatal")
	calls := 0

	_, ok := Run(context.Background(), time.Now().Add(2*time.Second), time.Millisecond, 0, false,
		func() (Result[int], error) {
			calls++
			return Result[int]{}, boom
		},
		func(err error) ErrAction { return ErrAbort })

	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestRun_LinearBackoff(t *testing.T) {
	calls := 0
	start := time.Now()

	_, ok := Run(context.Background(), start.Add(500*time.Millisecond), 20*time.Millisecond, 0, true,
		func() (Result[int], error) {
			calls++
			if calls < 4 {
				return Result[int]{}, nil
			}
			return Result[int]{Value: 1, Done: true}, nil
		}, nil)

	require.True(t, ok)
	// linear: 20 + 40 + 60 = 120ms minimum elapsed before success on 4th call
	assert.GreaterOrEqual(t, time.Since(start), 110*time.Millisecond)
}
