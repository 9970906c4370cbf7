package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func noop(context.Context) error { return nil }

func TestNewRejectsInvalidInput(t *testing.T) {
	_, err := New("refresh", "every now and then", nil, noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")

	_, err = New("refresh", "@every 30s", nil, nil)
	assert.Error(t, err)
}

func TestRunNowReturnsJobError(t *testing.T) {
	boom := errors.New("backend down")
	var calls int32
	s, err := New("refresh", "@every 1h", time.UTC, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return boom
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.RunNow(context.Background()), boom)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.True(t, s.Next().IsZero())
}

func TestScheduleFiresAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls int32
	s, err := New("refresh", "@every 1s", time.UTC, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	s.Start()
	assert.False(t, s.Next().IsZero())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, 5*time.Second, 50*time.Millisecond)
	s.Stop()

	after := atomic.LoadInt32(&calls)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	var cancelled atomic.Bool
	s, err := New("refresh", "@every 1s", time.UTC, func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	require.NoError(t, err)

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
	assert.True(t, cancelled.Load())
}
