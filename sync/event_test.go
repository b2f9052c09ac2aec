package co

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/gocoro"
)

func TestEvent_WaitThenSignal(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(2))
	require.NoError(t, err)
	defer m.Stop(ctx)

	ev := NewEvent()
	woke := make(chan struct{})

	m.Go(ctx, func(ctx context.Context) {
		require.NoError(t, ev.Wait(ctx))
		close(woke)
	})

	time.Sleep(20 * time.Millisecond)
	ev.Signal()

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woke after Signal")
	}
}

func TestEvent_SignalThenWaitReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	defer m.Stop(ctx)

	ev := NewEvent()
	ev.Signal()
	require.True(t, ev.IsSignaled())

	done := make(chan struct{})
	m.Go(ctx, func(ctx context.Context) {
		require.NoError(t, ev.Wait(ctx))
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait blocked on an already-signaled event")
	}
}

func TestEvent_ResetReArmsWait(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	defer m.Stop(ctx)

	ev := NewEvent()
	ev.Signal()
	ev.Reset()
	require.False(t, ev.IsSignaled())

	woke := make(chan struct{})
	m.Go(ctx, func(ctx context.Context) {
		require.NoError(t, ev.Wait(ctx))
		close(woke)
	})

	select {
	case <-woke:
		t.Fatal("Wait returned before the post-Reset Signal")
	case <-time.After(50 * time.Millisecond):
	}

	ev.Signal()
	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woke after post-Reset Signal")
	}
}

func TestEvent_WaitTimeoutExpires(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	defer m.Stop(ctx)

	ev := NewEvent()
	result := make(chan bool, 1)
	m.Go(ctx, func(ctx context.Context) {
		ready, err := ev.WaitTimeout(ctx, 30*time.Millisecond)
		require.NoError(t, err)
		result <- ready
	})

	select {
	case ready := <-result:
		require.False(t, ready, "WaitTimeout should report timeout, not readiness")
	case <-time.After(2 * time.Second):
		t.Fatal("WaitTimeout never returned")
	}
}

func TestEvent_SignalWinsAgainstWaitTimeout(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	defer m.Stop(ctx)

	ev := NewEvent()
	result := make(chan bool, 1)
	m.Go(ctx, func(ctx context.Context) {
		ready, err := ev.WaitTimeout(ctx, 2*time.Second)
		require.NoError(t, err)
		result <- ready
	})

	time.Sleep(20 * time.Millisecond)
	ev.Signal()

	select {
	case ready := <-result:
		require.True(t, ready, "WaitTimeout should report readiness when Signal wins the race")
	case <-time.After(3 * time.Second):
		t.Fatal("WaitTimeout never returned")
	}
}

func TestEvent_WaitOutsideCoroutineErrors(t *testing.T) {
	ev := NewEvent()
	err := ev.Wait(context.Background())
	require.ErrorIs(t, err, gocoro.ErrNotInCoroutine)
}
