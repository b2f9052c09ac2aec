package co

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/gocoro"
)

func TestMutex_ExclusionAcrossSchedulers(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(4))
	require.NoError(t, err)
	defer m.Stop(ctx)

	var mu Mutex
	counter := 0
	const n = 50
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		m.Go(ctx, func(ctx context.Context) {
			require.NoError(t, mu.Lock(ctx))
			counter++
			mu.Unlock()
			done <- struct{}{}
		})
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("mutex-guarded coroutines never completed")
		}
	}
	require.Equal(t, n, counter)
}

func TestMutex_TryLock(t *testing.T) {
	var mu Mutex
	require.True(t, mu.TryLock())
	require.False(t, mu.TryLock(), "second TryLock should fail while held")
	mu.Unlock()
	require.True(t, mu.TryLock(), "TryLock should succeed once released")
}

func TestMutex_FIFOOrdering(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	defer m.Stop(ctx)

	var mu Mutex
	require.True(t, mu.TryLock())

	const n = 5
	order := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		m.Go(ctx, func(ctx context.Context) {
			require.NoError(t, mu.Lock(ctx))
			order <- i
			mu.Unlock()
		})
		time.Sleep(10 * time.Millisecond) // let each register as a waiter in submission order
	}

	mu.Unlock() // release the initial TryLock, starting the handoff chain

	for i := 0; i < n; i++ {
		select {
		case got := <-order:
			require.Equal(t, i, got, "waiters should acquire in FIFO order")
		case <-time.After(5 * time.Second):
			t.Fatal("FIFO chain stalled")
		}
	}
}
