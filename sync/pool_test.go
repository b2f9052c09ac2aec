package co

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/gocoro"
)

func TestPool_ReusesPutItems(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(2))
	require.NoError(t, err)
	defer m.Stop(ctx)

	created := 0
	pool := NewPool(m, 4, func() int {
		created++
		return created
	}, nil)

	v := pool.Get(ctx) // outside a coroutine: slot 0
	require.Equal(t, 1, created)
	pool.Put(ctx, v)

	v2 := pool.Get(ctx)
	require.Equal(t, v, v2, "Put item should be reused by a subsequent Get on the same slot")
	require.Equal(t, 1, created, "reuse should not allocate a new item")
}

func TestPool_DestroysOverCapacity(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	defer m.Stop(ctx)

	var destroyed []int
	pool := NewPool(m, 1, func() int { return 1 }, func(v int) {
		destroyed = append(destroyed, v)
	})

	pool.Put(ctx, 10) // fills the single capacity slot
	pool.Put(ctx, 20) // over capacity: destroyed immediately

	require.Equal(t, []int{20}, destroyed)
}

func TestPool_CloseDestroysRemaining(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	defer m.Stop(ctx)

	var destroyed []int
	pool := NewPool(m, 4, func() int { return 0 }, func(v int) {
		destroyed = append(destroyed, v)
	})

	pool.Put(ctx, 1)
	pool.Put(ctx, 2)
	pool.Close()

	require.ElementsMatch(t, []int{1, 2}, destroyed)
}

func TestPool_PerSchedulerSlots(t *testing.T) {
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(3))
	require.NoError(t, err)
	defer m.Stop(ctx)

	pool := NewPool(m, 4, func() int { return -1 }, nil)

	done := make(chan struct{})
	m.Scheduler(0).Go(ctx, func(ctx context.Context) {
		pool.Put(ctx, 42)
		close(done)
	})
	<-done

	// Get from a different scheduler's coroutine must not observe the item
	// put into scheduler 0's slot.
	result := make(chan int, 1)
	m.Scheduler(1).Go(ctx, func(ctx context.Context) {
		result <- pool.Get(ctx)
	})
	require.Equal(t, -1, <-result)
}
