package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/gocoro"
)

func newTestManager(t *testing.T) (*gocoro.Manager, context.Context) {
	t.Helper()
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(2))
	require.NoError(t, err)
	t.Cleanup(func() { m.Stop(ctx) })
	return m, ctx
}

func TestQueue_ScheduleFiresAfterDelay(t *testing.T) {
	m, ctx := newTestManager(t)
	q := New(m, nil)

	fired := make(chan time.Time, 1)
	start := time.Now()
	q.Schedule(ctx, 50*time.Millisecond, func(ctx context.Context) {
		fired <- time.Now()
	})

	select {
	case at := <-fired:
		require.GreaterOrEqual(t, at.Sub(start), 40*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}
}

func TestQueue_ScheduleNowFiresPromptly(t *testing.T) {
	m, ctx := newTestManager(t)
	q := New(m, nil)

	fired := make(chan struct{}, 1)
	q.ScheduleNow(ctx, func(ctx context.Context) { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("immediate job never fired")
	}
}

func TestQueue_CancelPreventsFiring(t *testing.T) {
	m, ctx := newTestManager(t)
	q := New(m, nil)

	fired := make(chan struct{}, 1)
	id := q.Schedule(ctx, 100*time.Millisecond, func(ctx context.Context) { close(fired) })
	require.NoError(t, q.Cancel(id))

	select {
	case <-fired:
		t.Fatal("cancelled job fired anyway")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestQueue_CancelAfterFireErrors(t *testing.T) {
	m, ctx := newTestManager(t)
	q := New(m, nil)

	fired := make(chan struct{}, 1)
	id := q.ScheduleNow(ctx, func(ctx context.Context) { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("job never fired")
	}
	time.Sleep(10 * time.Millisecond) // let the timer wheel retire the entry
	require.Error(t, q.Cancel(id))
}

func TestQueue_CustomTimerScheduler(t *testing.T) {
	m, ctx := newTestManager(t)
	q := New(m, &Config{TimerScheduler: 1})

	fired := make(chan struct{}, 1)
	q.ScheduleNow(ctx, func(ctx context.Context) { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("job never fired on non-default timer scheduler")
	}
}
