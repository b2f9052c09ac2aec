package co

import (
	"context"
	"sync"

	"github.com/joeycumines/gocoro"
)

// Pool is a per-scheduler object pool modeled on coost's co::Pool: it is
// bound to a *gocoro.Manager at construction, sized to that Manager's
// scheduler count once, and never resized. A coroutine resumed through
// another scheduler's AddReadyTask keeps its owner, so it still draws from
// its owning scheduler's slot.
//
// Get/Put route on the calling coroutine's scheduler id (via
// gocoro.SchedID), so same-scheduler callers never contend with each
// other's pool slot; callers outside a coroutine always use slot 0.
type Pool[T any] struct {
	create   func() T
	destroy  func(T)
	capacity int

	slots []poolSlot[T]
}

type poolSlot[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewPool builds a Pool bound to m, with up to capacity idle items retained
// per scheduler. create constructs a fresh T on an empty pool; destroy (may
// be nil) disposes of an item evicted for being over capacity, or drained
// by Close.
func NewPool[T any](m *gocoro.Manager, capacity int, create func() T, destroy func(T)) *Pool[T] {
	n := m.SchedulerCount()
	return &Pool[T]{
		create:   create,
		destroy:  destroy,
		capacity: capacity,
		slots:    make([]poolSlot[T], n),
	}
}

func (p *Pool[T]) slotIndex(ctx context.Context) int {
	id, ok := gocoro.SchedID(ctx)
	if !ok {
		return 0
	}
	return int(id) % len(p.slots)
}

// Get returns a pooled item, creating a fresh one if the calling
// coroutine's scheduler slot is empty.
func (p *Pool[T]) Get(ctx context.Context) T {
	slot := &p.slots[p.slotIndex(ctx)]
	slot.mu.Lock()
	n := len(slot.items)
	if n == 0 {
		slot.mu.Unlock()
		return p.create()
	}
	v := slot.items[n-1]
	slot.items = slot.items[:n-1]
	slot.mu.Unlock()
	return v
}

// Put returns v to the pool, destroying it instead if the calling
// coroutine's scheduler slot is already at capacity.
func (p *Pool[T]) Put(ctx context.Context, v T) {
	slot := &p.slots[p.slotIndex(ctx)]
	slot.mu.Lock()
	if len(slot.items) < p.capacity {
		slot.items = append(slot.items, v)
		slot.mu.Unlock()
		return
	}
	slot.mu.Unlock()
	if p.destroy != nil {
		p.destroy(v)
	}
}

// Close destroys every item currently idle in the pool. Callers should
// invoke it after Manager.Stop, once no coroutine can be mid-Get/Put.
func (p *Pool[T]) Close() {
	for i := range p.slots {
		slot := &p.slots[i]
		slot.mu.Lock()
		items := slot.items
		slot.items = nil
		slot.mu.Unlock()
		if p.destroy != nil {
			for _, v := range items {
				p.destroy(v)
			}
		}
	}
}
