package gocoro

import (
	"sync"
	"weak"
)

// registry tracks live coroutines on one Scheduler using weak pointers, so
// a coroutine that has already been garbage collected does not keep a slot
// occupied, and scavenges stale entries via a ring-buffer cursor. Ported
// from eventloop/registry.go (there: a weak-pointer promise registry with
// ring-buffer scavenging); here it hands each coroutine its id and
// generation. Timers and IoEvents do not go through it: they hold the
// *Coroutine itself.
type registry struct {
	data map[uint64]weak.Pointer[Coroutine]
	ring []uint64
	head int

	nextID     uint64
	generation map[uint64]uint64

	mu         sync.RWMutex
	scavengeMu sync.Mutex
}

func newRegistry() *registry {
	return &registry{
		data:       make(map[uint64]weak.Pointer[Coroutine]),
		ring:       make([]uint64, 0, 256),
		generation: make(map[uint64]uint64),
		nextID:     1,
	}
}

// register allocates a new stable id for co, bumping the generation counter
// for that id's slot so a prior holder of the same numeric id (after a full
// wraparound, which in practice never happens within a process lifetime)
// can never be mistaken for this one.
func (r *registry) register(co *Coroutine) (id uint64, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id = r.nextID
	r.nextID++
	generation = r.generation[id] + 1
	r.generation[id] = generation

	r.data[id] = weak.Make(co)
	r.ring = append(r.ring, id)
	return id, generation
}

// lookup resolves a (id, generation) pair to its live *Coroutine, or nil if
// it has terminated, been garbage collected, or the generation no longer
// matches (stale reference).
func (r *registry) lookup(id, generation uint64) *Coroutine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.generation[id] != generation {
		return nil
	}
	wp, ok := r.data[id]
	if !ok {
		return nil
	}
	return wp.Value()
}

// Scavenge walks up to batchSize entries of the ring buffer, dropping
// entries whose coroutine has been collected or has terminated.
func (r *registry) Scavenge(batchSize int) {
	r.scavengeMu.Lock()
	defer r.scavengeMu.Unlock()

	if batchSize <= 0 {
		return
	}

	r.mu.RLock()
	ringLen := len(r.ring)
	if ringLen == 0 {
		r.mu.RUnlock()
		return
	}
	start := r.head
	end := min(start+batchSize, ringLen)

	type item struct {
		id  uint64
		idx int
	}
	candidates := make([]item, 0, end-start)
	for i := start; i < end; i++ {
		if id := r.ring[i]; id != 0 {
			candidates = append(candidates, item{id, i})
		}
	}
	wps := make([]weak.Pointer[Coroutine], len(candidates))
	kept := candidates[:0]
	for _, c := range candidates {
		if wp, ok := r.data[c.id]; ok {
			wps[len(kept)] = wp
			kept = append(kept, c)
		}
	}
	wps = wps[:len(kept)]

	nextHead := end
	if nextHead >= ringLen {
		nextHead = 0
	}
	r.mu.RUnlock()

	cycleComplete := nextHead == 0

	var toRemove []item
	for i, c := range kept {
		co := wps[i].Value()
		if co == nil || co.terminated() {
			toRemove = append(toRemove, c)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range toRemove {
		delete(r.data, c.id)
		if c.idx < len(r.ring) && r.ring[c.idx] == c.id {
			r.ring[c.idx] = 0
		}
	}
	r.head = nextHead
	if cycleComplete {
		active, capacity := len(r.data), len(r.ring)
		if capacity > 256 && float64(active) < float64(capacity)*0.25 {
			r.compactAndRenewLocked()
		}
	}
}

// RejectAll marks every tracked coroutine as terminated-by-shutdown. Called
// when a Scheduler stops, so no coroutine is left registered past its
// owner's lifetime.
func (r *registry) RejectAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, wp := range r.data {
		if co := wp.Value(); co != nil {
			co.markShutdown()
		}
		delete(r.data, id)
	}
	r.ring = r.ring[:0]
	r.head = 0
}

// compactAndRenewLocked drops null markers from the ring and rebuilds the
// map, reclaiming the backing arrays the way eventloop's registry does
// (Go's delete doesn't shrink a map's bucket array).
func (r *registry) compactAndRenewLocked() {
	newRing := make([]uint64, 0, len(r.data))
	newData := make(map[uint64]weak.Pointer[Coroutine], len(r.data))
	for _, id := range r.ring {
		if id == 0 {
			continue
		}
		if wp, ok := r.data[id]; ok {
			newRing = append(newRing, id)
			newData[id] = wp
		}
	}
	r.ring = newRing
	r.data = newData
	r.head = 0
}
