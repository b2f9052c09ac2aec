//go:build linux || darwin

package netco

import (
	"context"
	"net"
	"sync"

	"github.com/joeycumines/gocoro"
)

// dnsMutexes serializes DNS lookups per scheduler, mirroring the source
// design's named invariant that only one lookup proceeds per scheduler at
// a time. Go's resolver (net.DefaultResolver) is already goroutine-safe,
// so this buys no correctness on its own — it is kept purely for
// behavioral fidelity to that invariant, called out here explicitly
// rather than silently dropped.
var (
	dnsMu      sync.Mutex
	dnsMutexes = map[uint64]*sync.Mutex{}
)

func schedulerDNSMutex(schedID uint64) *sync.Mutex {
	dnsMu.Lock()
	defer dnsMu.Unlock()
	m, ok := dnsMutexes[schedID]
	if !ok {
		m = &sync.Mutex{}
		dnsMutexes[schedID] = m
	}
	return m
}

// LookupHost resolves host to a list of IP addresses, serialized against
// other LookupHost calls from coroutines on the same scheduler.
func LookupHost(ctx context.Context, host string) ([]string, error) {
	schedID, ok := gocoro.SchedID(ctx)
	if ok {
		mu := schedulerDNSMutex(schedID)
		mu.Lock()
		defer mu.Unlock()
	}
	return net.DefaultResolver.LookupHost(ctx, host)
}
