// Package prefetch decorates an address.Source with a one-slot
// speculative look-ahead: whenever a range resolves, the immediately
// following range of the same size is derived in the background so the
// next caller-request (the common case, since Chain always asks for
// contiguous chunkSize-sized ranges) doesn't pay the derivation
// round-trip. Grounded on the teacher's Fetcher.StreamBlocks sliding
// pending-fetch map, bounded here to exactly one outstanding slot per
// the source spec's invariant. Close must be called when a Source is
// dropped so an outstanding speculative derivation doesn't leak its
// goroutine.
package prefetch

import (
	"context"
	"sync"

	"github.com/containerman17/hdwallet-discovery/internal/address"
)

// slot is the single outstanding speculative derivation.
type slot struct {
	firstIndex, lastIndex uint32
	result                chan result
}

type result struct {
	addrs []string
	err   error
}

// Source wraps an inner address.Source with one-slot look-ahead.
type Source struct {
	inner address.Source

	// ctx bounds every speculative derivation this Source starts; Close
	// cancels it so a prefetch blocked on an inner.Derive that respects
	// ctx (e.g. WorkerSource waiting on a worker reply that will never
	// arrive) unblocks instead of leaking, per §9's close semantics.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *slot
}

var _ address.Source = (*Source)(nil)

// New wraps inner with one-slot prefetching. Speculative derivations run
// under a context derived from parent; cancelling parent or calling
// Close has the same effect.
func New(parent context.Context, inner address.Source) *Source {
	ctx, cancel := context.WithCancel(parent)
	return &Source{inner: inner, ctx: ctx, cancel: cancel}
}

// Close cancels any in-flight speculative derivation and detaches the
// current slot so nothing can adopt it afterward. Safe to call more
// than once.
func (s *Source) Close() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.cancel()
}

func (s *Source) Derive(ctx context.Context, firstIndex, lastIndex uint32) ([]string, error) {
	s.mu.Lock()
	matched := s.current
	if matched != nil && (matched.firstIndex != firstIndex || matched.lastIndex != lastIndex) {
		matched = nil
	}
	// Invalidate unconditionally: a matching slot is consumed here, a
	// non-matching one is simply discarded (it becomes orphaned; its
	// eventual completion must not poison anything since nothing else
	// holds a reference to it).
	s.current = nil
	s.mu.Unlock()

	var addrs []string
	var err error
	if matched != nil {
		r := <-matched.result
		addrs, err = r.addrs, r.err
	} else {
		addrs, err = s.inner.Derive(ctx, firstIndex, lastIndex)
	}

	// Install the new slot before returning, regardless of whether this
	// call hit or missed, so the next contiguous caller benefits.
	if err == nil {
		s.startPrefetch(firstIndex, lastIndex)
	}

	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// startPrefetch launches speculative derivation of the range immediately
// following [first,last], sized equally, and installs it as the new
// slot. It never waits on the result; errors only surface if a later
// caller adopts this slot.
func (s *Source) startPrefetch(first, last uint32) {
	size := last - first + 1
	nextFirst := last + 1
	nextLast := nextFirst + size - 1

	sl := &slot{
		firstIndex: nextFirst,
		lastIndex:  nextLast,
		result:     make(chan result, 1),
	}

	s.mu.Lock()
	s.current = sl
	s.mu.Unlock()

	go func() {
		addrs, err := s.inner.Derive(s.ctx, nextFirst, nextLast)
		sl.result <- result{addrs: addrs, err: err}
	}()
}
