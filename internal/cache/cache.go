// Package cache decorates an address.Source with exact-range
// memoisation: a cache hit on (first,last) returns immediately, a miss
// derives and populates the entry on success only. Keys are the
// "<first>-<last>" strings the persisted source blob in §6 uses, so
// Store/Restore round-trip directly through that wire shape.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/containerman17/hdwallet-discovery/internal/address"
)

// Source wraps an inner address.Source with exact-range memoisation.
type Source struct {
	inner address.Source

	mu      sync.RWMutex
	entries map[string][]string
}

var _ address.Source = (*Source)(nil)

// New wraps inner with an empty cache.
func New(inner address.Source) *Source {
	return &Source{inner: inner, entries: make(map[string][]string)}
}

func rangeKey(first, last uint32) string {
	return fmt.Sprintf("%d-%d", first, last)
}

func (s *Source) Derive(ctx context.Context, firstIndex, lastIndex uint32) ([]string, error) {
	key := rangeKey(firstIndex, lastIndex)

	s.mu.RLock()
	if hit, ok := s.entries[key]; ok {
		s.mu.RUnlock()
		out := make([]string, len(hit))
		copy(out, hit)
		return out, nil
	}
	s.mu.RUnlock()

	addrs, err := s.inner.Derive(ctx, firstIndex, lastIndex)
	if err != nil {
		// Failures are never cached.
		return nil, err
	}

	s.mu.Lock()
	s.entries[key] = addrs
	s.mu.Unlock()

	return addrs, nil
}

// Store returns a serialisable snapshot of the cache, matching the
// persisted "source.cache" blob shape from §6.
func (s *Source) Store() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.entries))
	for k, v := range s.entries {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Restore replaces the cache's contents with data. The prefetch slot
// (owned by a different decorator) is never part of this blob.
func (s *Source) Restore(data map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]string, len(data))
	for k, v := range data {
		cp := make([]string, len(v))
		copy(cp, v)
		s.entries[k] = cp
	}
}
