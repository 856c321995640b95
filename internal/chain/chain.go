// Package chain owns the address-index bimap for one HD chain and
// paces derivation through chunkSize-sized batches.
package chain

import (
	"context"
	"fmt"

	"github.com/containerman17/hdwallet-discovery/internal/address"
	"github.com/containerman17/hdwallet-discovery/internal/bimap"
)

// DefaultChunkSize is the default number of addresses derived per
// nextChunk call (BIP44 convention).
const DefaultChunkSize = 20

// Chain maps address indices to addresses (and back) for one HD chain,
// deriving addresses chunkSize at a time through an address.Source. The
// orchestrator (internal/discovery) must never issue overlapping
// nextChunk calls against the same Chain.
type Chain struct {
	source    address.Source
	chunkSize uint32
	bimap     *bimap.Map
	nextIndex uint32
}

// New builds a Chain deriving through source, chunkSize addresses per
// call. chunkSize <= 0 falls back to DefaultChunkSize.
func New(source address.Source, chunkSize uint32) *Chain {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chain{
		source:    source,
		chunkSize: chunkSize,
		bimap:     bimap.New(),
	}
}

// IndexOf returns the index an address was assigned, if any.
func (c *Chain) IndexOf(addr string) (uint32, bool) {
	return c.bimap.IndexOf(addr)
}

// AddressOf returns the address assigned to index, if any.
func (c *Chain) AddressOf(index uint32) (string, bool) {
	return c.bimap.ValueAt(index)
}

// NextIndex is the number of addresses derived so far — equivalently,
// the next index that will be assigned.
func (c *Chain) NextIndex() uint32 {
	return c.nextIndex
}

// NextChunk derives [nextIndex, nextIndex+chunkSize-1], inserts the
// results into the bimap in order, and advances nextIndex by the number
// of addresses returned. It returns the newly derived addresses (in
// index order) so callers can subscribe/look up transactions for
// exactly this batch.
func (c *Chain) NextChunk(ctx context.Context) ([]string, error) {
	first := c.nextIndex
	last := first + c.chunkSize - 1

	addrs, err := c.source.Derive(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("derive chunk [%d,%d]: %w", first, last, err)
	}

	for i, addr := range addrs {
		c.bimap.Put(first+uint32(i), addr)
	}
	c.nextIndex += uint32(len(addrs))

	return addrs, nil
}

// ChunkSize returns the configured chunk size.
func (c *Chain) ChunkSize() uint32 {
	return c.chunkSize
}
