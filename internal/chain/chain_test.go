package chain

import (
	"context"
	"fmt"
	"testing"

	"github.com/containerman17/hdwallet-discovery/internal/address"
)

type sequentialSource struct{}

var _ address.Source = sequentialSource{}

func (sequentialSource) Derive(ctx context.Context, first, last uint32) ([]string, error) {
	addrs := make([]string, last-first+1)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("addr-%d", first+uint32(i))
	}
	return addrs, nil
}

func TestChainNextChunkAdvancesAndIndexes(t *testing.T) {
	c := New(sequentialSource{}, 20)

	for k := 1; k <= 3; k++ {
		if _, err := c.NextChunk(context.Background()); err != nil {
			t.Fatalf("chunk %d: %v", k, err)
		}
		if c.NextIndex() != uint32(k)*20 {
			t.Fatalf("after %d chunks, nextIndex = %d, want %d", k, c.NextIndex(), k*20)
		}
	}

	for i := uint32(0); i < c.NextIndex(); i++ {
		addr, ok := c.AddressOf(i)
		if !ok {
			t.Fatalf("index %d: missing address", i)
		}
		idx, ok := c.IndexOf(addr)
		if !ok || idx != i {
			t.Fatalf("AddressOf(IndexOf) round-trip broke at %d", i)
		}
	}
}
