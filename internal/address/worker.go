package address

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
	"github.com/containerman17/hdwallet-discovery/internal/hdnode"
	"github.com/containerman17/hdwallet-discovery/internal/worker"
)

// deriveAddressRangeRequest mirrors the wire message in §6: a tagged
// worker request. Kind lets the channel carry other request shapes in
// future without breaking FIFO ordering (the "worker protocol
// polymorphism" design note).
type deriveAddressRangeRequest struct {
	Kind       string       `json:"type"`
	Node       wireNode     `json:"node"`
	Version    uint32       `json:"version"`
	FirstIndex uint32       `json:"firstIndex"`
	LastIndex  uint32       `json:"lastIndex"`
}

type wireNode struct {
	Depth       uint8  `json:"depth"`
	ChildNum    uint32 `json:"child_num"`
	Fingerprint uint32 `json:"fingerprint"`
	ChainCode   []byte `json:"chain_code"`
	PublicKey   []byte `json:"public_key"`
}

type deriveAddressRangeReply struct {
	Addresses []string `json:"addresses"`
}

// WorkerSource delegates address derivation to an external worker
// reached through a worker.Channel. The channel must be dedicated to
// this source (or externally serialised) since FIFO ordering is the
// channel's only correctness guarantee.
type WorkerSource struct {
	channel *worker.Channel
	node    hdnode.Projection
	version uint32
}

var _ Source = (*WorkerSource)(nil)

// NewWorkerSource builds a WorkerSource posting deriveAddressRange
// requests for node over channel, tagging each request with the given
// network version byte.
func NewWorkerSource(channel *worker.Channel, node hdnode.Projection, version uint32) *WorkerSource {
	return &WorkerSource{channel: channel, node: node, version: version}
}

func (s *WorkerSource) Derive(ctx context.Context, firstIndex, lastIndex uint32) ([]string, error) {
	if lastIndex < firstIndex {
		return nil, discoveryerr.NewDerivation(fmt.Errorf("invalid range [%d,%d]", firstIndex, lastIndex))
	}

	req := deriveAddressRangeRequest{
		Kind: "deriveAddressRange",
		Node: wireNode{
			Depth:       s.node.Depth,
			ChildNum:    s.node.ChildNum,
			Fingerprint: s.node.Fingerprint,
			ChainCode:   s.node.ChainCode[:],
			PublicKey:   s.node.CompressedPoint[:],
		},
		Version:    s.version,
		FirstIndex: firstIndex,
		LastIndex:  lastIndex,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, discoveryerr.NewDerivation(fmt.Errorf("marshal derive request: %w", err))
	}

	replyCh, err := s.channel.Post(ctx, payload)
	if err != nil {
		return nil, discoveryerr.NewDerivation(err)
	}

	select {
	case <-ctx.Done():
		return nil, discoveryerr.NewDerivation(ctx.Err())
	case reply := <-replyCh:
		if reply.Err != nil {
			return nil, reply.Err
		}
		var parsed deriveAddressRangeReply
		if err := json.Unmarshal(reply.Payload, &parsed); err != nil {
			return nil, discoveryerr.NewDerivation(fmt.Errorf("unmarshal derive reply: %w", err))
		}
		want := int(lastIndex-firstIndex) + 1
		if len(parsed.Addresses) != want {
			return nil, discoveryerr.NewDerivation(fmt.Errorf(
				"worker returned %d addresses, want %d", len(parsed.Addresses), want))
		}
		return parsed.Addresses, nil
	}
}
