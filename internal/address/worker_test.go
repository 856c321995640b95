package address

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
	"github.com/containerman17/hdwallet-discovery/internal/hdnode"
	"github.com/containerman17/hdwallet-discovery/internal/worker"
)

type fakeTransport struct {
	channel    *worker.Channel
	respondsOK bool
}

func (f *fakeTransport) Send(_ context.Context, payload []byte) error {
	var req deriveAddressRangeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	n := int(req.LastIndex-req.FirstIndex) + 1
	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("addr-%d", int(req.FirstIndex)+i)
	}
	reply, _ := json.Marshal(deriveAddressRangeReply{Addresses: addrs})
	return f.channel.OnMessage(reply)
}

func TestWorkerSourceRoundTrip(t *testing.T) {
	transport := &fakeTransport{}
	ch := worker.NewChannel(transport, discoveryerr.NewDerivation)
	transport.channel = ch

	var chainCode [32]byte
	var pub [33]byte
	node := hdnode.New(3, 0, 0, chainCode, pub)

	src := NewWorkerSource(ch, node, 0)
	addrs, err := src.Derive(context.Background(), 10, 12)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	want := []string{"addr-10", "addr-11", "addr-12"}
	for i, w := range want {
		if addrs[i] != w {
			t.Fatalf("addrs[%d] = %s, want %s", i, addrs[i], w)
		}
	}
}

func TestWorkerSourceRejectsCountMismatch(t *testing.T) {
	ch := worker.NewChannel(nil, discoveryerr.NewDerivation)
	badTransport := transportFunc(func(ctx context.Context, payload []byte) error {
		reply, _ := json.Marshal(deriveAddressRangeReply{Addresses: []string{"only-one"}})
		return ch.OnMessage(reply)
	})
	ch = worker.NewChannel(badTransport, discoveryerr.NewDerivation)

	var chainCode [32]byte
	var pub [33]byte
	node := hdnode.New(3, 0, 0, chainCode, pub)
	src := NewWorkerSource(ch, node, 0)

	if _, err := src.Derive(context.Background(), 0, 4); err == nil {
		t.Fatal("expected error on address count mismatch")
	}
}

type transportFunc func(ctx context.Context, payload []byte) error

func (f transportFunc) Send(ctx context.Context, payload []byte) error { return f(ctx, payload) }
