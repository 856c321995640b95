package address

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/containerman17/hdwallet-discovery/internal/hdnode"
)

func testProjection(t *testing.T) hdnode.Projection {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var compressed [33]byte
	copy(compressed[:], priv.PubKey().SerializeCompressed())
	var chainCode [32]byte
	copy(chainCode[:], []byte("0123456789abcdef0123456789abcdef"))
	return hdnode.New(3, 0, 0, chainCode, compressed)
}

func TestNativeSourceDerivesRequestedCount(t *testing.T) {
	node := testProjection(t)
	src := NewNativeSource(node, 0x00)

	addrs, err := src.Derive(context.Background(), 0, 19)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(addrs) != 20 {
		t.Fatalf("got %d addresses, want 20", len(addrs))
	}

	seen := make(map[string]bool)
	for _, a := range addrs {
		if seen[a] {
			t.Fatalf("duplicate address %s in a single derived chunk", a)
		}
		seen[a] = true
	}
}

func TestNativeSourceDeterministic(t *testing.T) {
	node := testProjection(t)
	src := NewNativeSource(node, 0x00)

	first, err := src.Derive(context.Background(), 5, 5)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, err := src.Derive(context.Background(), 5, 5)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if first[0] != second[0] {
		t.Fatalf("derivation is not deterministic: %s != %s", first[0], second[0])
	}
}

func TestNativeSourceRejectsHardenedIndex(t *testing.T) {
	node := testProjection(t)
	src := NewNativeSource(node, 0x00)

	if _, err := src.Derive(context.Background(), 0x80000000, 0x80000000); err == nil {
		t.Fatal("expected error deriving a hardened index from a public node")
	}
}
