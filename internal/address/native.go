package address

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"

	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
	"github.com/containerman17/hdwallet-discovery/internal/hdnode"
)

// NativeSource derives addresses in-process from a public HD node
// projection via BIP32 public-key (CKDpub) child derivation. It exists
// for tests and as a fallback when no external derivation worker is
// configured — production callers normally wrap a WorkerSource instead
// (see worker.go), since the native path has no access to a hardware or
// sandboxed derivation primitive.
//
// Open Question #3 in the source spec left the address version byte as
// a TODO; here it is always an explicit parameter so NativeSource never
// silently assumes mainnet.
type NativeSource struct {
	node    hdnode.Projection
	version byte
}

// NewNativeSource builds a NativeSource over node, encoding addresses
// with the given version byte (e.g. 0x00 for Bitcoin mainnet P2PKH,
// 0x6f for testnet).
func NewNativeSource(node hdnode.Projection, version byte) *NativeSource {
	return &NativeSource{node: node, version: version}
}

var _ Source = (*NativeSource)(nil)

func (s *NativeSource) Derive(ctx context.Context, firstIndex, lastIndex uint32) ([]string, error) {
	if lastIndex < firstIndex {
		return nil, discoveryerr.NewDerivation(fmt.Errorf("invalid range [%d,%d]", firstIndex, lastIndex))
	}
	select {
	case <-ctx.Done():
		return nil, discoveryerr.NewDerivation(ctx.Err())
	default:
	}

	out := make([]string, 0, lastIndex-firstIndex+1)
	for idx := firstIndex; idx <= lastIndex; idx++ {
		addr, err := s.deriveOne(idx)
		if err != nil {
			return nil, discoveryerr.NewDerivation(fmt.Errorf("derive index %d: %w", idx, err))
		}
		out = append(out, addr)
	}
	return out, nil
}

// deriveOne performs BIP32 CKDpub: the child public key is the curve
// point parentPubKey + IL*G, where IL is the left 32 bytes of
// HMAC-SHA512(chainCode, serializedParentPubKey || index). Only
// non-hardened indices are reachable from a public node.
func (s *NativeSource) deriveOne(index uint32) (string, error) {
	if index >= 0x80000000 {
		return "", fmt.Errorf("hardened index %d not derivable from a public node", index)
	}

	parentPub, err := btcec.ParsePubKey(s.node.CompressedPoint[:])
	if err != nil {
		return "", fmt.Errorf("parse parent public key: %w", err)
	}

	data := make([]byte, 0, 37)
	data = append(data, s.node.CompressedPoint[:]...)
	data = append(data, byte(index>>24), byte(index>>16), byte(index>>8), byte(index))

	mac := hmac.New(sha512.New, s.node.ChainCode[:])
	mac.Write(data)
	sum := mac.Sum(nil)
	il, _ := sum[:32], sum[32:]

	var ilScalar btcec.ModNScalar
	if overflow := ilScalar.SetByteSlice(il); overflow {
		return "", fmt.Errorf("derived scalar out of range")
	}

	ilX, ilY := btcec.S256().ScalarBaseMult(il)
	childX, childY := btcec.S256().Add(parentPub.X(), parentPub.Y(), ilX, ilY)

	var childPub btcec.PublicKey
	var fx, fy btcec.FieldVal
	fx.SetByteSlice(childX.Bytes())
	fy.SetByteSlice(childY.Bytes())
	childPub = *btcec.NewPublicKey(&fx, &fy)

	return s.publicKeyToAddress(childPub.SerializeCompressed())
}

func (s *NativeSource) publicKeyToAddress(compressed []byte) (string, error) {
	pkHash := btcutil.Hash160(compressed)
	versioned := append([]byte{s.version}, pkHash...)
	checksum := doubleSHA256(versioned)[:4]
	return base58.Encode(append(versioned, checksum...)), nil
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}
