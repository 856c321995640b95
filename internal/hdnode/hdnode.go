// Package hdnode holds the minimal public-key projection of a BIP32 HD
// node that this repository consumes. It is built once per chain from a
// caller-supplied node and never mutated.
package hdnode

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// Projection is the immutable slice of an HD node this repository needs:
// enough to derive child addresses without ever touching a private key.
type Projection struct {
	Depth           uint8
	ChildNum        uint32
	Fingerprint     uint32
	ChainCode       [32]byte
	CompressedPoint [33]byte // compressed secp256k1 public key
}

// New builds a Projection from raw field values. Validation of the
// chain-code/public-key lengths is the caller's responsibility at the
// point they are read off the wire (see worker protocol in the derivation
// request, §6).
func New(depth uint8, childNum, fingerprint uint32, chainCode [32]byte, compressedPoint [33]byte) Projection {
	return Projection{
		Depth:           depth,
		ChildNum:        childNum,
		Fingerprint:     fingerprint,
		ChainCode:       chainCode,
		CompressedPoint: compressedPoint,
	}
}

// ParseExtended decodes a standard base58Check-encoded BIP32 extended
// public key ("xpub...") into a Projection, verifying the trailing
// double-SHA256 checksum the way the standard format requires.
func ParseExtended(xpub string) (Projection, error) {
	decoded := base58.Decode(xpub)
	if len(decoded) != 82 {
		return Projection{}, fmt.Errorf("extended public key has %d bytes, want 82", len(decoded))
	}

	payload, checksum := decoded[:78], decoded[78:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if string(second[:4]) != string(checksum) {
		return Projection{}, fmt.Errorf("extended public key checksum mismatch")
	}

	depth := payload[4]
	fingerprint := binary.BigEndian.Uint32(payload[5:9])
	childNum := binary.BigEndian.Uint32(payload[9:13])

	var chainCode [32]byte
	copy(chainCode[:], payload[13:45])

	var compressedPoint [33]byte
	copy(compressedPoint[:], payload[45:78])

	return New(depth, childNum, fingerprint, chainCode, compressedPoint), nil
}
