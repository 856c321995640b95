package hdnode

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcutil/base58"
)

func encodeTestXPub(t *testing.T, depth uint8, childNum, fingerprint uint32, chainCode [32]byte, compressedPoint [33]byte) string {
	t.Helper()
	payload := make([]byte, 0, 78)
	payload = append(payload, 0x04, 0x88, 0xB2, 0x1E) // mainnet xpub version
	payload = append(payload, depth)
	fp := make([]byte, 4)
	binary.BigEndian.PutUint32(fp, fingerprint)
	payload = append(payload, fp...)
	cn := make([]byte, 4)
	binary.BigEndian.PutUint32(cn, childNum)
	payload = append(payload, cn...)
	payload = append(payload, chainCode[:]...)
	payload = append(payload, compressedPoint[:]...)

	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return base58.Encode(append(payload, second[:4]...))
}

func TestParseExtendedRoundTrip(t *testing.T) {
	var chainCode [32]byte
	for i := range chainCode {
		chainCode[i] = byte(i)
	}
	var point [33]byte
	point[0] = 0x02
	for i := 1; i < 33; i++ {
		point[i] = byte(i * 3)
	}

	xpub := encodeTestXPub(t, 3, 7, 0xdeadbeef, chainCode, point)

	node, err := ParseExtended(xpub)
	if err != nil {
		t.Fatalf("ParseExtended: %v", err)
	}
	if node.Depth != 3 {
		t.Fatalf("Depth = %d, want 3", node.Depth)
	}
	if node.ChildNum != 7 {
		t.Fatalf("ChildNum = %d, want 7", node.ChildNum)
	}
	if node.Fingerprint != 0xdeadbeef {
		t.Fatalf("Fingerprint = %x, want deadbeef", node.Fingerprint)
	}
	if node.ChainCode != chainCode {
		t.Fatalf("ChainCode mismatch")
	}
	if node.CompressedPoint != point {
		t.Fatalf("CompressedPoint mismatch")
	}
}

func TestParseExtendedRejectsBadChecksum(t *testing.T) {
	var chainCode [32]byte
	var point [33]byte
	point[0] = 0x02
	xpub := encodeTestXPub(t, 0, 0, 0, chainCode, point)
	corrupted := xpub[:len(xpub)-1] + "z"

	if _, err := ParseExtended(corrupted); err == nil {
		t.Fatal("ParseExtended: want error on corrupted checksum, got nil")
	}
}

func TestParseExtendedRejectsWrongLength(t *testing.T) {
	if _, err := ParseExtended(base58.Encode([]byte("too short"))); err == nil {
		t.Fatal("ParseExtended: want error on short payload, got nil")
	}
}
