// Package history implements the per-chain transaction timeline:
// AddressIndex -> ordered list of transactions touching it, plus the
// untilBlock checkpoint. Per Design Note (§9) and resolved Open
// Question #4, entries store TxDatabase indices rather than TxInfo
// values directly, dereferenced through a non-owning reference to the
// database on read — so a later TxDatabase.Update (block-context
// overwrite) is always visible through the history, never aliased away.
package history

import (
	"encoding/json"
	"fmt"

	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
	"github.com/containerman17/hdwallet-discovery/internal/txdb"
)

// ChainHistory maps each used address index to the ordered list of
// TxDatabase indices touching it, plus a block-hash checkpoint. It
// borrows its TxDatabase for its lifetime; the database is owned (and
// must outlive this history) by whoever constructs both — normally a
// discovery.ChainDiscovery.
type ChainHistory struct {
	db         *txdb.Database
	entries    map[uint32][]int
	untilBlock *string
}

// New builds an empty ChainHistory borrowing db.
func New(db *txdb.Database) *ChainHistory {
	return &ChainHistory{db: db, entries: make(map[uint32][]int)}
}

// Append records that the transaction at db index txIndex touched
// addrIndex, in observation order.
func (h *ChainHistory) Append(addrIndex uint32, txIndex int) {
	h.entries[addrIndex] = append(h.entries[addrIndex], txIndex)
}

// TransactionsAt returns the TxInfo records touching addrIndex, in
// observation order, dereferenced live through the database.
func (h *ChainHistory) TransactionsAt(addrIndex uint32) []txdb.TxInfo {
	indices := h.entries[addrIndex]
	if len(indices) == 0 {
		return nil
	}
	out := make([]txdb.TxInfo, 0, len(indices))
	for _, idx := range indices {
		if info, ok := h.db.InfoAt(idx); ok {
			out = append(out, info)
		}
	}
	return out
}

// NextIndex is the highest used address index plus one — the "used"
// prefix, distinct from Chain.NextIndex (the "derived" prefix). The
// difference between the two is the gap the discovery engine evaluates.
func (h *ChainHistory) NextIndex() uint32 {
	var max int64 = -1
	for idx, txs := range h.entries {
		if len(txs) == 0 {
			continue
		}
		if int64(idx) > max {
			max = int64(idx)
		}
	}
	if max < 0 {
		return 0
	}
	return uint32(max) + 1
}

// UntilBlock returns the most recent block hash incorporated, if any.
func (h *ChainHistory) UntilBlock() (string, bool) {
	if h.untilBlock == nil {
		return "", false
	}
	return *h.untilBlock, true
}

// SetUntilBlock advances the checkpoint.
func (h *ChainHistory) SetUntilBlock(hash string) {
	h.untilBlock = &hash
}

// storedBlob is the wire shape from §6: a positional array indexed by
// AddressIndex, null for unused indices, plus the untilBlock marker.
type storedBlob struct {
	UntilBlock *string  `json:"untilBlock"`
	List       [][]int  `json:"list"`
}

// Store projects the history to TxDatabase indices plus the untilBlock
// marker, as a positional array with gaps for unused indices preserved
// as nil entries.
func (h *ChainHistory) Store() ([]byte, error) {
	length := 0
	for idx := range h.entries {
		if int(idx)+1 > length {
			length = int(idx) + 1
		}
	}

	list := make([][]int, length)
	for idx, txs := range h.entries {
		cp := make([]int, len(txs))
		copy(cp, txs)
		list[idx] = cp
	}

	return json.Marshal(storedBlob{UntilBlock: h.untilBlock, List: list})
}

// Restore replaces the history's contents from a blob produced by
// Store, preserving gaps. It validates that every referenced TxDatabase
// index exists in the (already-restored) database — callers must
// restore the TxDatabase first, per §6.
func (h *ChainHistory) Restore(data []byte) error {
	var blob storedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return discoveryerr.NewSerialization(fmt.Errorf("unmarshal history blob: %w", err))
	}

	entries := make(map[uint32][]int)
	for idx, txs := range blob.List {
		if len(txs) == 0 {
			continue
		}
		for _, txIdx := range txs {
			if _, ok := h.db.InfoAt(txIdx); !ok {
				return discoveryerr.NewSerialization(
					fmt.Errorf("history references database index %d which does not exist", txIdx))
			}
		}
		cp := make([]int, len(txs))
		copy(cp, txs)
		entries[uint32(idx)] = cp
	}

	h.entries = entries
	h.untilBlock = blob.UntilBlock
	return nil
}
