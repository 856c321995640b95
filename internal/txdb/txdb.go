// Package txdb implements the account-wide transaction registry: a
// content-addressed TxId -> dense internal index -> TxInfo table shared
// across a wallet account's chains (external/change).
package txdb

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
)

// TxInfo is the opaque transaction record this repository stores: a
// stable id plus block context that may be overwritten by later
// notifications (last-write-wins), plus an opaque raw payload.
type TxInfo struct {
	ID          string          `json:"id"`
	BlockHeight int64           `json:"blockHeight"`
	BlockHash   string          `json:"blockHash"`
	BlockIndex  int             `json:"blockIndex"`
	Raw         json.RawMessage `json:"raw"`
}

// Database is the per-account TxId -> TxInfo registry. Indices are
// dense within a process lifetime but are reassigned by list order on
// Restore, per §4.6.
type Database struct {
	mu      sync.RWMutex
	byID    map[string]int
	byIndex []TxInfo
}

// New returns an empty Database.
func New() *Database {
	return &Database{byID: make(map[string]int)}
}

// Update inserts info if its id is new, or overwrites the existing
// record's block context in place (preserving id and internal index) if
// it already exists. Returns the internal index assigned.
func (d *Database) Update(info TxInfo) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if idx, ok := d.byID[info.ID]; ok {
		existing := d.byIndex[idx]
		existing.BlockHeight = info.BlockHeight
		existing.BlockHash = info.BlockHash
		existing.BlockIndex = info.BlockIndex
		if info.Raw != nil {
			existing.Raw = info.Raw
		}
		d.byIndex[idx] = existing
		return idx
	}

	idx := len(d.byIndex)
	d.byIndex = append(d.byIndex, info)
	d.byID[info.ID] = idx
	return idx
}

// IndexOf returns the internal index assigned to id, if any.
func (d *Database) IndexOf(id string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.byID[id]
	return idx, ok
}

// InfoAt returns the TxInfo at internal index idx.
func (d *Database) InfoAt(idx int) (TxInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if idx < 0 || idx >= len(d.byIndex) {
		return TxInfo{}, false
	}
	return d.byIndex[idx], true
}

// InfoOf returns the TxInfo for id, if any — the composition of IndexOf
// and InfoAt that invariant 2 in §8 exercises.
func (d *Database) InfoOf(id string) (TxInfo, bool) {
	idx, ok := d.IndexOf(id)
	if !ok {
		return TxInfo{}, false
	}
	return d.InfoAt(idx)
}

// Len returns the number of distinct transactions stored.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byIndex)
}

// Store projects the database to an ordered list of TxInfo, position
// equal to internal index — the persisted "database" blob from §6.
func (d *Database) Store() []TxInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]TxInfo, len(d.byIndex))
	copy(out, d.byIndex)
	return out
}

// Restore replaces the database's contents with items, reassigning
// internal indices by list position. Indices are therefore not stable
// across restore; ChainHistory's stored indices must be restored from a
// blob produced by the same Store/Restore pairing.
func (d *Database) Restore(items []TxInfo) error {
	byID := make(map[string]int, len(items))
	for i, info := range items {
		if info.ID == "" {
			return discoveryerr.NewSerialization(fmt.Errorf("item at position %d has empty id", i))
		}
		if _, dup := byID[info.ID]; dup {
			return discoveryerr.NewSerialization(fmt.Errorf("duplicate id %q in restored database", info.ID))
		}
		byID[info.ID] = i
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.byIndex = make([]TxInfo, len(items))
	copy(d.byIndex, items)
	d.byID = byID
	return nil
}
