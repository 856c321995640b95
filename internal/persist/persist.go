// Package persist stores the three blobs a chain discovery needs to
// resume cold: the TxDatabase, the ChainHistory, and the address
// source's exact-range cache — keyed by account/chain under a pebble
// database, the same key-value shape the teacher's evm-ingestion/storage
// package uses for its block/batch/meta keys.
package persist

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble/v2"

	"github.com/containerman17/hdwallet-discovery/internal/cache"
	"github.com/containerman17/hdwallet-discovery/internal/history"
	"github.com/containerman17/hdwallet-discovery/internal/txdb"
)

const (
	databaseKeyFormat = "database:%s"
	historyKeyFormat  = "history:%s"
	sourceKeyFormat   = "source:%s"
)

// Store is a pebble-backed persistence layer for discovery state,
// partitioned by an arbitrary chain label (e.g. "account0/external").
type Store struct {
	db *pebble.DB
}

// Open opens (creating if necessary) a pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func databaseKey(label string) []byte { return []byte(fmt.Sprintf(databaseKeyFormat, label)) }
func historyKey(label string) []byte  { return []byte(fmt.Sprintf(historyKeyFormat, label)) }
func sourceKey(label string) []byte   { return []byte(fmt.Sprintf(sourceKeyFormat, label)) }

// SaveDatabase persists db's contents under label.
func (s *Store) SaveDatabase(label string, db *txdb.Database) error {
	data, err := json.Marshal(db.Store())
	if err != nil {
		return fmt.Errorf("marshal database blob: %w", err)
	}
	return s.db.Set(databaseKey(label), data, pebble.Sync)
}

// LoadDatabase restores a TxDatabase from the blob saved under label.
// Returns ok=false if nothing has been saved yet.
func (s *Store) LoadDatabase(label string) (items []txdb.TxInfo, ok bool, err error) {
	data, closer, err := s.db.Get(databaseKey(label))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get database blob: %w", err)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("unmarshal database blob: %w", err)
	}
	return items, true, nil
}

// SaveHistory persists h's contents under label.
func (s *Store) SaveHistory(label string, h *history.ChainHistory) error {
	data, err := h.Store()
	if err != nil {
		return fmt.Errorf("store history blob: %w", err)
	}
	return s.db.Set(historyKey(label), data, pebble.Sync)
}

// LoadHistory returns the raw history blob saved under label, for
// ChainHistory.Restore. Returns ok=false if nothing has been saved yet.
func (s *Store) LoadHistory(label string) (data []byte, ok bool, err error) {
	data, closer, err := s.db.Get(historyKey(label))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get history blob: %w", err)
	}
	defer closer.Close()
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// SaveSourceCache persists the exact-range cache's contents under label.
func (s *Store) SaveSourceCache(label string, c *cache.Source) error {
	data, err := json.Marshal(c.Store())
	if err != nil {
		return fmt.Errorf("marshal source cache blob: %w", err)
	}
	return s.db.Set(sourceKey(label), data, pebble.Sync)
}

// LoadSourceCache restores the exact-range cache entries saved under
// label. Returns ok=false if nothing has been saved yet.
func (s *Store) LoadSourceCache(label string) (entries map[string][]string, ok bool, err error) {
	data, closer, err := s.db.Get(sourceKey(label))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get source cache blob: %w", err)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("unmarshal source cache blob: %w", err)
	}
	return entries, true, nil
}
