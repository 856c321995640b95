// Package blockchaintest provides an in-memory Blockchain fixture for
// tests, grounded on square/beancounter's backendtest.FixtureBackend:
// an address->transactions index plus a transaction table, queried
// in-process instead of over the network.
package blockchaintest

import (
	"context"
	"sync"

	"github.com/containerman17/hdwallet-discovery/internal/blockchain"
)

// Fixture is a deterministic, in-memory Blockchain used by discovery
// tests. Transactions are registered up front via AddTx; LookupTxs
// filters by the height window and the requested addresses the same way
// a real backend would. Subscriptions are recorded but do not affect
// LookupTxs or Emit.
type Fixture struct {
	mu          sync.Mutex
	txs         []fixtureTx
	bestHash    string
	bestHeight  int64
	blockHashes map[string]int64

	subscribed    map[string]bool
	events        chan blockchain.TxMatch
	nextLookupErr error
}

type fixtureTx struct {
	info      blockchain.TxInfo
	addresses []string
}

// NewFixture returns an empty Fixture whose best block is (height,
// hash).
func NewFixture(bestHeight int64, bestHash string) *Fixture {
	return &Fixture{
		bestHash:    bestHash,
		bestHeight:  bestHeight,
		blockHashes: map[string]int64{bestHash: bestHeight},
		subscribed:  make(map[string]bool),
		events:      make(chan blockchain.TxMatch, 64),
	}
}

var _ blockchain.Blockchain = (*Fixture)(nil)

// AddTx registers a transaction touching addresses, available to
// LookupTxs for any window containing its block height.
func (f *Fixture) AddTx(info blockchain.TxInfo, addresses []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, fixtureTx{info: info, addresses: addresses})
	f.blockHashes[info.BlockHash] = info.BlockHeight
}

// Emit pushes a live transaction event as if observed through a
// subscription, regardless of whether the addresses were subscribed —
// tests drive this directly to simulate backend notifications.
func (f *Fixture) Emit(info blockchain.TxInfo, addresses []string) {
	f.events <- blockchain.TxMatch{Info: info, Addresses: addresses}
}

// FailNextLookup makes the next LookupTxs call return err instead of
// results, for S6-style backend-failure scenarios.
func (f *Fixture) FailNextLookup(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextLookupErr = err
}

func (f *Fixture) LookupBestBlockHash(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bestHash, nil
}

func (f *Fixture) LookupBlockIndex(ctx context.Context, hash string) (blockchain.BlockIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	height, ok := f.blockHashes[hash]
	if !ok {
		return blockchain.BlockIndex{}, errUnknownBlock(hash)
	}
	return blockchain.BlockIndex{Height: height, Hash: hash}, nil
}

func (f *Fixture) LookupTxs(ctx context.Context, addresses []string, untilHeight, sinceHeight int64) ([]blockchain.TxMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.nextLookupErr != nil {
		err := f.nextLookupErr
		f.nextLookupErr = nil
		return nil, err
	}

	want := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		want[a] = true
	}

	var out []blockchain.TxMatch
	for _, tx := range f.txs {
		if tx.info.BlockHeight < sinceHeight || tx.info.BlockHeight > untilHeight {
			continue
		}
		var matched []string
		for _, a := range tx.addresses {
			if want[a] {
				matched = append(matched, a)
			}
		}
		if len(matched) > 0 {
			out = append(out, blockchain.TxMatch{Info: tx.info, Addresses: matched})
		}
	}
	return out, nil
}

func (f *Fixture) Subscribe(addresses []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range addresses {
		f.subscribed[a] = true
	}
}

func (f *Fixture) Events() <-chan blockchain.TxMatch {
	return f.events
}

// Close releases the event channel, simulating a backend disconnect.
func (f *Fixture) Close() {
	close(f.events)
}

type errUnknownBlock string

func (e errUnknownBlock) Error() string { return "unknown block hash: " + string(e) }
