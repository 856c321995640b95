// Package discovery implements ChainDiscovery, the orchestrator that
// couples an address-producer Chain to a Blockchain lookup service,
// bounded by the BIP44 gap-limit termination rule.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/containerman17/hdwallet-discovery/internal/blockchain"
	"github.com/containerman17/hdwallet-discovery/internal/chain"
	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
	"github.com/containerman17/hdwallet-discovery/internal/history"
	"github.com/containerman17/hdwallet-discovery/internal/metrics"
	"github.com/containerman17/hdwallet-discovery/internal/txdb"
)

// State is one of ChainDiscovery's state-machine states.
type State int

const (
	Idle State = iota
	ResolvingRange
	Scanning
	Live
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ResolvingRange:
		return "resolving_range"
	case Scanning:
		return "scanning"
	case Live:
		return "live"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultGapLength is the BIP44-recommended number of trailing unused
// addresses required for discovery to terminate.
const DefaultGapLength = 20

// Config carries the tunables ChainDiscovery needs beyond its
// collaborators.
type Config struct {
	GapLength  uint32 // 0 => DefaultGapLength
	ChainLabel string // for logging/metrics only
}

// ChainDiscovery is the pipeline orchestrator: chain.Chain (address
// derivation/indexing) + blockchain.Blockchain (external history and
// live subscription) + txdb.Database + history.ChainHistory, wired
// together by the gap-limit feedback loop described in §4.8.
//
// ChainDiscovery exclusively owns its Chain and ChainHistory; the
// Blockchain and the underlying worker channel (reached indirectly
// through the Chain's address.Source stack) are shared by reference —
// this value does not close them.
type ChainDiscovery struct {
	chain   *chain.Chain
	db      *txdb.Database
	history *history.ChainHistory
	bc      blockchain.Blockchain
	cfg     Config
	logger  Logger

	mu    sync.Mutex
	state State

	sinceHeight int64
	untilHeight int64

	events chan Event
}

// New builds a ChainDiscovery. db is the account-wide TxDatabase shared
// with this chain's sibling (external/change); ChainHistory borrows it
// for its lifetime.
func New(c *chain.Chain, db *txdb.Database, bc blockchain.Blockchain, cfg Config, logger Logger) *ChainDiscovery {
	if cfg.GapLength == 0 {
		cfg.GapLength = DefaultGapLength
	}
	if logger == nil {
		logger = stdLogger{}
	}
	return &ChainDiscovery{
		chain:   c,
		db:      db,
		history: history.New(db),
		bc:      bc,
		cfg:     cfg,
		logger:  logger,
		state:   Idle,
		events:  make(chan Event, 64),
	}
}

// State returns the current state.
func (d *ChainDiscovery) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// History returns the ChainHistory this discovery maintains, as a live,
// evolving view. ChainHistory does no locking of its own: reads that
// overlap an in-progress scan or live update are not synchronised with
// it.
func (d *ChainDiscovery) History() *history.ChainHistory {
	return d.history
}

// Events returns the tagged-union output stream: transaction, history,
// and error notifications, per §4.8.
func (d *ChainDiscovery) Events() <-chan Event {
	return d.events
}

func (d *ChainDiscovery) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	d.logger.Info("state transition", "chain", d.cfg.ChainLabel, "state", s.String())
	metrics.DiscoveryState.WithLabelValues(d.cfg.ChainLabel).Set(float64(s))
}

// Start resolves the scan's height window from the backend, subscribes
// to live transaction notifications, and begins scanning. It blocks
// until the engine reaches Live or Failed, or ctx is cancelled;
// Events() keeps delivering transaction/history notifications produced
// after Start returns, for as long as live updates extend the used
// prefix (§4.8: history may fire more than once).
func (d *ChainDiscovery) Start(ctx context.Context) error {
	d.setState(ResolvingRange)

	bestHash, err := d.bc.LookupBestBlockHash(ctx)
	if err != nil {
		return d.fail(discoveryerr.NewBackend(fmt.Errorf("lookup best block hash: %w", err)))
	}
	idx, err := d.bc.LookupBlockIndex(ctx, bestHash)
	if err != nil {
		return d.fail(discoveryerr.NewBackend(fmt.Errorf("lookup block index for %s: %w", bestHash, err)))
	}

	d.sinceHeight = 0
	d.untilHeight = idx.Height
	d.history.SetUntilBlock(idx.Hash)

	go d.consumeLiveEvents(ctx)

	d.setState(Scanning)
	return d.scanLoop(ctx)
}

// consumeLiveEvents drains the backend's transaction event stream for
// the lifetime of ctx, feeding every match through update. This keeps
// running after the initial gap is satisfied (state Live) so
// late-arriving transactions can still extend the used prefix and fire
// another history event.
func (d *ChainDiscovery) consumeLiveEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case match, ok := <-d.bc.Events():
			if !ok {
				return
			}
			d.update(ctx, []blockchain.TxMatch{match})
		}
	}
}

// scanLoop repeatedly derives a chunk, subscribes the new addresses,
// looks up their history, and feeds results through update — advancing
// unconditionally on every lookupTxs completion (Open Question #1,
// resolved: the source's literal "only advance when anyResult" control
// flow would stall on an empty chunk, so this implementation issues the
// next chunk whenever the previous lookupTxs call completes, regardless
// of whether it found anything).
func (d *ChainDiscovery) scanLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		addrs, err := d.chain.NextChunk(ctx)
		if err != nil {
			return d.fail(discoveryerr.NewDerivation(err))
		}
		metrics.DiscoveryChunksDerived.WithLabelValues(d.cfg.ChainLabel).Inc()

		d.bc.Subscribe(addrs)

		matches, err := d.bc.LookupTxs(ctx, addrs, d.untilHeight, d.sinceHeight)
		if err != nil {
			return d.fail(discoveryerr.NewBackend(fmt.Errorf("lookup txs: %w", err)))
		}

		d.update(ctx, matches)

		if d.State() == Live {
			return nil
		}
	}
}

// update records every (info, addresses) match into ChainHistory and
// TxDatabase, emits a transaction event per match, then re-evaluates
// the gap. Gap re-evaluation happens unconditionally after processing —
// not only when matches were found — per the Open Question #1
// resolution above.
func (d *ChainDiscovery) update(ctx context.Context, matches []blockchain.TxMatch) {
	for _, m := range matches {
		info := txdb.TxInfo{
			ID:          m.Info.ID,
			BlockHeight: m.Info.BlockHeight,
			BlockHash:   m.Info.BlockHash,
			BlockIndex:  m.Info.BlockIndex,
			Raw:         rawOrNull(m.Info.Raw),
		}
		txIndex := d.db.Update(info)

		for _, addr := range m.Addresses {
			addrIndex, ok := d.chain.IndexOf(addr)
			if !ok {
				// Address not (yet) known to this chain — a live event for
				// an address this discovery hasn't derived, ignore it.
				continue
			}
			d.history.Append(addrIndex, txIndex)
		}

		metrics.DiscoveryTransactionsTotal.WithLabelValues(d.cfg.ChainLabel).Inc()
		d.emit(Event{Kind: EventTransaction, Transaction: info})
	}

	if bestHash, err := d.bc.LookupBestBlockHash(ctx); err == nil {
		d.history.SetUntilBlock(bestHash)
	}

	gap := d.chain.NextIndex() - d.history.NextIndex()
	metrics.DiscoveryGap.WithLabelValues(d.cfg.ChainLabel).Set(float64(gap))

	if gap >= d.cfg.GapLength {
		if d.State() != Live {
			d.setState(Live)
			d.emit(Event{Kind: EventHistory, History: d.history})
		} else {
			// Already live: a late match just extended the used prefix
			// further without breaking the gap invariant — re-emit so
			// callers see the latest ChainHistory.
			d.emit(Event{Kind: EventHistory, History: d.history})
		}
	}
}

func (d *ChainDiscovery) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("event channel full, dropping", "kind", ev.Kind.String(), "chain", d.cfg.ChainLabel)
	}
}

func (d *ChainDiscovery) fail(err error) error {
	d.setState(Failed)
	d.logger.Error("discovery failed", "chain", d.cfg.ChainLabel, "error", err.Error())
	d.emit(Event{Kind: EventError, Err: err})
	return err
}

func rawOrNull(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(raw)
}
