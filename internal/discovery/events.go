package discovery

import (
	"github.com/containerman17/hdwallet-discovery/internal/history"
	"github.com/containerman17/hdwallet-discovery/internal/txdb"
)

// EventKind tags an Event's payload. Modelled as a single channel of a
// tagged variant per the source spec's Design Note (§9), rather than
// three separate callbacks — this gives cancellation and backpressure a
// natural home (the caller simply stops draining the channel).
type EventKind int

const (
	EventTransaction EventKind = iota
	EventHistory
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTransaction:
		return "transaction"
	case EventHistory:
		return "history"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item on a ChainDiscovery's output channel.
type Event struct {
	Kind        EventKind
	Transaction txdb.TxInfo
	History     *history.ChainHistory
	Err         error
}
