// Package engine wires one explicit Engine value holding every shared
// collaborator a chain discovery needs, per the Design Note resolving
// "global state": nothing in this module reaches for a package-level
// singleton. Callers construct an Engine once at program start and
// hand its Blockchain and Logger to every discovery.New call.
package engine

import (
	"github.com/containerman17/hdwallet-discovery/internal/blockchain"
	"github.com/containerman17/hdwallet-discovery/internal/discovery"
	"github.com/containerman17/hdwallet-discovery/internal/persist"
)

// Engine bundles the collaborators shared across a wallet account's
// chains (external and change).
type Engine struct {
	Blockchain blockchain.Blockchain
	Store      *persist.Store
	Logger     discovery.Logger
}

// New builds an Engine from already-constructed collaborators. logger
// may be nil, in which case each discovery.ChainDiscovery falls back to
// its own default.
func New(bc blockchain.Blockchain, store *persist.Store, logger discovery.Logger) Engine {
	return Engine{Blockchain: bc, Store: store, Logger: logger}
}
