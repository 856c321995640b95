// Package metrics holds the prometheus instrumentation for discovery
// runs, grounded on the teacher's ingestion/evm/rpc/metrics package:
// package-level CounterVec/GaugeVec instances registered at init, plus
// a StartServer helper exposing them over HTTP.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DiscoveryTransactionsTotal counts transactions recorded per chain.
	DiscoveryTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_transactions_total",
			Help: "Total number of transactions recorded by chain discovery",
		},
		[]string{"chain"},
	)

	// DiscoveryChunksDerived counts address chunks derived per chain.
	DiscoveryChunksDerived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_chunks_derived_total",
			Help: "Total number of address chunks derived by chain discovery",
		},
		[]string{"chain"},
	)

	// DiscoveryGap tracks the current gap (derived - used) per chain.
	DiscoveryGap = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "discovery_gap",
			Help: "Current gap between derived and used address index, per chain",
		},
		[]string{"chain"},
	)

	// DiscoveryState tracks the current state machine value per chain,
	// using ChainDiscovery.State's int ordinal.
	DiscoveryState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "discovery_state",
			Help: "Current ChainDiscovery state ordinal, per chain",
		},
		[]string{"chain"},
	)
)

func init() {
	prometheus.MustRegister(DiscoveryTransactionsTotal)
	prometheus.MustRegister(DiscoveryChunksDerived)
	prometheus.MustRegister(DiscoveryGap)
	prometheus.MustRegister(DiscoveryState)
}

// StartServer starts the metrics HTTP server on addr.
func StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Printf("[metrics] listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}
