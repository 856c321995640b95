// Command discover runs ChainDiscovery for a single HD chain against a
// configured derivation worker and blockchain backend, exposing
// prometheus metrics and logging state transitions — grounded on the
// teacher's evm-ingestion/main.go wiring style (godotenv, flag, log.Fatal).
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/containerman17/hdwallet-discovery/internal/address"
	"github.com/containerman17/hdwallet-discovery/internal/blockchain/wsbackend"
	"github.com/containerman17/hdwallet-discovery/internal/cache"
	"github.com/containerman17/hdwallet-discovery/internal/chain"
	"github.com/containerman17/hdwallet-discovery/internal/config"
	"github.com/containerman17/hdwallet-discovery/internal/discovery"
	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
	"github.com/containerman17/hdwallet-discovery/internal/dlog"
	"github.com/containerman17/hdwallet-discovery/internal/engine"
	"github.com/containerman17/hdwallet-discovery/internal/hdnode"
	"github.com/containerman17/hdwallet-discovery/internal/metrics"
	"github.com/containerman17/hdwallet-discovery/internal/persist"
	"github.com/containerman17/hdwallet-discovery/internal/prefetch"
	"github.com/containerman17/hdwallet-discovery/internal/txdb"
	"github.com/containerman17/hdwallet-discovery/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.ExtendedPublicKey == "" {
		log.Fatal("XPUB (or --xpub) is required")
	}
	if cfg.BackendAddr == "" {
		log.Fatal("BACKEND_ADDR (or --backend-addr) is required")
	}

	node, err := hdnode.ParseExtended(cfg.ExtendedPublicKey)
	if err != nil {
		log.Fatalf("parse xpub: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persist.Open(cfg.StoragePath)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer store.Close()
	log.Printf("storage opened at %s", cfg.StoragePath)

	logger := dlog.Slog{L: slog.Default()}

	src, closeSrc := buildAddressSource(ctx, cfg, node, store)
	defer closeSrc()
	c := chain.New(src, cfg.ChunkSize)

	db := txdb.New()
	if items, ok, err := store.LoadDatabase(cfg.ChainLabel); err != nil {
		log.Fatalf("load database: %v", err)
	} else if ok {
		if err := db.Restore(items); err != nil {
			log.Fatalf("restore database: %v", err)
		}
		log.Printf("restored %d transactions for %s", db.Len(), cfg.ChainLabel)
	}

	bc, err := wsbackend.Dial(ctx, cfg.BackendAddr)
	if err != nil {
		log.Fatalf("dial blockchain backend: %v", err)
	}

	eng := engine.New(bc, store, logger)

	d := discovery.New(c, db, eng.Blockchain, discovery.Config{
		GapLength:  cfg.GapLength,
		ChainLabel: cfg.ChainLabel,
	}, eng.Logger)

	if blob, ok, err := store.LoadHistory(cfg.ChainLabel); err != nil {
		log.Fatalf("load history: %v", err)
	} else if ok {
		if err := d.History().Restore(blob); err != nil {
			log.Fatalf("restore history: %v", err)
		}
		log.Printf("restored history, nextIndex=%d", d.History().NextIndex())
	}

	metrics.StartServer(cfg.MetricsAddr)
	go consumeEvents(d, store, cfg.ChainLabel, db)

	if err := d.Start(ctx); err != nil {
		log.Fatalf("discovery failed: %v", err)
	}

	<-ctx.Done()
}

// consumeEvents is the single reader of d.Events(): logging and
// persistence both happen here, since a channel can have only one
// consumer without splitting its stream unpredictably.
func consumeEvents(d *discovery.ChainDiscovery, store *persist.Store, label string, db *txdb.Database) {
	for ev := range d.Events() {
		switch ev.Kind {
		case discovery.EventTransaction:
			log.Printf("transaction %s recorded", ev.Transaction.ID)
		case discovery.EventHistory:
			log.Printf("history updated, nextIndex=%d", ev.History.NextIndex())
			if err := store.SaveDatabase(label, db); err != nil {
				log.Printf("persist database: %v", err)
			}
			if err := store.SaveHistory(label, ev.History); err != nil {
				log.Printf("persist history: %v", err)
			}
		case discovery.EventError:
			log.Printf("discovery error: %v", ev.Err)
		}
	}
}

// buildAddressSource wraps either an external derivation worker or, as
// a local fallback, the native in-process derivation path, behind the
// prefetching and caching decorators in the order §4 requires:
// cache(prefetch(source)). The returned func tears down the prefetch
// decorator's speculative-derivation goroutine; callers must defer it
// alongside ctx's cancel so a prefetch blocked on an unreachable worker
// doesn't outlive the process.
func buildAddressSource(ctx context.Context, cfg config.Config, node hdnode.Projection, store *persist.Store) (address.Source, func()) {
	var inner address.Source
	if cfg.WorkerAddr != "" {
		transport, err := address.DialWSTransport(ctx, cfg.WorkerAddr)
		if err != nil {
			log.Fatalf("dial derivation worker: %v", err)
		}
		channel := worker.NewChannel(transport, discoveryerr.NewDerivation)
		go transport.ReadLoop(channel)
		inner = address.NewWorkerSource(channel, node, uint32(cfg.AddressVersion))
	} else {
		inner = address.NewNativeSource(node, cfg.AddressVersion)
	}

	prefetching := prefetch.New(ctx, inner)
	caching := cache.New(prefetching)

	if entries, ok, err := store.LoadSourceCache(cfg.ChainLabel); err != nil {
		log.Fatalf("load source cache: %v", err)
	} else if ok {
		caching.Restore(entries)
	}

	return caching, prefetching.Close
}

