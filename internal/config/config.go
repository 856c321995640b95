// Package config loads ChainDiscovery's runtime settings from the
// environment (via godotenv + os.Getenv), with flag overrides for
// interactive use — grounded on the teacher's evm-ingestion/main.go
// getEnvOrDefault/getEnvIntOrDefault pattern.
package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every tunable ChainDiscovery and its collaborators
// need at startup.
type Config struct {
	// WorkerAddr is the derivation worker's websocket address.
	WorkerAddr string
	// BackendAddr is the blockchain backend's websocket address.
	BackendAddr string
	// StoragePath is the pebble database directory for persisted state.
	StoragePath string
	// MetricsAddr is the prometheus /metrics listen address.
	MetricsAddr string

	// ChunkSize is the number of addresses derived per chain.NextChunk call.
	ChunkSize uint32
	// GapLength is the number of trailing unused addresses required to
	// stop scanning.
	GapLength uint32
	// AddressVersion is the base58Check version byte for derived addresses.
	AddressVersion byte
	// ExtendedPublicKey is the xpub of the chain being discovered. It is
	// required; both the native and the worker derivation paths derive
	// from it.
	ExtendedPublicKey string
	// ChainLabel identifies this discovery run in logs and metrics.
	ChainLabel string
}

const (
	defaultChunkSize      = 20
	defaultGapLength      = 20
	defaultAddressVersion = 0x00
	defaultMetricsAddr    = ":9090"
	defaultStoragePath    = "./data/discovery"
)

// Load reads configuration from .env (if present) and the environment,
// then applies any flag overrides from args.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		WorkerAddr:        os.Getenv("WORKER_ADDR"),
		BackendAddr:       os.Getenv("BACKEND_ADDR"),
		StoragePath:       getEnvOrDefault("STORAGE_PATH", defaultStoragePath),
		MetricsAddr:       getEnvOrDefault("METRICS_ADDR", defaultMetricsAddr),
		ChunkSize:         uint32(getEnvIntOrDefault("CHUNK_SIZE", defaultChunkSize)),
		GapLength:         uint32(getEnvIntOrDefault("GAP_LENGTH", defaultGapLength)),
		AddressVersion:    byte(getEnvIntOrDefault("ADDRESS_VERSION", defaultAddressVersion)),
		ExtendedPublicKey: os.Getenv("XPUB"),
		ChainLabel:        getEnvOrDefault("CHAIN_LABEL", "account0/external"),
	}

	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.StringVar(&cfg.WorkerAddr, "worker-addr", cfg.WorkerAddr, "derivation worker websocket address")
	fs.StringVar(&cfg.BackendAddr, "backend-addr", cfg.BackendAddr, "blockchain backend websocket address")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "pebble storage directory")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "prometheus metrics listen address")
	fs.StringVar(&cfg.ExtendedPublicKey, "xpub", cfg.ExtendedPublicKey, "account extended public key")
	fs.StringVar(&cfg.ChainLabel, "chain-label", cfg.ChainLabel, "label identifying this discovery run")
	var chunkSize, gapLength, addressVersion int
	fs.IntVar(&chunkSize, "chunk-size", int(cfg.ChunkSize), "addresses derived per chunk")
	fs.IntVar(&gapLength, "gap-length", int(cfg.GapLength), "trailing unused addresses required to stop scanning")
	fs.IntVar(&addressVersion, "address-version", int(cfg.AddressVersion), "base58Check version byte")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.ChunkSize = uint32(chunkSize)
	cfg.GapLength = uint32(gapLength)
	cfg.AddressVersion = byte(addressVersion)

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
