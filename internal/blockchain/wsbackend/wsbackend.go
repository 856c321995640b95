// Package wsbackend implements blockchain.Blockchain over a persistent
// websocket connection to a blockchain-history backend, adapted from
// the teacher's ingestion/evm/client streaming client: a single
// connection, whose incoming frames are zstd-compressed, carries both
// request/reply frames (routed
// through a worker.Channel for strict-FIFO correlation, the same
// pattern internal/address/worker.go uses for the derivation worker)
// and unsolicited push frames for live transaction notifications.
package wsbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"github.com/containerman17/hdwallet-discovery/internal/blockchain"
	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
	"github.com/containerman17/hdwallet-discovery/internal/worker"
)

// Backend is a websocket-backed blockchain.Blockchain.
type Backend struct {
	addr string

	mu      sync.Mutex
	conn    *websocket.Conn
	zstdDec *zstd.Decoder

	channel *worker.Channel
	events  chan blockchain.TxMatch
	done    chan struct{}
}

var _ blockchain.Blockchain = (*Backend)(nil)

// Dial connects to addr and starts the read-dispatch loop.
func Dial(ctx context.Context, addr string) (*Backend, error) {
	conn, _, err := (&websocket.Dialer{HandshakeTimeout: 10 * time.Second}).DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}

	b := &Backend{
		addr:    addr,
		conn:    conn,
		zstdDec: dec,
		events:  make(chan blockchain.TxMatch, 256),
		done:    make(chan struct{}),
	}
	b.channel = worker.NewChannel(b, discoveryerr.NewBackend)

	go b.readLoop()
	return b, nil
}

// Send implements worker.Transport by writing payload as a binary
// websocket frame. Outgoing frames are not compressed; only incoming
// frames are zstd-decoded (in readLoop).
func (b *Backend) Send(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.WriteMessage(websocket.BinaryMessage, payload)
}

type wireEnvelope struct {
	Type string `json:"type"`
}

type wireTxNotification struct {
	Type      string            `json:"type"`
	Info      blockchain.TxInfo `json:"info"`
	Addresses []string          `json:"addresses"`
}

func (b *Backend) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.channel.OnError(err)
			close(b.events)
			return
		}

		decompressed, err := b.zstdDec.DecodeAll(data, nil)
		if err != nil {
			b.channel.OnError(fmt.Errorf("decompress frame: %w", err))
			continue
		}

		var env wireEnvelope
		if err := json.Unmarshal(decompressed, &env); err != nil {
			b.channel.OnError(fmt.Errorf("parse frame envelope: %w", err))
			continue
		}

		if env.Type == "transaction" {
			var notif wireTxNotification
			if err := json.Unmarshal(decompressed, &notif); err != nil {
				continue
			}
			select {
			case b.events <- blockchain.TxMatch{Info: notif.Info, Addresses: notif.Addresses}:
			case <-b.done:
				return
			}
			continue
		}

		// Anything else is a reply to the oldest pending request.
		if err := b.channel.OnMessage(decompressed); err != nil {
			// Protocol violation; nothing more this connection can do.
			return
		}
	}
}

func (b *Backend) call(ctx context.Context, req any) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, discoveryerr.NewSerialization(fmt.Errorf("marshal request: %w", err))
	}
	replyCh, err := b.channel.Post(ctx, payload)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-replyCh:
		if reply.Err != nil {
			return nil, reply.Err
		}
		return reply.Payload, nil
	}
}

type lookupBestBlockHashRequest struct {
	Type string `json:"type"`
}

type lookupBestBlockHashReply struct {
	Hash string `json:"hash"`
}

func (b *Backend) LookupBestBlockHash(ctx context.Context) (string, error) {
	payload, err := b.call(ctx, lookupBestBlockHashRequest{Type: "lookupBestBlockHash"})
	if err != nil {
		return "", err
	}
	var reply lookupBestBlockHashReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return "", discoveryerr.NewSerialization(fmt.Errorf("unmarshal lookupBestBlockHash reply: %w", err))
	}
	return reply.Hash, nil
}

type lookupBlockIndexRequest struct {
	Type string `json:"type"`
	Hash string `json:"hash"`
}

type lookupBlockIndexReply struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}

func (b *Backend) LookupBlockIndex(ctx context.Context, hash string) (blockchain.BlockIndex, error) {
	payload, err := b.call(ctx, lookupBlockIndexRequest{Type: "lookupBlockIndex", Hash: hash})
	if err != nil {
		return blockchain.BlockIndex{}, err
	}
	var reply lookupBlockIndexReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return blockchain.BlockIndex{}, discoveryerr.NewSerialization(fmt.Errorf("unmarshal lookupBlockIndex reply: %w", err))
	}
	return blockchain.BlockIndex{Height: reply.Height, Hash: reply.Hash}, nil
}

type lookupTxsRequest struct {
	Type        string   `json:"type"`
	Addresses   []string `json:"addresses"`
	UntilHeight int64    `json:"untilHeight"`
	SinceHeight int64    `json:"sinceHeight"`
}

type lookupTxsReply struct {
	Matches []wireTxNotification `json:"matches"`
}

func (b *Backend) LookupTxs(ctx context.Context, addresses []string, untilHeight, sinceHeight int64) ([]blockchain.TxMatch, error) {
	payload, err := b.call(ctx, lookupTxsRequest{
		Type:        "lookupTxs",
		Addresses:   addresses,
		UntilHeight: untilHeight,
		SinceHeight: sinceHeight,
	})
	if err != nil {
		return nil, err
	}
	var reply lookupTxsReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return nil, discoveryerr.NewSerialization(fmt.Errorf("unmarshal lookupTxs reply: %w", err))
	}
	out := make([]blockchain.TxMatch, len(reply.Matches))
	for i, m := range reply.Matches {
		out[i] = blockchain.TxMatch{Info: m.Info, Addresses: m.Addresses}
	}
	return out, nil
}

type subscribeRequest struct {
	Type      string   `json:"type"`
	Addresses []string `json:"addresses"`
}

// Subscribe is fire-and-forget: it posts the request but does not wait
// for (or expect) a reply frame, matching the teacher's client.Stream
// one-way push model for live data.
func (b *Backend) Subscribe(addresses []string) {
	payload, err := json.Marshal(subscribeRequest{Type: "subscribe", Addresses: addresses})
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (b *Backend) Events() <-chan blockchain.TxMatch {
	return b.events
}

// Close tears down the connection.
func (b *Backend) Close() error {
	close(b.done)
	b.channel.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.Close()
}
