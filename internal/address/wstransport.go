package address

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"github.com/containerman17/hdwallet-discovery/internal/worker"
)

// WSTransport implements worker.Transport over a websocket connection
// to an external derivation worker, compressing outgoing frames with
// zstd the way the teacher's ingestion client compresses block frames.
// Replies are dispatched to the owning worker.Channel by ReadLoop,
// which callers must run in its own goroutine.
type WSTransport struct {
	conn *websocket.Conn
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// DialWSTransport connects to addr and returns a ready-to-use transport.
func DialWSTransport(ctx context.Context, addr string) (*WSTransport, error) {
	conn, _, err := (&websocket.Dialer{HandshakeTimeout: 10 * time.Second}).DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to derivation worker at %s: %w", addr, err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &WSTransport{conn: conn, enc: enc, dec: dec}, nil
}

// Send implements worker.Transport.
func (t *WSTransport) Send(ctx context.Context, payload []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, t.enc.EncodeAll(payload, nil))
}

// ReadLoop dispatches replies to channel until the connection closes.
// Run it in its own goroutine immediately after wiring the channel.
func (t *WSTransport) ReadLoop(channel *worker.Channel) {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			channel.OnError(err)
			return
		}
		decompressed, err := t.dec.DecodeAll(data, nil)
		if err != nil {
			channel.OnError(fmt.Errorf("decompress worker frame: %w", err))
			continue
		}
		if err := channel.OnMessage(decompressed); err != nil {
			return
		}
	}
}

// Close releases the connection.
func (t *WSTransport) Close() error {
	return t.conn.Close()
}
