// Package worker implements a strict-FIFO RPC channel over a long-lived
// derivation worker. Correctness hinges entirely on post order equalling
// reply order; the channel requires exclusive access from a single
// poster, the same discipline the discovery engine enforces by chaining
// its own nextChunk calls (see internal/chain).
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/containerman17/hdwallet-discovery/internal/discoveryerr"
)

// Transport is the one-way send half of the channel. The reply half
// arrives asynchronously through OnMessage/OnError, mirroring a
// message-passing worker (e.g. a Node.js child_process or gRPC stream)
// rather than a request/response call.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
}

// pending is one outstanding request's promise.
type pending struct {
	reply chan Reply
}

// Reply is the resolved value of a Post call: either a payload or an
// error, never both.
type Reply struct {
	Payload []byte
	Err     error
}

// Channel posts requests to a Transport and resolves them strictly in
// FIFO order as replies arrive. Close stops new posts but does not
// cancel requests already posted; there is no way to reopen a closed
// Channel.
type Channel struct {
	mu        sync.Mutex
	transport Transport
	wrap      func(error) error
	queue     []*pending
	closed    bool
}

// NewChannel wraps a Transport. wrap tags every transport-level and
// OnError failure with the calling package's error kind — e.g.
// discoveryerr.NewDerivation for the address-derivation worker,
// discoveryerr.NewBackend for a blockchain RPC connection — since the
// same Channel type backs both and a hardcoded kind here would
// mislabel whichever consumer didn't pick it. nil leaves errors
// unwrapped. The channel starts open.
func NewChannel(t Transport, wrap func(error) error) *Channel {
	if wrap == nil {
		wrap = func(err error) error { return err }
	}
	return &Channel{transport: t, wrap: wrap}
}

// Post enqueues a pending reply and transmits the payload. The returned
// channel receives exactly one Reply once this request's turn comes up
// in FIFO order — never before an earlier Post's reply has arrived.
func (c *Channel) Post(ctx context.Context, payload []byte) (<-chan Reply, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, discoveryerr.NewProtocol(fmt.Errorf("post on closed channel"))
	}
	p := &pending{reply: make(chan Reply, 1)}
	c.queue = append(c.queue, p)
	c.mu.Unlock()

	if err := c.transport.Send(ctx, payload); err != nil {
		// The payload never reached the worker, so no reply will come for
		// it: drop this request from the queue (rather than rejecting the
		// oldest one) so every earlier post stays paired with its reply.
		c.mu.Lock()
		for i, q := range c.queue {
			if q == p {
				c.queue = append(c.queue[:i], c.queue[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		return nil, c.wrap(err)
	}
	return p.reply, nil
}

// OnMessage resolves the oldest pending request with payload. A message
// with nothing pending is a protocol violation and is dropped after
// being surfaced via the returned error; callers that want it fatal
// should check the return value and close the channel.
func (c *Channel) OnMessage(payload []byte) error {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return discoveryerr.NewProtocol(fmt.Errorf("reply received with no pending request"))
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	c.mu.Unlock()

	p.reply <- Reply{Payload: payload}
	return nil
}

// OnError rejects the oldest pending request only; any remaining
// pending requests are left outstanding, since the worker may still
// reply to them in order. This is the "oldest-only" behaviour §4.2 and
// §8's FIFO property pin as the one implementations must not deviate
// from for callers' sake.
func (c *Channel) OnError(err error) {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	c.mu.Unlock()

	p.reply <- Reply{Err: c.wrap(err)}
}

// Close makes every later Post fail. It does not detach OnMessage or
// OnError: requests already posted still resolve (or are rejected) in
// FIFO order if replies or errors arrive after Close, and otherwise
// stay pending — it is the caller's responsibility to drop references
// and let the futures be garbage collected, matching §5's cancellation
// model ("in-flight futures are allowed to complete and be discarded").
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Pending returns the number of requests awaiting a reply. Exposed for
// tests and diagnostics only.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
