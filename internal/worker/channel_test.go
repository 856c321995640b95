package worker

import (
	"context"
	"fmt"
	"testing"
)

type recordingTransport struct {
	sent [][]byte
}

func (t *recordingTransport) Send(_ context.Context, payload []byte) error {
	t.sent = append(t.sent, payload)
	return nil
}

func TestChannelFIFOOrdering(t *testing.T) {
	transport := &recordingTransport{}
	ch := NewChannel(transport, nil)
	ctx := context.Background()

	const n = 1000
	replies := make([]<-chan Reply, n)
	for i := 0; i < n; i++ {
		r, err := ch.Post(ctx, []byte(fmt.Sprintf("req-%d", i)))
		if err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
		replies[i] = r
	}

	for i := 0; i < n; i++ {
		if err := ch.OnMessage([]byte(fmt.Sprintf("reply-%d", i))); err != nil {
			t.Fatalf("onmessage %d: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		got := <-replies[i]
		want := fmt.Sprintf("reply-%d", i)
		if got.Err != nil {
			t.Fatalf("reply %d: unexpected error %v", i, got.Err)
		}
		if string(got.Payload) != want {
			t.Fatalf("reply %d = %q, want %q", i, got.Payload, want)
		}
	}
}

func TestChannelErrorRejectsOldestOnly(t *testing.T) {
	transport := &recordingTransport{}
	ch := NewChannel(transport, nil)
	ctx := context.Background()

	r0, _ := ch.Post(ctx, []byte("a"))
	r1, _ := ch.Post(ctx, []byte("b"))
	r2, _ := ch.Post(ctx, []byte("c"))

	ch.OnError(fmt.Errorf("transport blew up"))

	got0 := <-r0
	if got0.Err == nil {
		t.Fatal("expected oldest pending to be rejected")
	}

	if ch.Pending() != 2 {
		t.Fatalf("pending = %d, want 2 (remaining futures must stay outstanding)", ch.Pending())
	}

	// remaining futures still resolve normally once replies arrive
	if err := ch.OnMessage([]byte("reply-for-b")); err != nil {
		t.Fatalf("onmessage: %v", err)
	}
	if err := ch.OnMessage([]byte("reply-for-c")); err != nil {
		t.Fatalf("onmessage: %v", err)
	}

	got1 := <-r1
	if got1.Err != nil || string(got1.Payload) != "reply-for-b" {
		t.Fatalf("r1 = %+v", got1)
	}
	got2 := <-r2
	if got2.Err != nil || string(got2.Payload) != "reply-for-c" {
		t.Fatalf("r2 = %+v", got2)
	}
}

func TestChannelMessageWithNothingPendingIsProtocolError(t *testing.T) {
	ch := NewChannel(&recordingTransport{}, nil)
	if err := ch.OnMessage([]byte("surprise")); err == nil {
		t.Fatal("expected protocol error for unsolicited reply")
	}
}
