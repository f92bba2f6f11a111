// ABOUTME: Tests for the relay client
// ABOUTME: Construction, unavailable-channel errors, and error mapping
package client

import (
	"testing"
	"time"

	"github.com/CineSync/cinesync-go/internal/protocol"
	"github.com/CineSync/cinesync-go/internal/version"
)

func TestNewClient(t *testing.T) {
	config := Config{
		RelayAddr: "localhost:4000",
		ClientID:  "test-client",
		Name:      "Test Viewer",
	}

	c := NewClient(config)
	if c == nil {
		t.Fatal("expected client to be created")
	}
	if c.config.RelayAddr != "localhost:4000" {
		t.Errorf("expected relay addr localhost:4000, got %s", c.config.RelayAddr)
	}
	if c.IsConnected() {
		t.Error("new client must not report connected")
	}
}

func TestActionsBeforeConnectAreDeferred(t *testing.T) {
	c := NewClient(Config{RelayAddr: "localhost:4000", ClientID: "x", Name: "x"})

	// User-initiated actions on an unopened channel surface
	// ErrChannelUnavailable so the caller can queue them, never a panic
	// or a silent drop
	if _, err := c.CreateRoom("abc"); err != ErrChannelUnavailable {
		t.Errorf("CreateRoom: expected ErrChannelUnavailable, got %v", err)
	}
	if err := c.JoinRoom("ABC123", "abc"); err != ErrChannelUnavailable {
		t.Errorf("JoinRoom: expected ErrChannelUnavailable, got %v", err)
	}
	if err := c.LeaveRoom("ABC123"); err != ErrChannelUnavailable {
		t.Errorf("LeaveRoom: expected ErrChannelUnavailable, got %v", err)
	}
	if err := c.SendSyncEvent("ABC123", protocol.KindPlay, 0); err != ErrChannelUnavailable {
		t.Errorf("SendSyncEvent: expected ErrChannelUnavailable, got %v", err)
	}
}

func TestHelloIdentifiesProduct(t *testing.T) {
	c := NewClient(Config{ClientID: "abc", Name: "Test Viewer"})

	msg := c.helloMessage()
	if msg.Type != protocol.TypeClientHello {
		t.Fatalf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}

	hello, ok := msg.Payload.(protocol.ClientHello)
	if !ok {
		t.Fatalf("unexpected payload type %T", msg.Payload)
	}
	if hello.ClientID != "abc" || hello.Name != "Test Viewer" {
		t.Errorf("identity not carried: %+v", hello)
	}
	want := version.Product + "/" + version.Version
	if hello.Product != want {
		t.Errorf("expected product %s, got %s", want, hello.Product)
	}
}

func TestResolvePendingDropsUnknownRequest(t *testing.T) {
	c := NewClient(Config{ClientID: "x", Name: "x"})

	// A response for a request that already timed out must be ignored
	c.resolvePending(protocol.Message{Type: protocol.TypeRoomCreate, RequestID: "gone"})
}

func TestRouteEventNeverBlocksOnFullChannel(t *testing.T) {
	c := NewClient(Config{ClientID: "host", Name: "host"})

	// A host sees its own sync/pong rebroadcasts but has no reason to
	// read them. Route well past every channel's capacity; if routing
	// ever blocks, the read loop behind it stalls and stops delivering
	// sync/ping frames too.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(c.SyncPongs)+5; i++ {
			c.routeEvent(protocol.Message{
				Type:    protocol.TypeSyncPong,
				Payload: protocol.SyncPong{RoomID: "ABC123", GuestPosition: float64(i)},
			})
			c.routeEvent(protocol.Message{
				Type:    protocol.TypeSyncEvent,
				Payload: protocol.SyncEvent{RoomID: "ABC123", Kind: protocol.KindPlay},
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("routing a pushed event blocked on a full channel")
	}

	// The earliest events are still there for a consumer that catches up
	pong := <-c.SyncPongs
	if pong.GuestPosition != 0 {
		t.Errorf("expected oldest pong first, got position %f", pong.GuestPosition)
	}
}
