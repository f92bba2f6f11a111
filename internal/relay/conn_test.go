// ABOUTME: Tests for per-connection send queueing
// ABOUTME: Buffer limits and post-close behavior
package relay

import (
	"testing"

	"github.com/CineSync/cinesync-go/internal/protocol"
)

func TestSendQueuesUntilBufferFull(t *testing.T) {
	c := newConn("c1", "viewer", nil)

	for i := 0; i < cap(c.sendChan); i++ {
		if err := c.send(protocol.Message{Type: protocol.TypeSyncEvent}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	if err := c.send(protocol.Message{Type: protocol.TypeSyncEvent}); err == nil {
		t.Error("expected error once the buffer is full")
	}
}

func TestSendAfterCloseErrors(t *testing.T) {
	c := newConn("c1", "viewer", nil)

	if err := c.send(protocol.Message{Type: protocol.TypeSyncEvent}); err != nil {
		t.Fatalf("send before close: %v", err)
	}

	c.closeSend()
	c.closeSend() // idempotent

	// A broadcast holding a member snapshot from before the disconnect
	// must get an error, never a panic on the closed channel
	if err := c.send(protocol.Message{Type: protocol.TypeSyncEvent}); err == nil {
		t.Error("expected error sending on a closed connection")
	}
}
