// ABOUTME: Tests for mDNS discovery
// ABOUTME: Manager construction for both relay and client modes
package discovery

import (
	"testing"
)

func TestNewManager(t *testing.T) {
	config := Config{
		ServiceName: "Test Relay",
		Port:        4000,
		RelayMode:   true,
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
}
