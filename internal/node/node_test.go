package node

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Klingon-tech/klingnet-peering/config"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~", home},
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.klingnet-peering/key", filepath.Join(home, ".klingnet-peering/key")},
		{"~alice/keys", "~alice/keys"},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default(config.Testnet)
	cfg.DataDir = t.TempDir()
	cfg.P2P.Port = 0 // Use random port to avoid conflicts.
	cfg.P2P.NoDiscover = true
	cfg.P2P.Seeds = nil
	cfg.RPC.Port = 0 // Use random port.

	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}
	return cfg
}

func TestNodeLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if n.RPCAddr() == "" {
		t.Error("RPCAddr should not be empty")
	}
	if n.PeerID() == "" {
		t.Error("PeerID should not be empty")
	}
	if n.PeerCount() != 0 {
		t.Errorf("fresh node should have 0 peers, got %d", n.PeerCount())
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Stop should not panic or error.
	n.Stop()
}

func TestNodeIdentityPersists(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfig(t)

	n1, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	firstID := n1.PeerID()
	n1.Stop()

	// Restart with the same data dir; the identity file must be reused.
	n2, err := New(cfg)
	if err != nil {
		t.Fatalf("New (restart): %v", err)
	}
	defer n2.Stop()

	if n2.PeerID() != firstID {
		t.Errorf("peer id changed across restart: %s != %s", n2.PeerID(), firstID)
	}
}

func TestNodeP2PDisabled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfig(t)
	cfg.P2P.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()

	if n.PeerCount() != 0 {
		t.Errorf("offline node should report 0 peers, got %d", n.PeerCount())
	}
	// RPC still serves (read endpoints return empty results).
	if n.RPCAddr() == "" {
		t.Error("RPC should still be listening with P2P disabled")
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
