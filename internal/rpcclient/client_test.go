package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/klingnet-peering/config"
	klog "github.com/Klingon-tech/klingnet-peering/internal/log"
	"github.com/Klingon-tech/klingnet-peering/internal/p2p"
	"github.com/Klingon-tech/klingnet-peering/internal/peermgr"
	"github.com/Klingon-tech/klingnet-peering/internal/rpc"
	"github.com/Klingon-tech/klingnet-peering/internal/storage"
	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

type testEnv struct {
	client *Client
	node   *p2p.Node
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	node := p2p.New(p2p.Config{
		ListenAddr: "127.0.0.1",
		Port:       0,
		NoDiscover: true,
		NetworkID:  "klingnet-test-client",
		MaxInbound: 8,
		DB:         storage.NewMemory(),
	})
	if err := node.Start(); err != nil {
		t.Fatalf("start node: %v", err)
	}
	t.Cleanup(func() { node.Stop() })

	srv := rpc.New("127.0.0.1:0", node, config.RPCConfig{})
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	url := "http://" + srv.Addr() + "/"
	client := New(url)

	return &testEnv{
		client: client,
		node:   node,
	}
}

func TestClient_NetGetInfo(t *testing.T) {
	env := setupTestEnv(t)

	var result rpc.NetInfoResult
	if err := env.client.Call("net_getInfo", nil, &result); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if result.PeerCount != 0 {
		t.Errorf("peer_count = %d, want 0", result.PeerCount)
	}
	if result.MaxInbound != 8 {
		t.Errorf("max_inbound = %d, want 8", result.MaxInbound)
	}
}

func TestClient_NetGetNodeInfo(t *testing.T) {
	env := setupTestEnv(t)

	var result rpc.NodeInfoResult
	if err := env.client.Call("net_getNodeInfo", nil, &result); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if result.ID != env.node.ID().String() {
		t.Errorf("id = %q, want %q", result.ID, env.node.ID())
	}
	if result.NetworkID != "klingnet-test-client" {
		t.Errorf("network_id = %q, want %q", result.NetworkID, "klingnet-test-client")
	}
}

func TestClient_NetGetPeerInfo(t *testing.T) {
	env := setupTestEnv(t)

	env.node.Table().Register(peermgr.PeerInfo{
		PeerID:   peer.ID("peer-1"),
		ConnType: types.ConnInbound,
		Network:  types.NetIPv4,
	})

	var result rpc.PeerInfoResult
	if err := env.client.Call("net_getPeerInfo", nil, &result); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if result.Count != 1 {
		t.Fatalf("count = %d, want 1", result.Count)
	}
	if result.Peers[0].ConnType != "inbound" {
		t.Errorf("conn_type = %q, want %q", result.Peers[0].ConnType, "inbound")
	}
}

func TestClient_SetPreferEvict(t *testing.T) {
	env := setupTestEnv(t)

	id := env.node.Table().Register(peermgr.PeerInfo{
		PeerID:   peer.ID("peer-1"),
		ConnType: types.ConnInbound,
		Network:  types.NetIPv4,
	})

	var result rpc.FlagResult
	err := env.client.Call("net_setPreferEvict", rpc.FlagParam{NodeID: uint64(id), Value: true}, &result)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}

	view, ok := env.node.Table().Lookup(id)
	if !ok {
		t.Fatal("peer vanished from table")
	}
	if !view.PreferEvict {
		t.Error("prefer_evict flag not set")
	}
}

func TestClient_SetPreferEvict_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	var result rpc.FlagResult
	err := env.client.Call("net_setPreferEvict", rpc.FlagParam{NodeID: 404, Value: true}, &result)
	if err == nil {
		t.Fatal("expected error for unknown node id")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32000 {
		t.Errorf("error code = %d, want -32000", rpcErr.Code)
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/") // port 1 should refuse

	var result rpc.NetInfoResult
	err := client.Call("net_getInfo", nil, &result)
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestClient_Call_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	var raw json.RawMessage
	err := env.client.Call("nonexistent_method", nil, &raw)
	if err == nil {
		t.Fatal("expected error for unknown method")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("error code = %d, want -32601", rpcErr.Code)
	}
}

func TestClient_Call_NilResultDiscarded(t *testing.T) {
	env := setupTestEnv(t)

	if err := env.client.Call("net_getInfo", nil, nil); err != nil {
		t.Fatalf("Call error: %v", err)
	}
}

func TestClient_CallContext_Canceled(t *testing.T) {
	env := setupTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var result rpc.NetInfoResult
	err := env.client.CallContext(ctx, "net_getInfo", nil, &result)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestClient_Call_HTTPStatusSurfaced(t *testing.T) {
	klog.Init("error", false, "")

	// An address filter that excludes 127.0.0.1 answers 403 with a plain
	// text body.
	srv := rpc.New("127.0.0.1:0", nil, config.RPCConfig{AllowedIPs: []string{"10.0.0.0/8"}})
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	client := New("http://" + srv.Addr() + "/")
	err := client.Call("net_getInfo", nil, nil)
	if err == nil {
		t.Fatal("expected error from 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v, want http status 403", err)
	}
}
