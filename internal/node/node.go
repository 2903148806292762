// Package node provides a reusable peering node that can be embedded
// in any binary (daemon, test harness, etc.).
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-peering/config"
	"github.com/Klingon-tech/klingnet-peering/internal/identity"
	klog "github.com/Klingon-tech/klingnet-peering/internal/log"
	"github.com/Klingon-tech/klingnet-peering/internal/p2p"
	"github.com/Klingon-tech/klingnet-peering/internal/rpc"
	"github.com/Klingon-tech/klingnet-peering/internal/storage"
	"github.com/rs/zerolog"
)

// statusInterval is how often the node logs a connection summary.
const statusInterval = 60 * time.Second

// Node is a fully-initialized peering node.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db    storage.DB
	ident *identity.Identity

	// Networking
	p2pNode *p2p.Node

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, identity, P2P, RPC) but does NOT start background
// goroutines. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/peering.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("network_id", cfg.NetworkID()).
		Str("datadir", cfg.DataDir).
		Msg("Starting Klingnet Peering Node")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.PeersDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.PeersDir(), err)
	}
	logger.Info().Str("path", cfg.PeersDir()).Msg("Database opened")

	// ── 3. Node identity ────────────────────────────────────────────
	identPath := expandHome(cfg.IdentityFile())

	var passphrase []byte
	if cfg.Identity.Encrypted {
		_, statErr := os.Stat(identPath)
		passphrase, err = identity.ReadPassphrase(os.IsNotExist(statErr))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("identity passphrase: %w", err)
		}
	}

	ident, mnemonic, err := identity.LoadOrCreate(identPath, passphrase, identity.DefaultParams())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load identity %s: %w", identPath, err)
	}
	if mnemonic != "" {
		fmt.Println("New node identity generated. Recovery phrase (write this down!):")
		fmt.Printf("  %s\n\n", mnemonic)
	}

	peerID, err := ident.PeerID()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("derive peer id: %w", err)
	}
	logger.Info().Str("peer_id", peerID.String()).Msg("Identity loaded")

	// ── 4. P2P ──────────────────────────────────────────────────────
	var p2pNode *p2p.Node
	if cfg.P2P.Enabled {
		p2pNode = p2p.New(p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Port:       cfg.P2P.Port,
			Seeds:      cfg.P2P.Seeds,
			MaxPeers:   cfg.P2P.MaxPeers,
			MaxInbound: cfg.P2P.MaxInbound,
			NoDiscover: cfg.P2P.NoDiscover,
			DHTServer:  cfg.P2P.DHTServer,
			NetworkID:  cfg.NetworkID(),
			DB:         db,
			Identity:   ident.PeerKey(),
			GroupSalt:  ident.GroupSalt(),
		})

		if err := p2pNode.Start(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start P2P: %w", err)
		}

		logger.Info().
			Str("id", p2pNode.ID().String()).
			Int("port", cfg.P2P.Port).
			Int("max_inbound", cfg.P2P.MaxInbound).
			Bool("discovery", !cfg.P2P.NoDiscover).
			Msg("P2P node started")
	} else {
		logger.Warn().Msg("P2P disabled by config; node will run offline")
	}

	// ── 5. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		rpcServer = rpc.New(rpcAddr, p2pNode, cfg.RPC)
		if err := rpcServer.Start(); err != nil {
			if p2pNode != nil {
				p2pNode.Stop()
			}
			db.Close()
			return nil, fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server started")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		ident:     ident,
		p2pNode:   p2pNode,
		rpcServer: rpcServer,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start launches background goroutines. The networking loops (discovery,
// pings, admission) already run inside the p2p node; this adds only the
// periodic connection status report.
func (n *Node) Start() error {
	if n.p2pNode != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runStatusLoop()
		}()
	}

	n.logger.Info().
		Bool("p2p", n.p2pNode != nil).
		Bool("rpc", n.rpcServer != nil).
		Msg("Node is up")

	return nil
}

// Stop tears the node down in reverse start order: status loop, RPC,
// P2P, then storage.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.p2pNode != nil {
		n.p2pNode.Stop()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Peering node stopped")
}

// RPCAddr reports where the RPC server listens, or "" when RPC is off.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	if n.p2pNode == nil {
		return 0
	}
	return n.p2pNode.PeerCount()
}

// PeerID returns this node's peer identity.
func (n *Node) PeerID() string {
	pid, err := n.ident.PeerID()
	if err != nil {
		return ""
	}
	return pid.String()
}

// expandHome resolves a leading "~/" (or a bare "~") against the current
// user's home directory. Other-user forms like "~alice/keys" pass through
// unchanged.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ── Status ──────────────────────────────────────────────────────────

func (n *Node) runStatusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			total, inbound, outbound := n.p2pNode.Table().Counts()
			evicted := 0
			if hist := n.p2pNode.EvictionLog(); hist != nil {
				evicted = hist.Len()
			}
			n.logger.Info().
				Int("peers", total).
				Int("inbound", inbound).
				Int("outbound", outbound).
				Int("evictions", evicted).
				Msg("Connection status")
		}
	}
}
