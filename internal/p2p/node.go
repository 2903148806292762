// Package p2p implements peer-to-peer networking using libp2p. Every
// connection is classified and registered with the peer table, inbound
// connections pass through the slot admission policy, and gossip activity
// feeds the usefulness metadata the eviction pipeline ranks peers by.
package p2p

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"

	klog "github.com/Klingon-tech/klingnet-peering/internal/log"
	"github.com/Klingon-tech/klingnet-peering/internal/peermgr"
	"github.com/Klingon-tech/klingnet-peering/internal/storage"
	"github.com/Klingon-tech/klingnet-peering/pkg/netgroup"
)

const (
	// dhtRendezvousFallback is the discovery namespace when no NetworkID
	// is configured.
	dhtRendezvousFallback = "klingnet-peering"

	dhtDiscoveryInterval = 30 * time.Second
	dhtFindTimeout       = 20 * time.Second

	seedConnectTimeout = 10 * time.Second
	seedRetryInterval  = 10 * time.Second

	// peerConnectTimeout bounds dials to discovered or persisted peers.
	peerConnectTimeout = 5 * time.Second
)

// Config holds P2P node configuration.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	MaxPeers   int
	MaxInbound int // Inbound slot ceiling (<=0 disables the budget)
	NoDiscover bool
	DHTServer  bool                    // Run DHT in server mode (for seeds)
	NetworkID  string                  // e.g. "klingnet-mainnet", isolates discovery and handshakes per network
	DB         storage.DB              // Peer and eviction persistence (nil = disabled, for tests)
	Identity   libp2pcrypto.PrivKey    // Node identity key (nil = ephemeral, for tests)
	GroupSalt  [netgroup.SaltSize]byte // Private salt for network group keying
}

// Node is the libp2p host plus the peering services layered on top of it:
// the connection table, slot admission, gossip relay tracking, and peer
// persistence.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	config Config
	ctx    context.Context
	cancel context.CancelFunc

	txTopic    *pubsub.Topic
	blockTopic *pubsub.Topic
	txSub      *pubsub.Subscription
	blockSub   *pubsub.Subscription

	table     *peermgr.Table
	admission *peermgr.Admission   // nil before Start
	evictions *peermgr.EvictionLog // nil if Config.DB is nil
	keyer     *netgroup.Keyer
	relay     *relayMonitor

	peerStore  *PeerStore    // nil if Config.DB is nil
	dht        *dht.IpfsDHT  // nil if NoDiscover
	connNotify *connNotifier // connection lifecycle tracker
}

// New creates a new P2P node with the given config.
func New(cfg Config) *Node {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		table:  peermgr.NewTable(),
		keyer:  netgroup.NewKeyer(cfg.GroupSalt),
	}
	n.relay = newRelayMonitor(n.table)
	if cfg.DB != nil {
		n.peerStore = NewPeerStore(cfg.DB)
	}
	return n
}

// rendezvous returns the discovery namespace shared by DHT and mDNS.
// Distinct NetworkIDs keep mainnet and testnet peers from finding each
// other.
func (n *Node) rendezvous() string {
	if n.config.NetworkID != "" {
		return "klingnet/" + n.config.NetworkID
	}
	return dhtRendezvousFallback
}

// Start brings the node online: the libp2p host with the admission gater,
// gossip topics, discovery, and the background maintenance loops.
func (n *Node) Start() error {
	// The eviction history and admission policy must exist before the
	// host does, because the connection gater consults them from its
	// first callback.
	if n.config.DB != nil {
		evictions, err := peermgr.NewEvictionLog(n.config.DB)
		if err != nil {
			return fmt.Errorf("open eviction log: %w", err)
		}
		n.evictions = evictions
	}
	n.admission = peermgr.NewAdmission(n.table, n.config.MaxInbound, n, n.evictions)

	if err := n.openHost(); err != nil {
		return err
	}
	if err := n.openGossip(); err != nil {
		n.closeDHT()
		n.host.Close()
		return err
	}

	n.registerHandshakeHandler()
	n.startLoops()
	return nil
}

// openHost creates the libp2p host with the slot gater attached, hooks up
// connection tracking, and initializes the DHT so it can serve as a peer
// source for GossipSub.
func (n *Node) openHost() error {
	listen := fmt.Sprintf("/ip4/%s/tcp/%d", n.config.ListenAddr, n.config.Port)
	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(listen),
		libp2p.ConnectionGater(&slotGater{admission: n.admission}),
	}
	if n.config.Identity != nil {
		opts = append(opts, libp2p.Identity(n.config.Identity))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create libp2p host: %w", err)
	}
	n.host = h

	n.connNotify = &connNotifier{node: n}
	h.Network().Notify(n.connNotify)

	if !n.config.NoDiscover {
		if err := n.initDHT(); err != nil {
			h.Close()
			return fmt.Errorf("init dht: %w", err)
		}
	}
	return nil
}

// openGossip joins the tx and block topics. The subscriptions only feed
// the relay monitor; this node never publishes.
func (n *Node) openGossip() error {
	ps, err := pubsub.NewGossipSub(n.ctx, n.host,
		pubsub.WithMaxMessageSize(maxGossipMessageSize),
	)
	if err != nil {
		return fmt.Errorf("create pubsub: %w", err)
	}
	n.pubsub = ps
	return n.joinTopics()
}

// startLoops spawns the background work: relay crediting, seed dialing,
// discovery, ping sampling, and peer persistence.
func (n *Node) startLoops() {
	go n.readLoop(n.txSub, n.relay.HandleTx)
	go n.readLoop(n.blockSub, n.relay.HandleBlock)
	go n.loadPersistedPeers()

	// First seed attempt is blocking, retries run in background.
	if len(n.config.Seeds) > 0 {
		logger := klog.WithComponent("p2p")
		logger.Info().Int("seeds", len(n.config.Seeds)).Msg("Connecting to seeds...")
	}
	n.connectSeedsOnce()
	go n.connectSeedsLoop()

	if !n.config.NoDiscover {
		n.startMDNS()
		go n.runDHTDiscovery()
	}

	go n.runPingLoop()

	if n.peerStore != nil {
		go n.runPersistLoop()
	}
}

// Stop persists peers one final time and shuts the node down.
func (n *Node) Stop() error {
	n.persistPeers()

	n.cancel()
	if n.txSub != nil {
		n.txSub.Cancel()
	}
	if n.blockSub != nil {
		n.blockSub.Cancel()
	}

	n.closeDHT()
	if n.host != nil {
		return n.host.Close()
	}
	return nil
}

// Table returns the connection table.
func (n *Node) Table() *peermgr.Table {
	return n.table
}

// Admission returns the inbound slot policy (nil before Start).
func (n *Node) Admission() *peermgr.Admission {
	return n.admission
}

// EvictionLog returns the persisted eviction history (nil when the node runs
// without a database).
func (n *Node) EvictionLog() *peermgr.EvictionLog {
	return n.evictions
}

// Disconnect closes all connections to a peer and removes it from the table.
// It satisfies the admission policy's disconnecter.
func (n *Node) Disconnect(pid peer.ID) error {
	if n.host == nil {
		return fmt.Errorf("node not started")
	}
	n.table.Drop(pid)
	return n.host.Network().ClosePeer(pid)
}

// ID returns the peer ID of this node.
func (n *Node) ID() peer.ID {
	if n.host == nil {
		return ""
	}
	return n.host.ID()
}

// Addrs returns this node's listen multiaddrs with the peer ID suffixed,
// in the form seeds are configured with.
func (n *Node) Addrs() []string {
	if n.host == nil {
		return nil
	}
	id := n.host.ID()
	addrs := make([]string, 0, len(n.host.Addrs()))
	for _, a := range n.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, id))
	}
	return addrs
}

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	total, _, _ := n.table.Counts()
	return total
}

// NetworkID returns the configured network identifier.
func (n *Node) NetworkID() string {
	return n.config.NetworkID
}

func (n *Node) joinTopics() error {
	var err error
	if n.txTopic, err = n.pubsub.Join(TopicTransactions); err != nil {
		return fmt.Errorf("join tx topic: %w", err)
	}
	if n.blockTopic, err = n.pubsub.Join(TopicBlocks); err != nil {
		return fmt.Errorf("join block topic: %w", err)
	}
	if n.txSub, err = n.txTopic.Subscribe(); err != nil {
		return fmt.Errorf("subscribe tx: %w", err)
	}
	if n.blockSub, err = n.blockTopic.Subscribe(); err != nil {
		return fmt.Errorf("subscribe block: %w", err)
	}
	return nil
}

// readLoop feeds gossip messages from other peers to handler until the
// node context is cancelled.
func (n *Node) readLoop(sub *pubsub.Subscription, handler func(peer.ID, []byte)) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		handler(msg.ReceivedFrom, msg.Data)
	}
}

func (n *Node) startMDNS() {
	svc := mdns.NewMdnsService(n.host, n.rendezvous(), &discoveryNotifee{node: n})
	// mDNS failure is non-fatal.
	_ = svc.Start()
}

// connectSeedsOnce dials every configured seed, blocking. Reports whether
// at least one connected.
func (n *Node) connectSeedsOnce() bool {
	logger := klog.WithComponent("p2p")
	connected := false
	for _, addr := range n.config.Seeds {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			logger.Warn().Str("addr", addr).Err(err).Msg("Bad seed address")
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, seedConnectTimeout)
		err = n.host.Connect(ctx, *info)
		cancel()
		if err != nil {
			logger.Warn().Str("peer", shortID(info.ID)).Err(err).Msg("Seed connect failed")
			continue
		}
		logger.Info().Str("peer", shortID(info.ID)).Msg("Seed connected")
		connected = true
	}
	return connected
}

// connectSeedsLoop redials the seeds whenever the node ends up with no
// peers at all.
func (n *Node) connectSeedsLoop() {
	if len(n.config.Seeds) == 0 {
		return
	}
	logger := klog.WithComponent("p2p")

	ticker := time.NewTicker(seedRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if n.PeerCount() == 0 {
				logger.Info().Int("seeds", len(n.config.Seeds)).Msg("No peers, retrying seeds...")
				n.connectSeedsOnce()
			}
		}
	}
}

// shortID trims a peer id for log lines.
func shortID(pid peer.ID) string {
	s := pid.String()
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// --- DHT ---

// initDHT creates the Kademlia DHT. Ordinary nodes run it in client mode;
// seeds run in server mode so fresh nodes can bootstrap off them.
func (n *Node) initDHT() error {
	mode := dht.ModeClient
	if n.config.DHTServer {
		mode = dht.ModeServer
	}
	d, err := dht.New(n.ctx, n.host, dht.Mode(mode))
	if err != nil {
		return fmt.Errorf("create kad-dht: %w", err)
	}
	if err := d.Bootstrap(n.ctx); err != nil {
		d.Close()
		return fmt.Errorf("bootstrap kad-dht: %w", err)
	}
	n.dht = d
	return nil
}

func (n *Node) closeDHT() {
	if n.dht != nil {
		n.dht.Close()
		n.dht = nil
	}
}

// runDHTDiscovery advertises this node under the network rendezvous and
// periodically dials whoever else is advertising there.
func (n *Node) runDHTDiscovery() {
	if n.dht == nil {
		return
	}

	disc := drouting.NewRoutingDiscovery(n.dht)
	dutil.Advertise(n.ctx, disc, n.rendezvous())

	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.findDHTPeers(disc)
		}
	}
}

// findDHTPeers dials rendezvous peers until the MaxPeers budget is spent.
func (n *Node) findDHTPeers(disc *drouting.RoutingDiscovery) {
	ctx, cancel := context.WithTimeout(n.ctx, dhtFindTimeout)
	defer cancel()

	found, err := disc.FindPeers(ctx, n.rendezvous())
	if err != nil {
		return
	}

	for p := range found {
		if p.ID == n.host.ID() || len(p.Addrs) == 0 {
			continue
		}
		if n.config.MaxPeers > 0 && n.PeerCount() >= n.config.MaxPeers {
			return
		}
		dialCtx, dialCancel := context.WithTimeout(n.ctx, peerConnectTimeout)
		n.host.Connect(dialCtx, p) // Notifier registers the peer on success.
		dialCancel()
	}
}

// --- Peer Persistence ---

// persistPeers writes a record for every live connection so the node can
// redial known peers after a restart.
func (n *Node) persistPeers() {
	if n.peerStore == nil || n.host == nil {
		return
	}

	now := time.Now().Unix()
	for _, pid := range n.host.Network().Peers() {
		conns := n.host.Network().ConnsToPeer(pid)
		if len(conns) == 0 {
			continue
		}
		ep := netgroup.Classify(conns[0].RemoteMultiaddr())

		addrs := n.host.Peerstore().Addrs(pid)
		addrStrs := make([]string, len(addrs))
		for i, a := range addrs {
			addrStrs[i] = a.String()
		}
		rec := PeerRecord{
			ID:       pid.String(),
			Addrs:    addrStrs,
			Network:  ep.Network.String(),
			LastSeen: now,
		}
		n.peerStore.Save(rec) // Best-effort, ignore errors.
	}
}

// loadPersistedPeers redials peers remembered from earlier runs. Runs once
// at startup, after pruning records past the staleness cutoff.
func (n *Node) loadPersistedPeers() {
	if n.peerStore == nil {
		return
	}
	n.peerStore.PruneStale(staleThreshold)

	records, err := n.peerStore.LoadAll()
	if err != nil {
		return
	}
	for _, rec := range records {
		info, ok := n.recordAddrInfo(rec)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, peerConnectTimeout)
		n.host.Connect(ctx, info) // Best-effort reconnect.
		cancel()
	}
}

// recordAddrInfo rebuilds dialable address info from a stored record,
// skipping our own ID and records with no usable addresses.
func (n *Node) recordAddrInfo(rec PeerRecord) (peer.AddrInfo, bool) {
	id, err := peer.Decode(rec.ID)
	if err != nil || id == n.host.ID() {
		return peer.AddrInfo{}, false
	}

	info := peer.AddrInfo{ID: id}
	for _, addr := range rec.Addrs {
		parsed, err := peer.AddrInfoFromString(addr + "/p2p/" + rec.ID)
		if err != nil {
			continue
		}
		info.Addrs = append(info.Addrs, parsed.Addrs...)
	}
	return info, len(info.Addrs) > 0
}

func (n *Node) runPersistLoop() {
	ticker := time.NewTicker(persistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.persistPeers()
			n.peerStore.PruneStale(staleThreshold)
		}
	}
}
