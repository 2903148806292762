package p2p

import (
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/multiformats/go-multiaddr"

	"github.com/Klingon-tech/klingnet-peering/internal/peermgr"
	"github.com/Klingon-tech/klingnet-peering/pkg/netgroup"
	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// connNotifier tracks connection lifecycle events via the network.Notifiee
// interface. Every connection is classified by transport and registered with
// the peer table; disconnects drop the registration.
type connNotifier struct {
	node *Node
}

// Connected is called when a new connection is opened.
func (cn *connNotifier) Connected(_ network.Network, conn network.Conn) {
	remotePeer := conn.RemotePeer()
	if remotePeer == cn.node.host.ID() {
		return // Ignore self-connections.
	}

	ep := netgroup.Classify(conn.RemoteMultiaddr())
	connType := types.ConnOutboundFullRelay
	if conn.Stat().Direction == network.DirInbound {
		connType = types.ConnInbound
	}
	cn.node.table.Register(peermgr.PeerInfo{
		PeerID:   remotePeer,
		ConnType: connType,
		Network:  ep.Network,
		IsLocal:  ep.IsLocal(),
		GroupKey: cn.node.keyer.Key(ep),
	})

	// The dialer initiates the handshake; inbound peers get a grace period
	// to complete it before they are flagged for preferred eviction.
	if conn.Stat().Direction == network.DirOutbound {
		go cn.node.doHandshake(remotePeer)
	} else {
		go cn.node.watchHandshake(remotePeer)
	}

	// Take a first round-trip sample right away.
	go cn.node.samplePing(remotePeer)
}

// Disconnected is called when a connection is closed. Only drops the peer
// from the table if there are no remaining connections to it.
func (cn *connNotifier) Disconnected(net network.Network, conn network.Conn) {
	remotePeer := conn.RemotePeer()
	// Check if there are other active connections to this peer.
	if len(net.ConnsToPeer(remotePeer)) == 0 {
		cn.node.table.Drop(remotePeer)
	}
}

// Listen is called when the node starts listening on a new address.
func (cn *connNotifier) Listen(network.Network, multiaddr.Multiaddr) {}

// ListenClose is called when the node stops listening on an address.
func (cn *connNotifier) ListenClose(network.Network, multiaddr.Multiaddr) {}
