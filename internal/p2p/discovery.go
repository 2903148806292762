package p2p

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
)

// discoveryNotifee dials peers announced over local mDNS. Connections opened
// here flow through the same notifier and admission path as any other dial.
type discoveryNotifee struct {
	node *Node
}

// HandlePeerFound implements the mdns.Notifee callback.
func (d *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	n := d.node
	if pi.ID == n.host.ID() {
		return
	}
	if n.config.MaxPeers > 0 && n.PeerCount() >= n.config.MaxPeers {
		return // Table is full, skip the dial.
	}

	ctx, cancel := context.WithTimeout(n.ctx, peerConnectTimeout)
	defer cancel()
	n.host.Connect(ctx, pi) // Best-effort, notifier registers on success.
}
