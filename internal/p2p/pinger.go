package p2p

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"
)

const (
	// pingInterval is how often every connected peer is probed.
	pingInterval = 2 * time.Minute

	// pingTimeout bounds a single round-trip probe.
	pingTimeout = 10 * time.Second
)

// runPingLoop periodically samples round-trip times for all connected peers.
// The table keeps the best observed time per peer, so peers that never answer
// stay at the saturated sentinel and lose the eviction pipeline's ping stage.
func (n *Node) runPingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			for _, pid := range n.host.Network().Peers() {
				go n.samplePing(pid)
			}
		}
	}
}

// samplePing measures one round trip to the peer and records it.
func (n *Node) samplePing(pid peer.ID) {
	ctx, cancel := context.WithTimeout(n.ctx, pingTimeout)
	defer cancel()

	res, ok := <-ping.Ping(ctx, n.host, pid)
	if !ok || res.Error != nil {
		return
	}
	n.table.RecordPing(pid, res.RTT)
}
