package p2p

import (
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/Klingon-tech/klingnet-peering/internal/peermgr"
)

// slotGater implements the libp2p ConnectionGater interface to apply the
// inbound connection budget. When all inbound slots are taken, the admission
// policy either evicts a live peer to make room or refuses the newcomer.
type slotGater struct {
	admission *peermgr.Admission
}

// InterceptPeerDial allows all outbound dials; only inbound connections are
// budgeted.
func (g *slotGater) InterceptPeerDial(peer.ID) bool {
	return true
}

// InterceptAddrDial allows all address dials.
func (g *slotGater) InterceptAddrDial(peer.ID, ma.Multiaddr) bool {
	return true
}

// InterceptAccept allows all inbound connections at the transport layer.
// Peer identity is not yet known at this stage.
func (g *slotGater) InterceptAccept(network.ConnMultiaddrs) bool {
	return true
}

// InterceptSecured applies the inbound slot budget once the peer's identity
// is authenticated.
func (g *slotGater) InterceptSecured(dir network.Direction, _ peer.ID, _ network.ConnMultiaddrs) bool {
	if dir != network.DirInbound {
		return true
	}
	return g.admission.AdmitInbound()
}

// InterceptUpgraded allows all fully upgraded connections.
func (g *slotGater) InterceptUpgraded(network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}
