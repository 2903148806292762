package p2p

import (
	"github.com/libp2p/go-libp2p/core/protocol"
)

// GossipSub topic names.
const (
	TopicTransactions = "/klingnet/tx/1.0.0"
	TopicBlocks       = "/klingnet/block/1.0.0"
)

// Handshake protocol constants.
const (
	// HandshakeProtocol is the stream protocol ID for peer compatibility checking.
	HandshakeProtocol = protocol.ID("/klingnet/handshake/1.0.0")

	// ProtocolVersion is the current protocol version advertised during handshake.
	ProtocolVersion uint32 = 1

	// MinProtocolVersion is the minimum protocol version we accept from peers.
	MinProtocolVersion uint32 = 1
)

// Service bits advertised during handshake.
const (
	// ServiceBlocks marks a peer that serves historical blocks.
	ServiceBlocks uint64 = 1 << 0

	// ServiceTxRelay marks a peer that participates in transaction relay.
	ServiceTxRelay uint64 = 1 << 1

	// ServiceBloom marks a peer that answers bloom-filtered queries.
	ServiceBloom uint64 = 1 << 2
)

// LocalServices is the service set this node advertises to peers.
const LocalServices = ServiceBlocks | ServiceTxRelay

// relevantServices is the service set a peer must advertise to count as fully
// useful. Peers missing any of these bits are first in line at the eviction
// pipeline's missing-services stage.
const relevantServices = ServiceBlocks

// HasRelevantServices reports whether the advertised service set covers
// everything this node considers required from a peer.
func HasRelevantServices(services uint64) bool {
	return services&relevantServices == relevantServices
}

// maxGossipMessageSize bounds a single GossipSub message.
const maxGossipMessageSize = 2 << 20
