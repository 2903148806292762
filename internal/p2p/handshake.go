package p2p

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	klog "github.com/Klingon-tech/klingnet-peering/internal/log"
)

const (
	// handshakeTimeout is the max time for a complete handshake exchange.
	handshakeTimeout = 10 * time.Second

	// handshakeGrace is how long an inbound peer has to complete the
	// handshake before it is flagged for preferred eviction.
	handshakeGrace = 60 * time.Second

	// maxHandshakeBytes limits handshake message size.
	maxHandshakeBytes = 4096
)

// HandshakeMessage is exchanged between peers to verify compatibility and
// advertise capabilities. The service bits and relay flags feed the peer
// table, where the eviction pipeline ranks peers by usefulness.
type HandshakeMessage struct {
	ProtocolVersion uint32 `json:"protocol_version"`
	NetworkID       string `json:"network_id"`
	Services        uint64 `json:"services"`
	RelaysTxs       bool   `json:"relays_txs"`
	UsesBloom       bool   `json:"uses_bloom"`
}

// registerHandshakeHandler sets up the stream handler for incoming handshakes.
func (n *Node) registerHandshakeHandler() {
	logger := klog.WithComponent("p2p")
	n.host.SetStreamHandler(HandshakeProtocol, func(stream network.Stream) {
		defer stream.Close()

		remotePeer := stream.Conn().RemotePeer()

		_ = stream.SetReadDeadline(time.Now().Add(handshakeTimeout))

		// Read peer's handshake message.
		var peerMsg HandshakeMessage
		if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&peerMsg); err != nil {
			logger.Debug().Err(err).Str("peer", shortID(remotePeer)).Msg("Handshake read failed")
			return
		}

		// Respond with our message.
		ourMsg := n.buildHandshakeMessage()
		if err := json.NewEncoder(stream).Encode(&ourMsg); err != nil {
			logger.Debug().Err(err).Str("peer", shortID(remotePeer)).Msg("Handshake write failed")
			return
		}

		n.finishHandshake(remotePeer, peerMsg)
	})
}

// doHandshake initiates a handshake with a remote peer (dialer side).
func (n *Node) doHandshake(peerID peer.ID) {
	logger := klog.WithComponent("p2p")

	stream, err := n.host.NewStream(n.ctx, peerID, HandshakeProtocol)
	if err != nil {
		// Peer doesn't speak the handshake protocol; it stays unhandshaked
		// and maximally evictable.
		logger.Debug().Str("peer", shortID(peerID)).Msg("Peer does not support handshake protocol")
		return
	}
	defer stream.Close()

	_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

	// Send our message.
	ourMsg := n.buildHandshakeMessage()
	if err := json.NewEncoder(stream).Encode(&ourMsg); err != nil {
		logger.Debug().Err(err).Str("peer", shortID(peerID)).Msg("Handshake send failed")
		return
	}

	// Signal we're done writing.
	stream.CloseWrite()

	// Read peer's response.
	var peerMsg HandshakeMessage
	if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&peerMsg); err != nil {
		logger.Debug().Err(err).Str("peer", shortID(peerID)).Msg("Handshake response read failed")
		return
	}

	n.finishHandshake(peerID, peerMsg)
}

// finishHandshake validates the peer's message, then either records the
// advertised capabilities or disconnects an incompatible peer.
func (n *Node) finishHandshake(peerID peer.ID, msg HandshakeMessage) {
	if reason := n.validateHandshake(msg); reason != "" {
		logger := klog.WithComponent("p2p")
		logger.Warn().
			Str("peer", shortID(peerID)).
			Str("reason", reason).
			Msg("Handshake rejected, disconnecting")
		n.Disconnect(peerID)
		return
	}

	relevant := HasRelevantServices(msg.Services)
	if n.table.ApplyHandshake(peerID, relevant, msg.RelaysTxs, msg.UsesBloom) {
		return
	}
	// The connection notification can lag the first inbound stream; retry
	// once the table has caught up.
	time.AfterFunc(200*time.Millisecond, func() {
		n.table.ApplyHandshake(peerID, relevant, msg.RelaysTxs, msg.UsesBloom)
	})
}

// validateHandshake checks a peer's handshake message for compatibility.
// Returns an empty string on success, or a reason string on failure. Missing
// service bits are not a failure; they only make the peer more evictable.
func (n *Node) validateHandshake(msg HandshakeMessage) string {
	if msg.NetworkID != n.config.NetworkID {
		return fmt.Sprintf("network mismatch: peer=%q local=%q",
			msg.NetworkID, n.config.NetworkID)
	}
	if msg.ProtocolVersion < MinProtocolVersion {
		return fmt.Sprintf("protocol version too low: peer=%d min=%d",
			msg.ProtocolVersion, MinProtocolVersion)
	}
	return ""
}

// buildHandshakeMessage constructs our handshake message from node state.
func (n *Node) buildHandshakeMessage() HandshakeMessage {
	return HandshakeMessage{
		ProtocolVersion: ProtocolVersion,
		NetworkID:       n.config.NetworkID,
		Services:        LocalServices,
		RelaysTxs:       true,
		UsesBloom:       false,
	}
}

// watchHandshake flags an inbound peer for preferred eviction if it has not
// completed the handshake within the grace period.
func (n *Node) watchHandshake(peerID peer.ID) {
	select {
	case <-n.ctx.Done():
		return
	case <-time.After(handshakeGrace):
	}

	if n.table.Handshaked(peerID) {
		return
	}
	if len(n.host.Network().ConnsToPeer(peerID)) == 0 {
		return // Already gone.
	}

	n.table.MarkPreferEvict(peerID)
	logger := klog.WithComponent("p2p")
	logger.Debug().
		Str("peer", shortID(peerID)).
		Msg("Peer missed handshake grace, flagged for eviction")
}
