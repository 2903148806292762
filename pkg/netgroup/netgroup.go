// Package netgroup classifies remote transport addresses into network groups
// for peer-diversity accounting. Peers sharing an IPv4 /16, an IPv6 /32, or a
// scarce-address transport identity fall into the same group; group
// identifiers are salted per node so a remote operator cannot predict which
// of its addresses collide.
package netgroup

import (
	"encoding/binary"
	"net"

	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// SaltSize is the length in bytes of a group salt.
const SaltSize = 32

// Endpoint is the classification of one remote transport address, produced
// by Classify. IP is nil for transports that do not expose one (onion, i2p).
type Endpoint struct {
	Network types.Network
	IP      net.IP

	// group is the canonical material that defines the endpoint's network
	// group: the /16 prefix for IPv4, the /32 prefix for IPv6, the full
	// address for scarce transports.
	group []byte
}

// IsLocal reports whether the endpoint is a loopback connection from the
// host itself.
func (e Endpoint) IsLocal() bool {
	return e.IP != nil && e.IP.IsLoopback()
}

// Keyer turns endpoints into salted 64-bit group identifiers. The salt never
// leaves the node, so identifiers are stable locally but meaningless to
// anyone else. A Keyer is safe for concurrent use.
type Keyer struct {
	salt [SaltSize]byte
}

// NewKeyer creates a Keyer with the given private salt.
func NewKeyer(salt [SaltSize]byte) *Keyer {
	return &Keyer{salt: salt}
}

// Key returns the group identifier for ep under this keyer's salt: the first
// eight bytes, big-endian, of BLAKE3 over the salt, the network class, and
// the group material.
func (k *Keyer) Key(ep Endpoint) uint64 {
	buf := make([]byte, 0, SaltSize+1+len(ep.group))
	buf = append(buf, k.salt[:]...)
	buf = append(buf, byte(ep.Network))
	buf = append(buf, ep.group...)
	sum := blake3.Sum256(buf)
	return binary.BigEndian.Uint64(sum[:8])
}
