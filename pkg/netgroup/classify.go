package netgroup

import (
	"net"
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// Classify maps a multiaddr to its network class and group material. It never
// fails: addresses on transports it does not recognize come back as
// NetUnknown and group on their raw bytes, which keeps every live connection
// accountable to some group.
func Classify(addr ma.Multiaddr) Endpoint {
	if addr == nil {
		return Endpoint{Network: types.NetUnknown}
	}

	if v, err := addr.ValueForProtocol(ma.P_IP4); err == nil {
		ip := net.ParseIP(v)
		if ip4 := ip.To4(); ip4 != nil {
			return Endpoint{Network: types.NetIPv4, IP: ip, group: ip4[:2]}
		}
	}

	if v, err := addr.ValueForProtocol(ma.P_IP6); err == nil {
		ip := net.ParseIP(v)
		if ip16 := ip.To16(); ip16 != nil {
			if isCJDNS(ip16) {
				return Endpoint{Network: types.NetCJDNS, IP: ip, group: ip16}
			}
			return Endpoint{Network: types.NetIPv6, IP: ip, group: ip16[:4]}
		}
	}

	if v, err := addr.ValueForProtocol(ma.P_ONION3); err == nil {
		// The onion3 value is "<address>:<port>"; the port does not define
		// the group.
		host := v
		if i := strings.LastIndexByte(v, ':'); i >= 0 {
			host = v[:i]
		}
		return Endpoint{Network: types.NetOnion, group: []byte(host)}
	}

	if v, err := addr.ValueForProtocol(ma.P_GARLIC32); err == nil {
		return Endpoint{Network: types.NetI2P, group: []byte(v)}
	}
	if v, err := addr.ValueForProtocol(ma.P_GARLIC64); err == nil {
		return Endpoint{Network: types.NetI2P, group: []byte(v)}
	}

	return Endpoint{Network: types.NetUnknown, group: addr.Bytes()}
}

// isCJDNS reports whether ip sits in the CJDNS mesh range fc00::/8.
func isCJDNS(ip16 net.IP) bool {
	return len(ip16) == net.IPv6len && ip16[0] == 0xfc
}
