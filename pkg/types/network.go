package types

import (
	"encoding/json"
	"fmt"
)

// Network classifies the transport a peer connection arrived over.
type Network uint8

const (
	NetUnknown Network = iota // Unclassified or unroutable.
	NetIPv4                   // Plain IPv4.
	NetIPv6                   // Plain IPv6.
	NetOnion                  // Tor v3 hidden service.
	NetI2P                    // I2P garlic routing.
	NetCJDNS                  // CJDNS mesh (fc00::/8).
)

// IsPrivacyPreserving returns true for transports whose address-space
// diversity is scarce and disproportionately worth protecting (Onion, I2P,
// CJDNS). Local connections are handled separately by the eviction logic.
func (n Network) IsPrivacyPreserving() bool {
	switch n {
	case NetOnion, NetI2P, NetCJDNS:
		return true
	}
	return false
}

// String returns the canonical lowercase name of the network.
func (n Network) String() string {
	switch n {
	case NetUnknown:
		return "unknown"
	case NetIPv4:
		return "ipv4"
	case NetIPv6:
		return "ipv6"
	case NetOnion:
		return "onion"
	case NetI2P:
		return "i2p"
	case NetCJDNS:
		return "cjdns"
	}
	return fmt.Sprintf("network(%d)", uint8(n))
}

// ParseNetwork converts a canonical network name to a Network.
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "unknown":
		return NetUnknown, nil
	case "ipv4":
		return NetIPv4, nil
	case "ipv6":
		return NetIPv6, nil
	case "onion":
		return NetOnion, nil
	case "i2p":
		return NetI2P, nil
	case "cjdns":
		return NetCJDNS, nil
	}
	return NetUnknown, fmt.Errorf("unknown network %q", s)
}

// MarshalJSON encodes the network as its canonical name.
func (n Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON decodes a canonical network name.
func (n *Network) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseNetwork(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
