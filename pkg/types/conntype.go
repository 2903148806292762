package types

import (
	"encoding/json"
	"fmt"
)

// ConnType describes how a peer connection came to exist. Aside from
// ConnInbound, all types are initiated by us; only inbound connections are
// ever subject to eviction.
type ConnType uint8

const (
	// ConnInbound is a connection initiated by the peer. It is the only
	// property known at accept time, before any protocol exchange.
	ConnInbound ConnType = iota

	// ConnOutboundFullRelay is a default outbound connection relaying
	// blocks and transactions.
	ConnOutboundFullRelay

	// ConnManual is an operator-requested connection; never automatically
	// disconnected.
	ConnManual

	// ConnFeeler is a short-lived liveness probe.
	ConnFeeler

	// ConnBlockRelayOnly is an outbound connection that relays blocks but
	// not transactions, to resist partition attacks.
	ConnBlockRelayOnly

	// ConnAddrFetch is a short-lived connection used to solicit addresses.
	ConnAddrFetch
)

// IsInbound returns true for peer-initiated connections.
func (t ConnType) IsInbound() bool {
	return t == ConnInbound
}

// String returns the canonical name of the connection type.
func (t ConnType) String() string {
	switch t {
	case ConnInbound:
		return "inbound"
	case ConnOutboundFullRelay:
		return "outbound-full-relay"
	case ConnManual:
		return "manual"
	case ConnFeeler:
		return "feeler"
	case ConnBlockRelayOnly:
		return "block-relay-only"
	case ConnAddrFetch:
		return "addr-fetch"
	}
	return fmt.Sprintf("conntype(%d)", uint8(t))
}

// ParseConnType converts a canonical connection type name to a ConnType.
func ParseConnType(s string) (ConnType, error) {
	switch s {
	case "inbound":
		return ConnInbound, nil
	case "outbound-full-relay":
		return ConnOutboundFullRelay, nil
	case "manual":
		return ConnManual, nil
	case "feeler":
		return ConnFeeler, nil
	case "block-relay-only":
		return ConnBlockRelayOnly, nil
	case "addr-fetch":
		return ConnAddrFetch, nil
	}
	return ConnInbound, fmt.Errorf("unknown connection type %q", s)
}

// MarshalJSON encodes the connection type as its canonical name.
func (t ConnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a canonical connection type name.
func (t *ConnType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseConnType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
