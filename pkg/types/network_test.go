package types

import (
	"encoding/json"
	"testing"
)

func TestNetwork_String(t *testing.T) {
	tests := []struct {
		net  Network
		want string
	}{
		{NetUnknown, "unknown"},
		{NetIPv4, "ipv4"},
		{NetIPv6, "ipv6"},
		{NetOnion, "onion"},
		{NetI2P, "i2p"},
		{NetCJDNS, "cjdns"},
	}
	for _, tt := range tests {
		if got := tt.net.String(); got != tt.want {
			t.Errorf("Network(%d).String() = %q, want %q", tt.net, got, tt.want)
		}
	}
}

func TestNetwork_StringUnknownValue(t *testing.T) {
	got := Network(250).String()
	if got != "network(250)" {
		t.Errorf("String() for out-of-range value = %q, want %q", got, "network(250)")
	}
}

func TestParseNetwork_RoundTrip(t *testing.T) {
	for _, n := range []Network{NetUnknown, NetIPv4, NetIPv6, NetOnion, NetI2P, NetCJDNS} {
		parsed, err := ParseNetwork(n.String())
		if err != nil {
			t.Fatalf("ParseNetwork(%q) error: %v", n.String(), err)
		}
		if parsed != n {
			t.Errorf("ParseNetwork(%q) = %v, want %v", n.String(), parsed, n)
		}
	}
}

func TestParseNetwork_Invalid(t *testing.T) {
	if _, err := ParseNetwork("tor"); err == nil {
		t.Error("ParseNetwork(\"tor\") should fail, canonical name is \"onion\"")
	}
}

func TestNetwork_IsPrivacyPreserving(t *testing.T) {
	tests := []struct {
		net  Network
		want bool
	}{
		{NetUnknown, false},
		{NetIPv4, false},
		{NetIPv6, false},
		{NetOnion, true},
		{NetI2P, true},
		{NetCJDNS, true},
	}
	for _, tt := range tests {
		if got := tt.net.IsPrivacyPreserving(); got != tt.want {
			t.Errorf("%s.IsPrivacyPreserving() = %v, want %v", tt.net, got, tt.want)
		}
	}
}

func TestNetwork_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(NetOnion)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `"onion"` {
		t.Errorf("Marshal(NetOnion) = %s, want %q", data, `"onion"`)
	}

	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if n != NetOnion {
		t.Errorf("round trip = %v, want NetOnion", n)
	}
}

func TestNetwork_UnmarshalInvalid(t *testing.T) {
	var n Network
	if err := json.Unmarshal([]byte(`"clearnet"`), &n); err == nil {
		t.Error("Unmarshal of unknown network name should fail")
	}
	if err := json.Unmarshal([]byte(`42`), &n); err == nil {
		t.Error("Unmarshal of non-string should fail")
	}
}
