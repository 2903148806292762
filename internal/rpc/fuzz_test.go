package rpc

import (
	"encoding/json"
	"testing"
)

// FuzzRPCRequestUnmarshal tests that arbitrary JSON does not panic
// when parsed as a JSON-RPC 2.0 request.
func FuzzRPCRequestUnmarshal(f *testing.F) {
	f.Add([]byte(`{"jsonrpc":"2.0","method":"net_getInfo","params":null,"id":1}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"net_setPreferEvict","params":{"node_id":7,"value":true},"id":"test"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"method":"","params":[]}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"net_getEvictionLog","params":[1,2,3],"id":999}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		_ = req.Method
		_ = req.ID
	})
}

// FuzzParseAllowedIPs tests that arbitrary allowlist entries never panic.
func FuzzParseAllowedIPs(f *testing.F) {
	f.Add("127.0.0.1")
	f.Add("10.0.0.0/8")
	f.Add("::1")
	f.Add("fc00::/8")
	f.Add("not-an-ip")
	f.Add("")

	f.Fuzz(func(t *testing.T, entry string) {
		nets := parseAllowedIPs([]string{entry})
		for _, n := range nets {
			if n == nil {
				t.Error("parseAllowedIPs returned a nil network")
			}
		}
	})
}
