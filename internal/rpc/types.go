package rpc

import "encoding/json"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
)

// Request is a JSON-RPC 2.0 request. Params stay raw until the handler
// knows which shape to decode.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// NodeIDParam is used by endpoints that address a single connection.
type NodeIDParam struct {
	NodeID uint64 `json:"node_id"`
}

// FlagParam is used by net_setPreferEvict and net_setNoBan.
type FlagParam struct {
	NodeID uint64 `json:"node_id"`
	Value  bool   `json:"value"`
}

// LimitParam is used by net_getEvictionLog.
type LimitParam struct {
	Limit int `json:"limit,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// NetInfoResult is returned by net_getInfo.
type NetInfoResult struct {
	PeerCount  int            `json:"peer_count"`
	Inbound    int            `json:"inbound"`
	Outbound   int            `json:"outbound"`
	MaxInbound int            `json:"max_inbound"` // 0 = no inbound ceiling
	Networks   map[string]int `json:"networks"`
	Evictions  int            `json:"evictions"` // Retained eviction records.
}

// PeerEntry describes a single connection in net_getPeerInfo.
type PeerEntry struct {
	NodeID        uint64 `json:"node_id"`
	PeerID        string `json:"peer_id"`
	ConnType      string `json:"conn_type"`
	Network       string `json:"network"`
	IsLocal       bool   `json:"is_local"`
	GroupKey      string `json:"group_key"` // Salted netgroup key, hex.
	ConnectedAt   string `json:"connected_at"`
	ConnectedSecs int64  `json:"connected_secs"`
	MinPingUsecs  int64  `json:"min_ping_usecs"` // -1 until a sample lands.
	LastBlockAt   int64  `json:"last_block_at"`  // Unix timestamp, 0 if never.
	LastTxAt      int64  `json:"last_tx_at"`     // Unix timestamp, 0 if never.

	RelevantServices bool `json:"relevant_services"`
	RelaysTxs        bool `json:"relays_txs"`
	UsesBloom        bool `json:"uses_bloom"`
	Handshaked       bool `json:"handshaked"`
	PreferEvict      bool `json:"prefer_evict"`
	NoBan            bool `json:"noban"`
}

// PeerInfoResult is returned by net_getPeerInfo.
type PeerInfoResult struct {
	Count int         `json:"count"`
	Peers []PeerEntry `json:"peers"`
}

// NodeInfoResult is returned by net_getNodeInfo.
type NodeInfoResult struct {
	ID        string   `json:"id"`
	Addrs     []string `json:"addrs"`
	NetworkID string   `json:"network_id,omitempty"`
}

// EvictionEntry describes one persisted eviction decision.
type EvictionEntry struct {
	Seq           uint64 `json:"seq"`
	NodeID        uint64 `json:"node_id"`
	PeerID        string `json:"peer_id"`
	Network       string `json:"network"`
	ConnectedSecs int64  `json:"connected_secs"`
	Inbound       int    `json:"inbound"`
	EvictedAt     int64  `json:"evicted_at"`
}

// EvictionLogResult is returned by net_getEvictionLog.
type EvictionLogResult struct {
	Count     int             `json:"count"`
	Evictions []EvictionEntry `json:"evictions"`
}

// FlagResult is returned by net_setPreferEvict and net_setNoBan.
type FlagResult struct {
	NodeID uint64 `json:"node_id"`
	Value  bool   `json:"value"`
}

// DisconnectResult is returned by net_disconnect.
type DisconnectResult struct {
	NodeID uint64 `json:"node_id"`
	PeerID string `json:"peer_id"`
}
