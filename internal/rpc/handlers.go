package rpc

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-peering/internal/peermgr"
	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// ── Info endpoints ──────────────────────────────────────────────────────

func (s *Server) handleNetGetInfo(_ *Request) (interface{}, *Error) {
	result := &NetInfoResult{Networks: map[string]int{}}
	if s.p2pNode == nil {
		return result, nil
	}

	table := s.p2pNode.Table()
	result.PeerCount, result.Inbound, result.Outbound = table.Counts()
	for nw, n := range table.NetworkCounts() {
		result.Networks[nw.String()] = n
	}
	if adm := s.p2pNode.Admission(); adm != nil {
		result.MaxInbound = adm.MaxInbound()
	}
	if hist := s.p2pNode.EvictionLog(); hist != nil {
		result.Evictions = hist.Len()
	}
	return result, nil
}

func (s *Server) handleNetGetPeerInfo(_ *Request) (interface{}, *Error) {
	if s.p2pNode == nil {
		return &PeerInfoResult{Count: 0, Peers: []PeerEntry{}}, nil
	}

	views := s.p2pNode.Table().Peers()
	entries := make([]PeerEntry, len(views))
	for i, v := range views {
		entries[i] = newPeerEntry(v)
	}

	return &PeerInfoResult{
		Count: len(entries),
		Peers: entries,
	}, nil
}

func (s *Server) handleNetGetNodeInfo(_ *Request) (interface{}, *Error) {
	if s.p2pNode == nil {
		return &NodeInfoResult{ID: "", Addrs: []string{}}, nil
	}

	return &NodeInfoResult{
		ID:        s.p2pNode.ID().String(),
		Addrs:     s.p2pNode.Addrs(),
		NetworkID: s.p2pNode.NetworkID(),
	}, nil
}

func (s *Server) handleNetGetEvictionLog(req *Request) (interface{}, *Error) {
	result := &EvictionLogResult{Evictions: []EvictionEntry{}}
	if s.p2pNode == nil || s.p2pNode.EvictionLog() == nil {
		return result, nil
	}

	// Params are optional; no limit returns the full retained history.
	limit := 0
	if hasParams(req) {
		var params LimitParam
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
		limit = params.Limit
	}

	records, err := s.p2pNode.EvictionLog().Recent(limit)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("read eviction log: %v", err)}
	}

	for _, r := range records {
		result.Evictions = append(result.Evictions, EvictionEntry{
			Seq:           r.Seq,
			NodeID:        uint64(r.NodeID),
			PeerID:        r.PeerID,
			Network:       r.Network.String(),
			ConnectedSecs: r.ConnectedSecs,
			Inbound:       r.Inbound,
			EvictedAt:     r.EvictedAt,
		})
	}
	result.Count = len(result.Evictions)
	return result, nil
}

// ── Control endpoints ───────────────────────────────────────────────────

func (s *Server) handleNetSetPreferEvict(req *Request) (interface{}, *Error) {
	var params FlagParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if s.p2pNode == nil {
		return nil, &Error{Code: CodeNotFound, Message: "p2p networking disabled"}
	}

	if !s.p2pNode.Table().SetPreferEvict(types.NodeID(params.NodeID), params.Value) {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("no connection with node id %d", params.NodeID)}
	}
	return &FlagResult{NodeID: params.NodeID, Value: params.Value}, nil
}

func (s *Server) handleNetSetNoBan(req *Request) (interface{}, *Error) {
	var params FlagParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if s.p2pNode == nil {
		return nil, &Error{Code: CodeNotFound, Message: "p2p networking disabled"}
	}

	if !s.p2pNode.Table().SetNoBan(types.NodeID(params.NodeID), params.Value) {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("no connection with node id %d", params.NodeID)}
	}
	return &FlagResult{NodeID: params.NodeID, Value: params.Value}, nil
}

func (s *Server) handleNetDisconnect(req *Request) (interface{}, *Error) {
	var params NodeIDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if s.p2pNode == nil {
		return nil, &Error{Code: CodeNotFound, Message: "p2p networking disabled"}
	}

	pid, ok := s.p2pNode.Table().PeerID(types.NodeID(params.NodeID))
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("no connection with node id %d", params.NodeID)}
	}

	if err := s.p2pNode.Disconnect(pid); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("disconnect: %v", err)}
	}

	s.logger.Info().Uint64("node_id", params.NodeID).Msg("Peer disconnected by operator")
	return &DisconnectResult{
		NodeID: params.NodeID,
		PeerID: pid.String(),
	}, nil
}

// newPeerEntry converts a table view into its RPC representation.
func newPeerEntry(v peermgr.PeerView) PeerEntry {
	pingUsecs := int64(-1)
	if v.PingMeasured() {
		pingUsecs = v.MinPing.Microseconds()
	}

	return PeerEntry{
		NodeID:        uint64(v.NodeID),
		PeerID:        v.PeerID,
		ConnType:      v.ConnType.String(),
		Network:       v.Network.String(),
		IsLocal:       v.IsLocal,
		GroupKey:      fmt.Sprintf("%016x", v.GroupKey),
		ConnectedAt:   v.ConnectedAt.UTC().Format("2006-01-02T15:04:05Z"),
		ConnectedSecs: int64(time.Since(v.ConnectedAt) / time.Second),
		MinPingUsecs:  pingUsecs,
		LastBlockAt:   unixOrZero(v.LastBlockAt),
		LastTxAt:      unixOrZero(v.LastTxAt),

		RelevantServices: v.RelevantServices,
		RelaysTxs:        v.RelaysTxs,
		UsesBloom:        v.UsesBloom,
		Handshaked:       v.Handshaked,
		PreferEvict:      v.PreferEvict,
		NoBan:            v.NoBan,
	}
}

// unixOrZero renders a timestamp as unix seconds, keeping the zero value at 0.
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
