package peermgr

import (
	"sort"
	"time"

	"github.com/Klingon-tech/klingnet-peering/pkg/eviction"
	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// Snapshot builds an eviction candidate for every live inbound connection.
// The result is detached from the table: mutating it, or the table, after
// the call leaves the other side untouched.
func (t *Table) Snapshot() []eviction.Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	cands := make([]eviction.Candidate, 0, len(t.byID))
	for _, st := range t.byID {
		if !st.connType.IsInbound() {
			continue
		}
		cands = append(cands, eviction.Candidate{
			ID:               st.id,
			Connected:        now.Sub(st.connectedAt),
			MinPing:          st.minPing,
			LastBlockAt:      st.lastBlockAt,
			LastTxAt:         st.lastTxAt,
			RelevantServices: st.relevantServices,
			RelaysTxs:        st.relaysTxs,
			UsesBloom:        st.usesBloom,
			NetGroupKey:      st.groupKey,
			Network:          st.network,
			IsLocal:          st.isLocal,
			PreferEvict:      st.preferEvict,
			NoBan:            st.noBan,
			ConnType:         st.connType,
		})
	}
	return cands
}

// PeerView is a read-only copy of one connection's state for operator
// surfaces.
type PeerView struct {
	NodeID      types.NodeID
	PeerID      string
	ConnType    types.ConnType
	Network     types.Network
	IsLocal     bool
	GroupKey    uint64
	ConnectedAt time.Time
	MinPing     time.Duration // unmeasuredPing when no sample has landed
	LastBlockAt time.Time
	LastTxAt    time.Time

	RelevantServices bool
	RelaysTxs        bool
	UsesBloom        bool
	Handshaked       bool
	PreferEvict      bool
	NoBan            bool
}

// PingMeasured reports whether at least one round-trip sample has landed.
func (v PeerView) PingMeasured() bool {
	return v.MinPing != unmeasuredPing
}

// Peers returns a view of every live connection, ordered by node id.
func (t *Table) Peers() []PeerView {
	t.mu.RLock()
	views := make([]PeerView, 0, len(t.byID))
	for _, st := range t.byID {
		views = append(views, viewOf(st))
	}
	t.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool { return views[i].NodeID < views[j].NodeID })
	return views
}

// Lookup returns the view of a single connection by node id.
func (t *Table) Lookup(id types.NodeID) (PeerView, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.byID[id]
	if !ok {
		return PeerView{}, false
	}
	return viewOf(st), true
}

func viewOf(st *peerState) PeerView {
	return PeerView{
		NodeID:           st.id,
		PeerID:           st.pid.String(),
		ConnType:         st.connType,
		Network:          st.network,
		IsLocal:          st.isLocal,
		GroupKey:         st.groupKey,
		ConnectedAt:      st.connectedAt,
		MinPing:          st.minPing,
		LastBlockAt:      st.lastBlockAt,
		LastTxAt:         st.lastTxAt,
		RelevantServices: st.relevantServices,
		RelaysTxs:        st.relaysTxs,
		UsesBloom:        st.usesBloom,
		Handshaked:       st.handshaked,
		PreferEvict:      st.preferEvict,
		NoBan:            st.noBan,
	}
}
