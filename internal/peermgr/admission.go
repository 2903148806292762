package peermgr

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	klog "github.com/Klingon-tech/klingnet-peering/internal/log"
	"github.com/Klingon-tech/klingnet-peering/pkg/eviction"
)

// Disconnecter severs a live connection by peer id.
type Disconnecter interface {
	Disconnect(pid peer.ID) error
}

// Admission applies the inbound connection budget at accept time. While the
// table has room every inbound connection is admitted; at the ceiling a live
// peer must lose the eviction pipeline for the newcomer to get a slot.
type Admission struct {
	mu         sync.Mutex
	table      *Table
	maxInbound int
	disconnect Disconnecter
	evictions  *EvictionLog // nil disables persistence
}

// NewAdmission creates the admission policy over table. evictions may be nil
// to disable the persisted history (useful for tests).
func NewAdmission(table *Table, maxInbound int, d Disconnecter, evictions *EvictionLog) *Admission {
	return &Admission{
		table:      table,
		maxInbound: maxInbound,
		disconnect: d,
		evictions:  evictions,
	}
}

// MaxInbound returns the configured inbound ceiling.
func (a *Admission) MaxInbound() int {
	return a.maxInbound
}

// AdmitInbound decides whether a new inbound connection may be accepted,
// evicting a live peer to free a slot when the table is full. A non-positive
// ceiling disables the budget entirely.
func (a *Admission) AdmitInbound() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maxInbound <= 0 {
		return true
	}
	occupancy := a.table.InboundCount()
	if occupancy < a.maxInbound {
		return true
	}
	return a.makeRoom(occupancy)
}

// makeRoom runs the eviction pipeline over the current inbound set and
// disconnects the loser. It reports whether a slot was freed. Callers must
// hold the admission lock.
func (a *Admission) makeRoom(occupancy int) bool {
	snapshot := a.table.Snapshot()

	// Operator-pinned peers are never offered to the pipeline.
	cands := snapshot[:0]
	for _, c := range snapshot {
		if !c.NoBan {
			cands = append(cands, c)
		}
	}

	_, residual, err := eviction.ProtectByRatio(cands)
	if err != nil {
		klog.Evict.Error().Err(err).Msg("Eviction snapshot rejected")
		return false
	}
	id, ok, err := eviction.SelectNodeToEvict(residual)
	if err != nil {
		klog.Evict.Error().Err(err).Msg("Eviction selection rejected")
		return false
	}
	if !ok {
		klog.Evict.Debug().
			Int("inbound", occupancy).
			Msg("No evictable inbound peer, refusing connection")
		return false
	}

	view, haveView := a.table.Lookup(id)
	pid, havePID := a.table.PeerID(id)
	if !haveView || !havePID {
		// The selected peer disconnected on its own; its slot is free.
		return true
	}

	// Free the slot eagerly. The disconnect notification that follows finds
	// the peer already gone, which Drop tolerates.
	a.table.Drop(pid)
	if err := a.disconnect.Disconnect(pid); err != nil {
		klog.Evict.Warn().
			Err(err).
			Str("peer", shortPeer(view.PeerID)).
			Msg("Disconnect after eviction failed")
	}

	if a.evictions != nil {
		rec := Record{
			NodeID:        view.NodeID,
			PeerID:        view.PeerID,
			Network:       view.Network,
			ConnectedSecs: int64(time.Since(view.ConnectedAt) / time.Second),
			Inbound:       occupancy,
			EvictedAt:     time.Now().Unix(),
		}
		if err := a.evictions.Append(rec); err != nil {
			klog.Evict.Warn().Err(err).Msg("Failed to persist eviction record")
		}
	}

	klog.Evict.Info().
		Int64("node_id", int64(view.NodeID)).
		Str("peer", shortPeer(view.PeerID)).
		Str("network", view.Network.String()).
		Dur("connected", time.Since(view.ConnectedAt)).
		Msg("Evicted inbound peer to free a slot")
	return true
}

// shortPeer trims a peer id string for log lines.
func shortPeer(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
