// Package peermgr tracks live peer connections and applies the inbound
// connection budget. The Table is the bookkeeping side: it hands out stable
// node ids, accumulates the per-peer usefulness metadata the eviction
// pipeline consumes, and produces point-in-time candidate snapshots.
package peermgr

import (
	"math"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// unmeasuredPing saturates min_ping until the first round-trip sample lands,
// so peers that never answer a ping look maximally slow to the selector.
const unmeasuredPing = time.Duration(math.MaxInt64)

// PeerInfo describes a connection at registration time.
type PeerInfo struct {
	PeerID   peer.ID
	ConnType types.ConnType
	Network  types.Network
	IsLocal  bool
	GroupKey uint64
}

// peerState is the live, mutable record behind one connection. All access
// goes through the Table lock.
type peerState struct {
	id       types.NodeID
	pid      peer.ID
	connType types.ConnType
	network  types.Network
	isLocal  bool
	groupKey uint64

	connectedAt time.Time
	minPing     time.Duration
	lastBlockAt time.Time
	lastTxAt    time.Time

	relevantServices bool
	relaysTxs        bool
	usesBloom        bool
	handshaked       bool

	preferEvict bool
	noBan       bool
}

// Table is the registry of live connections. Node ids are assigned
// monotonically and never reused, so a logged or RPC-visible id always
// refers to the same connection.
type Table struct {
	mu     sync.RWMutex
	nextID types.NodeID
	byID   map[types.NodeID]*peerState
	byPeer map[peer.ID]types.NodeID

	now func() time.Time
}

// NewTable creates an empty connection table.
func NewTable() *Table {
	return &Table{
		nextID: 1,
		byID:   make(map[types.NodeID]*peerState),
		byPeer: make(map[peer.ID]types.NodeID),
		now:    time.Now,
	}
}

// Register adds a connection to the table and returns its node id. Repeat
// registrations of a live peer return the existing id unchanged; libp2p can
// surface multiple connections to one peer, and the first one wins.
func (t *Table) Register(info PeerInfo) types.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byPeer[info.PeerID]; ok {
		return id
	}

	id := t.nextID
	t.nextID++
	t.byID[id] = &peerState{
		id:          id,
		pid:         info.PeerID,
		connType:    info.ConnType,
		network:     info.Network,
		isLocal:     info.IsLocal,
		groupKey:    info.GroupKey,
		connectedAt: t.now(),
		minPing:     unmeasuredPing,
	}
	t.byPeer[info.PeerID] = id
	return id
}

// Drop removes a connection from the table. It is idempotent: the admission
// path drops evicted peers eagerly and the disconnect notification drops
// them again.
func (t *Table) Drop(pid peer.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.byPeer[pid]
	if !ok {
		return false
	}
	delete(t.byPeer, pid)
	delete(t.byID, id)
	return true
}

// NodeID resolves a libp2p peer id to the table's node id.
func (t *Table) NodeID(pid peer.ID) (types.NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byPeer[pid]
	return id, ok
}

// PeerID resolves a node id back to the live libp2p peer id.
func (t *Table) PeerID(id types.NodeID) (peer.ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return st.pid, true
}

// Counts reports the number of live connections in total, inbound, and
// outbound.
func (t *Table) Counts() (total, inbound, outbound int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, st := range t.byID {
		total++
		if st.connType.IsInbound() {
			inbound++
		} else {
			outbound++
		}
	}
	return total, inbound, outbound
}

// InboundCount reports the number of live inbound connections.
func (t *Table) InboundCount() int {
	_, inbound, _ := t.Counts()
	return inbound
}

// NetworkCounts reports live connections per network class.
func (t *Table) NetworkCounts() map[types.Network]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[types.Network]int)
	for _, st := range t.byID {
		counts[st.network]++
	}
	return counts
}

// RecordPing folds a round-trip sample into the peer's best observed time.
func (t *Table) RecordPing(pid peer.ID, rtt time.Duration) {
	if rtt < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if st := t.state(pid); st != nil && rtt < st.minPing {
		st.minPing = rtt
	}
}

// RecordBlockDelivery marks the peer as having just supplied a useful block.
func (t *Table) RecordBlockDelivery(pid peer.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st := t.state(pid); st != nil {
		st.lastBlockAt = t.now()
	}
}

// RecordTxDelivery marks the peer as having just supplied a novel
// transaction.
func (t *Table) RecordTxDelivery(pid peer.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st := t.state(pid); st != nil {
		st.lastTxAt = t.now()
	}
}

// ApplyHandshake records the capabilities a peer advertised during the
// compatibility exchange.
func (t *Table) ApplyHandshake(pid peer.ID, relevantServices, relaysTxs, usesBloom bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(pid)
	if st == nil {
		return false
	}
	st.relevantServices = relevantServices
	st.relaysTxs = relaysTxs
	st.usesBloom = usesBloom
	st.handshaked = true
	return true
}

// Handshaked reports whether the peer completed the compatibility exchange.
func (t *Table) Handshaked(pid peer.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := t.state(pid)
	return st != nil && st.handshaked
}

// SetPreferEvict flags or unflags a connection for priority eviction.
func (t *Table) SetPreferEvict(id types.NodeID, v bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.byID[id]
	if !ok {
		return false
	}
	st.preferEvict = v
	return true
}

// MarkPreferEvict flags a connection for priority eviction by peer id.
func (t *Table) MarkPreferEvict(pid peer.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(pid)
	if st == nil {
		return false
	}
	st.preferEvict = true
	return true
}

// SetNoBan exempts or unexempts a connection from automated disconnection.
func (t *Table) SetNoBan(id types.NodeID, v bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.byID[id]
	if !ok {
		return false
	}
	st.noBan = v
	return true
}

// state returns the live record for pid. Callers must hold the lock.
func (t *Table) state(pid peer.ID) *peerState {
	id, ok := t.byPeer[pid]
	if !ok {
		return nil
	}
	return t.byID[id]
}
