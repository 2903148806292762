// Package eviction decides which inbound peer to disconnect when the inbound
// connection budget is exhausted.
//
// The decision is made in two passes over a snapshot of candidate metadata.
// ProtectByRatio shields the longest-connected half of the candidates,
// reserving up to a quarter of the total for privacy-network and local peers
// that the latency-sensitive selection stages would otherwise starve.
// SelectNodeToEvict then narrows the unprotected remainder through a pipeline
// of desirability filters until a single connection remains.
//
// Both passes are pure functions over caller-owned data: no I/O, no locking,
// no references retained beyond the call, and the same decision for the same
// multiset of candidates regardless of input order.
package eviction

import (
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// Input-contract errors.
var (
	ErrDuplicateID = errors.New("duplicate candidate id")
	ErrNotInbound  = errors.New("candidate is not an inbound connection")
)

// Candidate is an immutable snapshot of one inbound connection's metadata.
// It is built immediately before an eviction decision and discarded right
// after; it has no identity beyond the decision round it was built for.
type Candidate struct {
	ID types.NodeID // Handle correlating back to the live connection.

	Connected time.Duration // Time since the connection was accepted.
	MinPing   time.Duration // Smallest round-trip time observed.

	LastBlockAt time.Time // When the peer last supplied a useful block (zero = never).
	LastTxAt    time.Time // When the peer last supplied a novel accepted transaction (zero = never).

	RelevantServices bool // Peer advertises services this node depends on.
	RelaysTxs        bool // Transaction relay enabled (vs. block-relay-only).
	UsesBloom        bool // Peer requested filtered, light-client behavior.

	NetGroupKey uint64        // Salted hash of the peer's network group.
	Network     types.Network // Transport classification.
	IsLocal     bool          // Connection originates from the local host.

	PreferEvict bool // Out-of-band hint to evict this peer ahead of others.
	NoBan       bool // Exempt from automated penalties; enforced by the caller, carried as data here.

	ConnType types.ConnType // Must be ConnInbound for every candidate.
}

// isProtectedNetwork reports whether the candidate belongs to the group that
// competes for the reserved protection quota: peers on scarce-address
// transports, plus local connections (hidden services reached through a local
// proxy are not detectable as inbound onion).
func (c *Candidate) isProtectedNetwork() bool {
	return c.IsLocal || c.Network.IsPrivacyPreserving()
}

// validate checks the input contract shared by both passes: every candidate
// inbound, every id unique. It runs before any partitioning, so a violation
// leaves the input untouched.
func validate(cands []Candidate) error {
	seen := make(map[types.NodeID]struct{}, len(cands))
	for i := range cands {
		c := &cands[i]
		if !c.ConnType.IsInbound() {
			return fmt.Errorf("candidate %d is %s: %w", c.ID, c.ConnType, ErrNotInbound)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("candidate %d: %w", c.ID, ErrDuplicateID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
