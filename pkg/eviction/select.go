package eviction

import (
	"sort"
	"time"

	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// stage is one narrowing filter of the selection pipeline. A stage returns a
// subset of the working set it is given and must keep at least one candidate
// whenever the input is non-empty; a stage with nothing to say returns its
// input unchanged.
type stage struct {
	name   string
	narrow func([]Candidate) []Candidate
}

// selectionStages run in order, each trimming away the more desirable part
// of the working set so that the least desirable connections survive to the
// final pick.
var selectionStages = []stage{
	{"prefer-evict", narrowPreferEvict},
	{"missing-services", narrowMissingServices},
	{"stale-blocks", narrowStaleBlocks},
	{"stale-txs", narrowStaleTxs},
	{"worst-ping", narrowWorstPing},
}

// SelectNodeToEvict picks the residual candidate to disconnect. ok is false
// only for an empty input, which is a normal outcome meaning nothing needs to
// be evicted this round. The input slice is never modified.
func SelectNodeToEvict(residual []Candidate) (id types.NodeID, ok bool, err error) {
	if err := validate(residual); err != nil {
		return 0, false, err
	}
	if len(residual) == 0 {
		return 0, false, nil
	}

	working := make([]Candidate, len(residual))
	copy(working, residual)
	for _, s := range selectionStages {
		working = s.narrow(working)
	}
	return pickFinal(working).ID, true, nil
}

// narrowPreferEvict restricts the working set to peers flagged for priority
// eviction. With no flagged peer present the set passes through unchanged.
func narrowPreferEvict(w []Candidate) []Candidate {
	var flagged []Candidate
	for _, c := range w {
		if c.PreferEvict {
			flagged = append(flagged, c)
		}
	}
	if len(flagged) == 0 {
		return w
	}
	return flagged
}

// narrowMissingServices keeps only the candidates that do not advertise the
// services this node depends on, when any such candidate exists.
func narrowMissingServices(w []Candidate) []Candidate {
	var lacking []Candidate
	for _, c := range w {
		if !c.RelevantServices {
			lacking = append(lacking, c)
		}
	}
	if len(lacking) == 0 {
		return w
	}
	return lacking
}

// narrowStaleBlocks keeps the candidates least recently useful for block
// delivery.
func narrowStaleBlocks(w []Candidate) []Candidate {
	return narrowStaleHalf(w, func(c *Candidate) time.Time { return c.LastBlockAt })
}

// narrowStaleTxs keeps the candidates least recently useful for transaction
// relay.
func narrowStaleTxs(w []Candidate) []Candidate {
	return narrowStaleHalf(w, func(c *Candidate) time.Time { return c.LastTxAt })
}

// narrowStaleHalf splits the working set at the lower median of the
// timestamps selected by at and keeps everything at or below it, so the
// majority that least recently contributed stays evictable while the most
// recently useful minority is spared. A set whose timestamps are all equal
// passes through unchanged.
func narrowStaleHalf(w []Candidate, at func(*Candidate) time.Time) []Candidate {
	if len(w) < 2 {
		return w
	}
	ts := make([]time.Time, len(w))
	for i := range w {
		ts[i] = at(&w[i])
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	median := ts[(len(ts)-1)/2]

	stale := make([]Candidate, 0, len(w))
	for i := range w {
		if !at(&w[i]).After(median) {
			stale = append(stale, w[i])
		}
	}
	return stale
}

// narrowWorstPing keeps the candidates whose best observed round-trip time
// sits at or above the upper median of the working set. Unmeasured peers
// carry a saturating ping and are therefore always retained here.
func narrowWorstPing(w []Candidate) []Candidate {
	if len(w) < 2 {
		return w
	}
	pings := make([]time.Duration, len(w))
	for i := range w {
		pings[i] = w[i].MinPing
	}
	sort.Slice(pings, func(i, j int) bool { return pings[i] < pings[j] })
	median := pings[len(pings)/2]

	worst := make([]Candidate, 0, len(w))
	for _, c := range w {
		if c.MinPing >= median {
			worst = append(worst, c)
		}
	}
	return worst
}

// pickFinal resolves the survivors to a single eviction target: the most
// recently connected, with equal ages resolved by smaller id.
func pickFinal(w []Candidate) Candidate {
	target := w[0]
	for _, c := range w[1:] {
		if c.Connected < target.Connected || (c.Connected == target.Connected && c.ID < target.ID) {
			target = c
		}
	}
	return target
}
