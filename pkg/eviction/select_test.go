package eviction

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

func TestSelectNodeToEvictEmpty(t *testing.T) {
	id, ok, err := SelectNodeToEvict(nil)
	if err != nil {
		t.Fatalf("SelectNodeToEvict(nil): %v", err)
	}
	if ok || id != 0 {
		t.Fatalf("expected no selection for empty input, got id=%d ok=%v", id, ok)
	}
}

func TestSelectNodeToEvictSingle(t *testing.T) {
	id, ok, err := SelectNodeToEvict([]Candidate{inboundCandidate(7)})
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 7 {
		t.Fatalf("single candidate: got id=%d ok=%v, want id=7 ok=true", id, ok)
	}
}

func TestSelectNodeToEvictTotality(t *testing.T) {
	// Any non-empty valid input yields exactly one of its own ids, no matter
	// how homogeneous the metadata is.
	for n := 1; n <= 10; n++ {
		cands := make([]Candidate, 0, n)
		for i := 0; i < n; i++ {
			cands = append(cands, inboundCandidate(int64(i+1)))
		}
		id, ok, err := SelectNodeToEvict(cands)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if !ok {
			t.Fatalf("n=%d: expected a selection", n)
		}
		if !containsID(cands, id) {
			t.Fatalf("n=%d: selected id %d not among the candidates", n, id)
		}
	}
}

func TestSelectNodeToEvictPreferEvictWins(t *testing.T) {
	// A flagged peer is chosen even when every other attribute argues for
	// keeping it around.
	cands := []Candidate{
		inboundCandidate(1),
		inboundCandidate(2),
		inboundCandidate(3),
	}
	cands[0].Connected = 30 * time.Second
	cands[0].MinPing = time.Duration(math.MaxInt64)
	cands[0].RelevantServices = false
	cands[0].LastBlockAt = time.Time{}
	cands[0].LastTxAt = time.Time{}

	cands[2].PreferEvict = true
	cands[2].Connected = 72 * time.Hour
	cands[2].MinPing = time.Millisecond
	cands[2].LastBlockAt = time.Unix(9000, 0)
	cands[2].LastTxAt = time.Unix(9000, 0)

	id, ok, err := SelectNodeToEvict(cands)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 3 {
		t.Fatalf("got id=%d ok=%v, want the flagged peer 3", id, ok)
	}
}

func TestSelectNodeToEvictMissingServices(t *testing.T) {
	cands := []Candidate{
		inboundCandidate(1),
		inboundCandidate(2),
		inboundCandidate(3),
		inboundCandidate(4),
	}
	cands[1].RelevantServices = false
	// Make the lacking peer otherwise attractive so only the services stage
	// can explain its selection.
	cands[1].Connected = 48 * time.Hour
	cands[1].MinPing = time.Millisecond
	cands[1].LastBlockAt = time.Unix(5000, 0)
	cands[1].LastTxAt = time.Unix(5000, 0)

	id, ok, err := SelectNodeToEvict(cands)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 2 {
		t.Fatalf("got id=%d ok=%v, want the serviceless peer 2", id, ok)
	}
}

func TestSelectNodeToEvictStaleBlocks(t *testing.T) {
	// Four peers with strictly ordered block usefulness. The stage keeps the
	// lower half at or below the median timestamp; within that half the final
	// tie-break resolves by id since everything else is equal.
	cands := make([]Candidate, 0, 4)
	for i := 0; i < 4; i++ {
		c := inboundCandidate(int64(i + 1))
		c.LastBlockAt = time.Unix(int64(1000+100*i), 0)
		cands = append(cands, c)
	}

	id, ok, err := SelectNodeToEvict(cands)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 1 {
		t.Fatalf("got id=%d ok=%v, want the stalest block relayer 1", id, ok)
	}
}

func TestSelectNodeToEvictStaleTxs(t *testing.T) {
	cands := make([]Candidate, 0, 5)
	for i := 0; i < 5; i++ {
		c := inboundCandidate(int64(i + 1))
		c.LastTxAt = time.Unix(int64(2000+10*i), 0)
		cands = append(cands, c)
	}

	id, ok, err := SelectNodeToEvict(cands)
	if err != nil {
		t.Fatal(err)
	}
	// Lower median of five timestamps is the third smallest, so peers 4 and 5
	// are spared and the smallest id among the stale majority wins the final
	// tie-break.
	if !ok || id != 1 {
		t.Fatalf("got id=%d ok=%v, want 1", id, ok)
	}
}

func TestSelectNodeToEvictWorstPing(t *testing.T) {
	cands := make([]Candidate, 0, 4)
	for i := 0; i < 4; i++ {
		c := inboundCandidate(int64(i + 1))
		c.MinPing = time.Duration(10*(i+1)) * time.Millisecond
		cands = append(cands, c)
	}

	id, ok, err := SelectNodeToEvict(cands)
	if err != nil {
		t.Fatal(err)
	}
	// Upper median of {10,20,30,40}ms is 30ms, keeping peers 3 and 4; id 3
	// wins the final tie-break.
	if !ok || id != 3 {
		t.Fatalf("got id=%d ok=%v, want 3", id, ok)
	}
}

func TestSelectNodeToEvictUnmeasuredPingSaturates(t *testing.T) {
	// A peer with no ping sample carries the saturating sentinel and loses to
	// a measured peer, all else equal.
	fast := inboundCandidate(1)
	fast.MinPing = 5 * time.Millisecond
	unmeasured := inboundCandidate(2)
	unmeasured.MinPing = time.Duration(math.MaxInt64)

	id, ok, err := SelectNodeToEvict([]Candidate{fast, unmeasured})
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 2 {
		t.Fatalf("got id=%d ok=%v, want the unmeasured peer 2", id, ok)
	}
}

func TestSelectNodeToEvictFinalTieBreak(t *testing.T) {
	t.Run("newest connection loses", func(t *testing.T) {
		cands := []Candidate{inboundCandidate(1), inboundCandidate(2), inboundCandidate(3)}
		cands[0].Connected = 3 * time.Hour
		cands[1].Connected = 2 * time.Hour
		cands[2].Connected = time.Minute

		id, ok, err := SelectNodeToEvict(cands)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || id != 3 {
			t.Fatalf("got id=%d ok=%v, want the newest peer 3", id, ok)
		}
	})

	t.Run("equal tenure resolves by smaller id", func(t *testing.T) {
		cands := []Candidate{inboundCandidate(9), inboundCandidate(4), inboundCandidate(6)}
		id, ok, err := SelectNodeToEvict(cands)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || id != 4 {
			t.Fatalf("got id=%d ok=%v, want 4", id, ok)
		}
	})
}

func TestSelectNodeToEvictStagesNeverEmpty(t *testing.T) {
	// Homogeneous sets give every stage nothing to say; the pipeline must
	// still deliver a candidate rather than an empty working set.
	cases := map[string]func(*Candidate){
		"all flagged":          func(c *Candidate) { c.PreferEvict = true },
		"all lacking services": func(c *Candidate) { c.RelevantServices = false },
		"all never useful":     func(c *Candidate) { c.LastBlockAt = time.Time{}; c.LastTxAt = time.Time{} },
		"all unmeasured":       func(c *Candidate) { c.MinPing = time.Duration(math.MaxInt64) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cands := make([]Candidate, 0, 6)
			for i := 0; i < 6; i++ {
				c := inboundCandidate(int64(i + 1))
				mutate(&c)
				cands = append(cands, c)
			}
			id, ok, err := SelectNodeToEvict(cands)
			if err != nil {
				t.Fatal(err)
			}
			if !ok || !containsID(cands, id) {
				t.Fatalf("got id=%d ok=%v, want a member of the input", id, ok)
			}
		})
	}
}

func TestSelectNodeToEvictPermutationInvariant(t *testing.T) {
	base := make([]Candidate, 0, 10)
	for i := 0; i < 10; i++ {
		c := inboundCandidate(int64(i + 1))
		c.Connected = time.Duration((i*3)%10+1) * time.Hour
		c.MinPing = time.Duration((i*7)%10+1) * 10 * time.Millisecond
		c.LastBlockAt = time.Unix(int64(1000+(i*13)%10*50), 0)
		c.LastTxAt = time.Unix(int64(1000+(i*11)%10*50), 0)
		c.RelevantServices = i%3 != 0
		base = append(base, c)
	}

	want, ok, err := SelectNodeToEvict(base)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a selection")
	}

	for rot := 1; rot < len(base); rot++ {
		perm := append(append([]Candidate{}, base[rot:]...), base[:rot]...)
		got, ok, err := SelectNodeToEvict(perm)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || got != want {
			t.Fatalf("rotation %d: selected %d, want %d", rot, got, want)
		}
	}
}

func TestSelectNodeToEvictInputUnmodified(t *testing.T) {
	cands := make([]Candidate, 0, 6)
	for i := 0; i < 6; i++ {
		c := inboundCandidate(int64(i + 1))
		c.MinPing = time.Duration(i+1) * time.Millisecond
		c.PreferEvict = i == 2
		cands = append(cands, c)
	}
	snapshot := make([]Candidate, len(cands))
	copy(snapshot, cands)

	if _, _, err := SelectNodeToEvict(cands); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cands, snapshot) {
		t.Fatal("input slice modified by SelectNodeToEvict")
	}
}

func TestSelectNodeToEvictRejectsBadInput(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		cands := []Candidate{inboundCandidate(1), inboundCandidate(1)}
		id, ok, err := SelectNodeToEvict(cands)
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("err = %v, want ErrDuplicateID", err)
		}
		if ok || id != 0 {
			t.Fatalf("got id=%d ok=%v on error", id, ok)
		}
	})

	t.Run("outbound candidate", func(t *testing.T) {
		bad := inboundCandidate(2)
		bad.ConnType = types.ConnOutboundFullRelay
		_, _, err := SelectNodeToEvict([]Candidate{inboundCandidate(1), bad})
		if !errors.Is(err, ErrNotInbound) {
			t.Fatalf("err = %v, want ErrNotInbound", err)
		}
	})
}

func TestProtectThenSelectNewestPeerLoses(t *testing.T) {
	// Eight peers, one accepted a second ago. Protection shields the four
	// longest tenures; the selection stages find nothing else to distinguish
	// the residual, so the final tie-break evicts the newcomer.
	cands := make([]Candidate, 0, 8)
	for i := 0; i < 8; i++ {
		c := inboundCandidate(int64(i + 1))
		c.Connected = time.Duration(i+2) * time.Hour
		cands = append(cands, c)
	}
	cands[7].Connected = time.Second

	_, residual, err := ProtectByRatio(cands)
	if err != nil {
		t.Fatal(err)
	}
	if len(residual) != 4 {
		t.Fatalf("residual size %d, want 4", len(residual))
	}
	if !containsID(residual, 8) {
		t.Fatal("newcomer missing from the residual set")
	}

	id, ok, err := SelectNodeToEvict(residual)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 8 {
		t.Fatalf("got id=%d ok=%v, want the one-second-old peer 8", id, ok)
	}
}

func TestProtectThenSelectStagePrecedence(t *testing.T) {
	// With protection out of the way, a flagged long-lived peer still loses
	// to the pipeline before a slow unflagged newcomer does.
	cands := make([]Candidate, 0, 4)
	for i := 0; i < 4; i++ {
		c := inboundCandidate(int64(i + 1))
		c.Connected = time.Duration(i+1) * time.Minute
		cands = append(cands, c)
	}
	cands[0].PreferEvict = true
	cands[3].Connected = 30 * time.Second
	cands[3].MinPing = 900 * time.Millisecond

	_, residual, err := ProtectByRatio(cands)
	if err != nil {
		t.Fatal(err)
	}
	if !containsID(residual, 1) || !containsID(residual, 4) {
		t.Fatalf("residual %v should hold the two shortest tenures", idSet(residual))
	}

	id, ok, err := SelectNodeToEvict(residual)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 1 {
		t.Fatalf("got id=%d ok=%v, want the flagged peer 1", id, ok)
	}
}
