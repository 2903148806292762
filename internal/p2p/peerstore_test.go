package p2p

import (
	"fmt"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/klingnet-peering/internal/storage"
)

func newTestPeerStore() *PeerStore {
	return NewPeerStore(storage.NewMemory())
}

// seenPeer builds a record for the raw id, last seen the given duration ago.
func seenPeer(raw, network string, ago time.Duration) (peer.ID, PeerRecord) {
	id := peer.ID(raw)
	return id, PeerRecord{
		ID:       id.String(),
		Addrs:    []string{"/ip4/203.0.113.7/tcp/30303"},
		Network:  network,
		LastSeen: time.Now().Add(-ago).Unix(),
	}
}

func TestPeerStore_SaveLoad(t *testing.T) {
	ps := newTestPeerStore()

	pid, rec := seenPeer("peer-1", "ipv4", 0)
	if err := ps.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := ps.Load(pid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if len(got.Addrs) != 1 || got.Addrs[0] != rec.Addrs[0] {
		t.Errorf("Addrs = %v, want %v", got.Addrs, rec.Addrs)
	}
	if got.Network != "ipv4" {
		t.Errorf("Network = %q, want ipv4", got.Network)
	}
	if got.LastSeen != rec.LastSeen {
		t.Errorf("LastSeen = %d, want %d", got.LastSeen, rec.LastSeen)
	}
}

func TestPeerStore_LoadMissing(t *testing.T) {
	ps := newTestPeerStore()

	if _, err := ps.Load(peer.ID("never-seen")); err == nil {
		t.Error("Load of an unknown peer should fail")
	}
}

func TestPeerStore_UpdateKnownPeer(t *testing.T) {
	ps := newTestPeerStore()

	pid, rec := seenPeer("peer-1", "ipv4", time.Hour)
	if err := ps.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A reconnect over a different transport rewrites the record in place.
	rec.Network = "onion"
	rec.Addrs = []string{"/onion3/abcdefghij234567:8333"}
	rec.LastSeen = time.Now().Unix()
	if err := ps.Save(rec); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	got, err := ps.Load(pid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Network != "onion" {
		t.Errorf("Network = %q, want onion", got.Network)
	}
	if got.LastSeen != rec.LastSeen {
		t.Errorf("LastSeen not updated: %d", got.LastSeen)
	}

	if n, _ := ps.Count(); n != 1 {
		t.Errorf("Count = %d after update, want 1", n)
	}
}

func TestPeerStore_CapDropsNewPeersOnly(t *testing.T) {
	ps := newTestPeerStore()

	for i := 0; i < maxPersistedPeers; i++ {
		_, rec := seenPeer(fmt.Sprintf("peer-%04d", i), "ipv4", 0)
		if err := ps.Save(rec); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	// A brand new peer is silently skipped at capacity.
	_, extra := seenPeer("the-late-one", "ipv6", 0)
	if err := ps.Save(extra); err != nil {
		t.Fatalf("Save at cap: %v", err)
	}
	if n, _ := ps.Count(); n != maxPersistedPeers {
		t.Errorf("Count = %d, want %d", n, maxPersistedPeers)
	}

	// An update to a known peer still lands.
	known, rec := seenPeer("peer-0000", "ipv4", 0)
	rec.Network = "i2p"
	if err := ps.Save(rec); err != nil {
		t.Fatalf("Save update at cap: %v", err)
	}
	got, err := ps.Load(known)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Network != "i2p" {
		t.Errorf("update at cap did not land: Network = %q", got.Network)
	}
}

func TestPeerStore_Delete(t *testing.T) {
	ps := newTestPeerStore()

	pid, rec := seenPeer("peer-1", "ipv4", 0)
	ps.Save(rec)

	if err := ps.Delete(pid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ps.Load(pid); err == nil {
		t.Error("Load after Delete should fail")
	}
	if n, _ := ps.Count(); n != 0 {
		t.Errorf("Count = %d after delete, want 0", n)
	}
}

func TestPeerStore_LoadAllSkipsCorrupt(t *testing.T) {
	db := storage.NewMemory()
	ps := NewPeerStore(db)

	_, rec := seenPeer("good", "ipv4", 0)
	ps.Save(rec)

	// A record that no longer parses must not break the load.
	db.Put([]byte(SeenKeyPrefix+"bad"), []byte("{torn-write"))

	all, err := ps.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("LoadAll returned %d records, want 1", len(all))
	}
	if all[0].ID != rec.ID {
		t.Errorf("wrong record survived: %q", all[0].ID)
	}
}

func TestPeerStore_PruneStale(t *testing.T) {
	db := storage.NewMemory()
	ps := NewPeerStore(db)

	_, old := seenPeer("old", "ipv4", 48*time.Hour)
	recentPID, recent := seenPeer("recent", "ipv4", time.Hour)
	ps.Save(old)
	ps.Save(recent)

	// Corrupt records are pruned alongside stale ones.
	db.Put([]byte(SeenKeyPrefix+"bad"), []byte("{torn-write"))

	pruned, err := ps.PruneStale(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneStale: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned %d records, want 2", pruned)
	}

	if n, _ := ps.Count(); n != 1 {
		t.Errorf("Count = %d after prune, want 1", n)
	}
	if _, err := ps.Load(recentPID); err != nil {
		t.Errorf("recent peer pruned by mistake: %v", err)
	}
}

func TestPeerStore_LoadAllEmpty(t *testing.T) {
	ps := newTestPeerStore()

	all, err := ps.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("LoadAll on empty store returned %d records", len(all))
	}
}

func TestPeerStore_IsolatedFromOtherKeyspaces(t *testing.T) {
	db := storage.NewMemory()
	ps := NewPeerStore(db)

	// A foreign record sharing the database must not leak into the store.
	if err := db.Put([]byte("evict/0000000000000001"), []byte(`{}`)); err != nil {
		t.Fatalf("Put foreign: %v", err)
	}

	_, rec := seenPeer("mine", "ipv4", 0)
	if err := ps.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := ps.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1 (foreign keyspace leaked)", n)
	}
}
