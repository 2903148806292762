package p2p

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/klingnet-peering/internal/storage"
)

const (
	// SeenKeyPrefix namespaces known-peer records within the node database.
	SeenKeyPrefix = "peerseen/"

	staleThreshold    = 24 * time.Hour
	persistInterval   = 5 * time.Minute
	maxPersistedPeers = 500
)

// PeerRecord is a persisted known-peer entry, used to reconnect to the
// network after a restart.
type PeerRecord struct {
	ID       string   `json:"id"`        // base58 peer ID
	Addrs    []string `json:"addrs"`     // multiaddr strings
	Network  string   `json:"network"`   // transport class of the last connection
	LastSeen int64    `json:"last_seen"` // unix timestamp
}

// PeerStore persists known-peer records under the "peerseen/" prefix.
type PeerStore struct {
	db *storage.PrefixDB
}

// NewPeerStore opens the known-peer keyspace within db.
func NewPeerStore(db storage.DB) *PeerStore {
	return &PeerStore{db: storage.NewPrefixDB(db, SeenKeyPrefix)}
}

// Save upserts a peer record. Updates to known peers always land; new peers
// are dropped once the store holds maxPersistedPeers records.
func (ps *PeerStore) Save(rec PeerRecord) error {
	key := []byte(rec.ID)

	known, err := ps.db.Has(key)
	if err != nil {
		return fmt.Errorf("check peer exists: %w", err)
	}
	if !known {
		n, err := ps.Count()
		if err != nil {
			return fmt.Errorf("count peers: %w", err)
		}
		if n >= maxPersistedPeers {
			return nil
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal peer record: %w", err)
	}
	return ps.db.Put(key, data)
}

// Load retrieves a single peer record by ID.
func (ps *PeerStore) Load(id peer.ID) (*PeerRecord, error) {
	data, err := ps.db.Get([]byte(id.String()))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("peer %s not persisted: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get peer record: %w", err)
	}
	var rec PeerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal peer record: %w", err)
	}
	return &rec, nil
}

// LoadAll returns every persisted peer record, skipping any that no longer
// parse.
func (ps *PeerStore) LoadAll() ([]PeerRecord, error) {
	var records []PeerRecord
	err := ps.db.Scan(nil, func(_, value []byte) error {
		var rec PeerRecord
		if json.Unmarshal(value, &rec) == nil {
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate peer records: %w", err)
	}
	return records, nil
}

// Delete removes a peer record.
func (ps *PeerStore) Delete(id peer.ID) error {
	return ps.db.Delete([]byte(id.String()))
}

// PruneStale removes records last seen before the given threshold, along
// with any records that no longer parse. Returns the number pruned.
func (ps *PeerStore) PruneStale(threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold).Unix()

	var doomed [][]byte
	err := ps.db.Scan(nil, func(key, value []byte) error {
		var rec PeerRecord
		if json.Unmarshal(value, &rec) != nil || rec.LastSeen < cutoff {
			doomed = append(doomed, append([]byte(nil), key...))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate for prune: %w", err)
	}

	for _, key := range doomed {
		if err := ps.db.Delete(key); err != nil {
			return 0, fmt.Errorf("delete stale peer: %w", err)
		}
	}
	return len(doomed), nil
}

// Count returns the number of persisted peer records.
func (ps *PeerStore) Count() (int, error) {
	n := 0
	err := ps.db.Scan(nil, func(_, _ []byte) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count peers: %w", err)
	}
	return n, nil
}
