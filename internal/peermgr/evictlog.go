package peermgr

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/Klingon-tech/klingnet-peering/internal/storage"
	"github.com/Klingon-tech/klingnet-peering/pkg/types"
)

// EvictKeyPrefix namespaces eviction records within the node database.
const EvictKeyPrefix = "evict/"

// maxEvictionRecords caps the persisted history; the oldest records are
// pruned as new ones land.
const maxEvictionRecords = 512

// Record is one persisted eviction decision.
type Record struct {
	Seq           uint64        `json:"seq"`
	NodeID        types.NodeID  `json:"node_id"`
	PeerID        string        `json:"peer_id"`        // base58 peer ID
	Network       types.Network `json:"network"`        // Transport class at eviction time
	ConnectedSecs int64         `json:"connected_secs"` // Tenure when evicted
	Inbound       int           `json:"inbound"`        // Inbound occupancy at decision time
	EvictedAt     int64         `json:"evicted_at"`     // Unix timestamp
}

// EvictionLog persists recent eviction decisions so operators can audit slot
// pressure across restarts.
type EvictionLog struct {
	mu    sync.Mutex
	db    *storage.PrefixDB
	seq   uint64 // next sequence number
	count int
}

// NewEvictionLog opens the eviction history stored in db. Existing records
// are scanned to resume the sequence counter.
func NewEvictionLog(db storage.DB) (*EvictionLog, error) {
	l := &EvictionLog{db: storage.NewPrefixDB(db, EvictKeyPrefix)}

	err := l.db.Scan(nil, func(key, _ []byte) error {
		seq, err := strconv.ParseUint(string(key), 16, 64)
		if err != nil {
			return nil // Skip foreign keys.
		}
		if seq >= l.seq {
			l.seq = seq + 1
		}
		l.count++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan eviction log: %w", err)
	}
	return l, nil
}

func evictKey(seq uint64) []byte {
	// Fixed-width hex so lexical key order matches record order.
	return []byte(fmt.Sprintf("%016x", seq))
}

// Append persists a new eviction record, pruning the oldest entries beyond
// the history cap.
func (l *EvictionLog) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Seq = l.seq
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal eviction record: %w", err)
	}
	if err := l.db.Put(evictKey(rec.Seq), data); err != nil {
		return fmt.Errorf("persist eviction record: %w", err)
	}
	l.seq++
	l.count++

	if l.count > maxEvictionRecords {
		if err := l.pruneLocked(l.count - maxEvictionRecords); err != nil {
			return err
		}
	}
	return nil
}

// pruneLocked deletes the n oldest records. Callers must hold the lock.
func (l *EvictionLog) pruneLocked(n int) error {
	var keys []string
	err := l.db.Scan(nil, func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("iterate for prune: %w", err)
	}
	sort.Strings(keys)

	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		if err := l.db.Delete([]byte(k)); err != nil {
			return fmt.Errorf("prune eviction record: %w", err)
		}
		l.count--
	}
	return nil
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns the full retained history.
func (l *EvictionLog) Recent(limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var recs []Record
	err := l.db.Scan(nil, func(_, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt records.
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read eviction log: %w", err)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Seq > recs[j].Seq })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Len reports the number of retained records.
func (l *EvictionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
