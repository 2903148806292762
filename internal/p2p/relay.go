package p2p

import (
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/klingnet-peering/internal/peermgr"
)

// noveltyCacheSize is how many recent payload digests each cache retains.
const noveltyCacheSize = 4096

// noveltyCache remembers the digests of recently observed payloads so repeat
// deliveries of the same bytes earn no credit. Old digests are evicted in
// arrival order once the cache is full.
type noveltyCache struct {
	mu   sync.Mutex
	seen map[[32]byte]struct{}
	ring [][32]byte
	next int
}

func newNoveltyCache(size int) *noveltyCache {
	return &noveltyCache{
		seen: make(map[[32]byte]struct{}, size),
		ring: make([][32]byte, size),
	}
}

// observe records the payload and reports whether this is its first sighting.
func (c *noveltyCache) observe(data []byte) bool {
	digest := blake3.Sum256(data)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[digest]; ok {
		return false
	}
	if old := c.ring[c.next]; old != ([32]byte{}) {
		delete(c.seen, old)
	}
	c.ring[c.next] = digest
	c.next = (c.next + 1) % len(c.ring)
	c.seen[digest] = struct{}{}
	return true
}

// relayMonitor watches the gossip topics and credits peers that deliver
// blocks or transactions we have not seen before. Blocks and transactions
// keep separate caches so a transaction flood cannot flush block digests.
type relayMonitor struct {
	table  *peermgr.Table
	blocks *noveltyCache
	txs    *noveltyCache
}

func newRelayMonitor(table *peermgr.Table) *relayMonitor {
	return &relayMonitor{
		table:  table,
		blocks: newNoveltyCache(noveltyCacheSize),
		txs:    newNoveltyCache(noveltyCacheSize),
	}
}

// HandleBlock credits the sender when the block payload is novel.
func (rm *relayMonitor) HandleBlock(from peer.ID, data []byte) {
	if rm.blocks.observe(data) {
		rm.table.RecordBlockDelivery(from)
	}
}

// HandleTx credits the sender when the transaction payload is novel.
func (rm *relayMonitor) HandleTx(from peer.ID, data []byte) {
	if rm.txs.observe(data) {
		rm.table.RecordTxDelivery(from)
	}
}
