// Package arc implements an Adaptive Replacement Cache buffer pool
// (spec.md §4.6): two resident lists T1 (recency) and T2 (frequency), two
// ghost lists B1/B2 tracking evicted ids without payloads, and an adaptive
// target p that shifts the balance between recency and frequency as
// ghost-list hits arrive.
//
// github.com/hashicorp/golang-lru/v2/arc (available elsewhere in the
// dependency graph this module draws from) was considered and rejected:
// it exposes only Get/Add/Purge, none of the T1/T2/B1/B2/p internals that
// the properties below need to assert against directly, so the cache is
// hand-rolled from the algorithm description instead.
package arc

import (
	"container/list"

	"github.com/archivefs/cartridge/internal/logging"
	"github.com/sirupsen/logrus"
)

// Page is the cached unit: a page id and its payload.
type Page struct {
	ID      uint64
	Payload []byte
}

// Stats is the snapshot reported by (*Cache).Stats.
type Stats struct {
	Hits, Misses   uint64
	T1, T2, B1, B2 int
	P              int
	Capacity       int
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is an ARC buffer pool keyed by page id.
type Cache struct {
	capacity int
	p        int

	t1, t2, b1, b2 *list.List
	elems          map[uint64]*list.Element // id -> element, across whichever list currently holds it
	listOf         map[uint64]*list.List    // id -> which of t1/t2/b1/b2 currently holds it
	payloads       map[uint64][]byte        // resident payloads only (t1, t2)

	hits, misses uint64

	log *logrus.Entry
}

// New returns an empty cache with the given page capacity.
func New(capacity int, log *logrus.Entry) *Cache {
	log = logging.OrDefault(log)
	return &Cache{
		capacity: capacity,
		t1:       list.New(),
		t2:       list.New(),
		b1:       list.New(),
		b2:       list.New(),
		elems:    make(map[uint64]*list.Element),
		listOf:   make(map[uint64]*list.List),
		payloads: make(map[uint64][]byte),
		log:      log,
	}
}

func (c *Cache) moveToFrontT2(id uint64) {
	l := c.listOf[id]
	e := c.elems[id]
	l.Remove(e)
	c.listOf[id] = c.t2
	c.elems[id] = c.t2.PushFront(id)
}

// Get reports a hit (returning the payload) or records the access against
// the ghost lists and runs replace() per spec.md §4.6 on a ghost hit.
// Callers on a miss are expected to load the page themselves and call Put.
func (c *Cache) Get(id uint64) ([]byte, bool) {
	switch c.listOf[id] {
	case c.t1, c.t2:
		c.hits++
		payload := c.payloads[id]
		c.moveToFrontT2(id)
		return payload, true

	case c.b1:
		c.misses++
		delta := maxInt(1, c.b2.Len()/maxInt(1, c.b1.Len()))
		c.p = minInt(c.p+delta, c.capacity)
		c.replace(id)
		c.removeFrom(c.b1, id)
		return nil, false

	case c.b2:
		c.misses++
		delta := maxInt(1, c.b1.Len()/maxInt(1, c.b2.Len()))
		c.p = maxInt(c.p-delta, 0)
		c.replace(id)
		c.removeFrom(c.b2, id)
		return nil, false

	default:
		c.misses++
		return nil, false
	}
}

// Put inserts id with payload at the front of T1. If the page is already
// resident, its payload is refreshed in place without moving it.
func (c *Cache) Put(id uint64, payload []byte) {
	if l := c.listOf[id]; l == c.t1 || l == c.t2 {
		c.payloads[id] = payload
		return
	}

	if c.t1.Len()+c.t2.Len() >= c.capacity {
		c.replace(id)
	}

	// id may have just come out of a ghost list via Get; make sure no
	// stale bookkeeping remains before inserting fresh.
	c.forget(id)

	c.listOf[id] = c.t1
	c.elems[id] = c.t1.PushFront(id)
	c.payloads[id] = payload

	c.trimGhosts()
}

// replace implements spec.md §4.6's replace(victim_id): evict from T1 or
// T2 into the corresponding ghost list, dropping the evicted payload.
func (c *Cache) replace(victimID uint64) {
	victimInB2 := c.listOf[victimID] == c.b2

	if c.t1.Len() > 0 && (c.t1.Len() > c.p || (victimInB2 && c.t1.Len() == c.p)) {
		c.evictLRU(c.t1, c.b1)
		return
	}
	if c.t2.Len() > 0 {
		c.evictLRU(c.t2, c.b2)
	}
}

func (c *Cache) evictLRU(from, to *list.List) {
	back := from.Back()
	if back == nil {
		return
	}
	id := back.Value.(uint64)
	from.Remove(back)
	delete(c.payloads, id)

	c.listOf[id] = to
	c.elems[id] = to.PushFront(id)

	c.log.WithField("page_id", id).Debug("arc: evicted resident page to ghost list")
}

func (c *Cache) removeFrom(l *list.List, id uint64) {
	if e, ok := c.elems[id]; ok && c.listOf[id] == l {
		l.Remove(e)
	}
	c.forget(id)
}

func (c *Cache) forget(id uint64) {
	delete(c.elems, id)
	delete(c.listOf, id)
}

// trimGhosts keeps |B1|+|B2| <= 2*capacity by evicting from the larger
// ghost list, per spec.md §4.6's put() contract.
func (c *Cache) trimGhosts() {
	for c.b1.Len()+c.b2.Len() > 2*c.capacity {
		if c.b1.Len() >= c.b2.Len() {
			c.dropGhostLRU(c.b1)
		} else {
			c.dropGhostLRU(c.b2)
		}
	}
}

func (c *Cache) dropGhostLRU(l *list.List) {
	back := l.Back()
	if back == nil {
		return
	}
	id := back.Value.(uint64)
	l.Remove(back)
	c.forget(id)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Stats reports the instantaneous cache state (spec.md §4.6).
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		T1:       c.t1.Len(),
		T2:       c.t2.Len(),
		B1:       c.b1.Len(),
		B2:       c.b2.Len(),
		P:        c.p,
		Capacity: c.capacity,
	}
}

// Contains reports whether id is currently resident (in T1 or T2).
func (c *Cache) Contains(id uint64) bool {
	l := c.listOf[id]
	return l == c.t1 || l == c.t2
}

// Purge drops every resident and ghost entry, resetting p to zero but
// preserving the hit/miss counters. Used after a snapshot restore, where
// the backing content under every cached page id may have changed
// (spec.md §4.8).
func (c *Cache) Purge() {
	c.t1 = list.New()
	c.t2 = list.New()
	c.b1 = list.New()
	c.b2 = list.New()
	c.elems = make(map[uint64]*list.Element)
	c.listOf = make(map[uint64]*list.List)
	c.payloads = make(map[uint64][]byte)
	c.p = 0
}
