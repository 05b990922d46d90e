package shardmap

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"unsafe"
)

// lockedShard is one lock-guarded partition of a LockedMap. Each shard is
// padded out to a cache line so lock traffic on one shard does not
// false-share with its neighbors.
type lockedShard[K comparable, V any] struct {
	mu   sync.RWMutex
	tab  *table[K, V]
	size atomic.Int64 // live entries, readable without the lock

	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(struct {
		mu   sync.RWMutex
		tab  unsafe.Pointer
		size atomic.Int64
	}{})%CacheLineSize) % CacheLineSize]byte
}

// LockedMap is a sharded concurrent map with one reader/writer lock per
// shard. It is the correctness-first variant: reads take the shard lock in
// shared mode, writes in exclusive mode, and a shard's table is rebuilt
// into a larger one under the exclusive lock when its load factor crosses
// the configured threshold. Other shards never notice a resize.
//
// A single operation holds at most one shard lock, so operations on the
// map cannot deadlock with each other. Go locks do not poison: if a caller
// panics inside Alter or Range the panic propagates, it is never swallowed.
//
// A LockedMap must not be copied after first use.
type LockedMap[K comparable, V any] struct {
	_            noCopy
	shards       []lockedShard[K, V]
	shardBits    uint
	hash         HashFunc[K]
	seed         uint64
	initCap      int
	maxCapacity  int // per-shard slot bound, 0 = unbounded
	loadFactor   float64
	probe        ProbeKind
	maxProbe     int
	totalGrowths atomic.Uint32
}

// NewLockedMap creates a LockedMap.
//
// Recognized options: WithShardCount, WithCapacity, WithMaxCapacity,
// WithLoadFactor, WithProbeKind, WithMaxProbe.
func NewLockedMap[K comparable, V any](options ...func(*MapConfig)) *LockedMap[K, V] {
	return NewLockedMapWithHasher[K, V](nil, options...)
}

// NewLockedMapWithHasher is NewLockedMap with a custom hash function.
// A nil hasher selects the built-in one.
func NewLockedMapWithHasher[K comparable, V any](
	hasher HashFunc[K],
	options ...func(*MapConfig),
) *LockedMap[K, V] {
	c := newMapConfig(options...)
	if hasher == nil {
		hasher = defaultHasher[K]()
	}
	initCap, maxCap := normalizeCapacity(c)
	m := &LockedMap[K, V]{
		shards:      make([]lockedShard[K, V], c.shardCount),
		shardBits:   shardBitsFor(c.shardCount),
		hash:        hasher,
		seed:        rand.Uint64(),
		initCap:     initCap,
		maxCapacity: maxCap,
		loadFactor:  c.loadFactor,
		probe:       c.probe,
		maxProbe:    c.maxProbe,
	}
	for i := range m.shards {
		m.shards[i].tab = newTable[K, V](initCap, c.probe, c.maxProbe)
	}
	return m
}

func (m *LockedMap[K, V]) hashOf(key K) uint64 {
	return mix(m.hash(key, m.seed))
}

func (m *LockedMap[K, V]) shardFor(hash uint64) *lockedShard[K, V] {
	return &m.shards[shardIndex(hash, m.shardBits)]
}

// Get returns the value stored under key, taking the shard lock in shared
// mode for the duration of the probe.
func (m *LockedMap[K, V]) Get(key K) (V, bool) {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	sh.mu.RLock()
	v, ok := sh.tab.get(h, key)
	sh.mu.RUnlock()
	return v, ok
}

// Insert stores value under key, returning the previous value if the key
// was already present. The shard may grow (double its table, bounded by
// WithMaxCapacity) while the exclusive lock is held; no other operation on
// that shard observes an intermediate state. ErrCapacityExceeded is
// returned only when growth is exhausted.
func (m *LockedMap[K, V]) Insert(key K, value V) (prev V, replaced bool, err error) {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	sh.mu.Lock()
	prev, replaced, err = m.insertLocked(sh, h, key, value)
	sh.mu.Unlock()
	return prev, replaced, err
}

// insertLocked performs the insert plus growth policy with sh.mu held
// exclusively.
func (m *LockedMap[K, V]) insertLocked(sh *lockedShard[K, V], h uint64, key K, value V) (prev V, replaced bool, err error) {
	prev, replaced, err = sh.tab.insert(h, key, value)
	if err != nil {
		// The probe bound ran out before the load factor tripped
		// (clustering or tombstone buildup). Rebuild, then retry once.
		if err = m.growLocked(sh); err != nil {
			return prev, false, err
		}
		prev, replaced, err = sh.tab.insert(h, key, value)
		if err != nil {
			return prev, false, err
		}
	}
	if !replaced {
		sh.size.Add(1)
	}
	if float64(sh.tab.used) > m.loadFactor*float64(sh.tab.capacity()) {
		// Best effort: a shard capped by WithMaxCapacity keeps serving
		// until it is genuinely full.
		_ = m.growLocked(sh)
	}
	return prev, replaced, nil
}

// growLocked replaces the shard's table with a rebuilt one. The new table
// doubles the capacity when allowed; at the configured maximum it is
// rebuilt at the same capacity if tombstones can be compacted away, and
// ErrCapacityExceeded is returned otherwise. Caller holds sh.mu.
func (m *LockedMap[K, V]) growLocked(sh *lockedShard[K, V]) error {
	capNow := sh.tab.capacity()
	newCap := capNow * 2
	if m.maxCapacity > 0 && newCap > m.maxCapacity {
		if sh.tab.used == sh.tab.live {
			// No tombstones to reclaim and no headroom left.
			return ErrCapacityExceeded
		}
		newCap = capNow
	}
	next := newTable[K, V](newCap, m.probe, m.maxProbe)
	sh.tab.rehashInto(next, m.hashOf)
	sh.tab = next
	m.totalGrowths.Add(1)
	return nil
}

// Remove deletes the entry for key and returns its value.
func (m *LockedMap[K, V]) Remove(key K) (V, bool) {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	sh.mu.Lock()
	v, ok := sh.tab.remove(h, key)
	if ok {
		sh.size.Add(-1)
	}
	sh.mu.Unlock()
	return v, ok
}

// Alter atomically transforms the entry for key under the shard's
// exclusive lock. f receives the current value (or the zero value) and
// whether the key was present; it returns the value to store and whether
// to keep the entry. Returning keep=false removes the key.
//
// f runs with the shard lock held: it must be quick and must not call back
// into the same map.
func (m *LockedMap[K, V]) Alter(key K, f func(old V, loaded bool) (V, bool)) error {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	old, loaded := sh.tab.get(h, key)
	value, keep := f(old, loaded)
	if !keep {
		if loaded {
			sh.tab.remove(h, key)
			sh.size.Add(-1)
		}
		return nil
	}
	_, _, err := m.insertLocked(sh, h, key, value)
	return err
}

// Contains reports whether key is present.
func (m *LockedMap[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of live entries across all shards. The sum is not
// a point-in-time snapshot when writers are active on multiple shards.
func (m *LockedMap[K, V]) Len() int {
	var n int64
	for i := range m.shards {
		n += m.shards[i].size.Load()
	}
	return int(n)
}

// IsEmpty reports whether the map holds no live entries.
func (m *LockedMap[K, V]) IsEmpty() bool { return m.Len() == 0 }

// Clear removes all entries, resetting each shard's table in place.
func (m *LockedMap[K, V]) Clear() {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		sh.tab.reset()
		sh.size.Store(0)
		sh.mu.Unlock()
	}
}

// Range calls f for each entry until f returns false. Each shard is copied
// out under its read lock and f runs with no lock held, so f may operate
// on the map itself. Entries inserted or removed concurrently may or may
// not be visited.
func (m *LockedMap[K, V]) Range(f func(key K, value V) bool) {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		entries := make([]EntryOf[K, V], 0, sh.tab.live)
		sh.tab.walk(func(k K, v V) bool {
			entries = append(entries, EntryOf[K, V]{Key: k, Value: v})
			return true
		})
		sh.mu.RUnlock()
		for j := range entries {
			if !f(entries[j].Key, entries[j].Value) {
				return
			}
		}
	}
}

// ShardCount returns the number of shards fixed at construction.
func (m *LockedMap[K, V]) ShardCount() int { return len(m.shards) }

// Stats returns operation counters. Only Growths is meaningful for
// LockedMap.
func (m *LockedMap[K, V]) Stats() MapStats {
	return MapStats{Growths: m.totalGrowths.Load()}
}

// normalizeCapacity rounds the configured capacities to powers of two and
// keeps the initial capacity within the maximum.
func normalizeCapacity(c *MapConfig) (initCap, maxCap int) {
	initCap = nextPowOf2(c.capacity)
	maxCap = c.maxCapacity
	if maxCap > 0 {
		maxCap = nextPowOf2(maxCap)
		if initCap > maxCap {
			initCap = maxCap
		}
	}
	return initCap, maxCap
}

// shardBitsFor returns log2 of the (power of two) shard count.
func shardBitsFor(shardCount int) uint {
	var bits uint
	for 1<<bits < shardCount {
		bits++
	}
	return bits
}
