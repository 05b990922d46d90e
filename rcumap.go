package shardmap

import (
	"math/rand/v2"
	"sync/atomic"
	"unsafe"
)

// MapStats carries cumulative operation counters, primarily for tests and
// tuning.
type MapStats struct {
	// Growths counts shard table rebuilds into a larger capacity.
	Growths uint32
	// Retries counts failed snapshot publishes (RcuMap only).
	Retries uint32
	// Reclaims counts superseded snapshots whose reference count reached
	// zero (RcuMap only).
	Reclaims uint32
}

// snapshot is one immutable table version plus its reference count. The
// shard's pointer slot owns one reference; every in-flight operation that
// acquired the snapshot owns one more. The count can never be raised from
// zero (tryRef refuses it), so a snapshot is reclaimed exactly once: after
// it has been superseded (the slot released its reference) and the last
// reader released theirs.
type snapshot[K comparable, V any] struct {
	tab  *table[K, V]
	refs atomic.Int64
}

func newSnapshot[K comparable, V any](tab *table[K, V]) *snapshot[K, V] {
	sn := &snapshot[K, V]{tab: tab}
	sn.refs.Store(1) // the shard slot's reference
	return sn
}

// tryRef takes a reference unless the snapshot is already dead. The
// conditional increment is what keeps reclamation exactly-once: a count
// that reached zero stays at zero.
func (s *snapshot[K, V]) tryRef() bool {
	for {
		r := s.refs.Load()
		if r == 0 {
			return false
		}
		if s.refs.CompareAndSwap(r, r+1) {
			return true
		}
	}
}

// unref releases one reference. The holder that drops the count to zero
// reclaims the snapshot's table; the atomic decrement chain orders every
// reader's last access before the reclamation.
func (s *snapshot[K, V]) unref(reclaims *atomic.Uint32) {
	if s.refs.Add(-1) == 0 {
		s.tab = nil
		reclaims.Add(1)
	}
}

// rcuShard is one partition of an RcuMap: a single atomic slot holding the
// shard's current snapshot. Padded to a cache line so that publish traffic
// on one shard does not false-share with its neighbors.
type rcuShard[K comparable, V any] struct {
	cur atomic.Pointer[snapshot[K, V]]

	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(struct {
		cur unsafe.Pointer
	}{})%CacheLineSize) % CacheLineSize]byte
}

// acquire returns the shard's current snapshot with a reference held. It
// retries only when it races with the reclamation of a just-superseded
// snapshot, in which case the slot already points at a newer one; some
// thread always makes progress (lock-free).
func (sh *rcuShard[K, V]) acquire() *snapshot[K, V] {
	for {
		if sn := sh.cur.Load(); sn.tryRef() {
			return sn
		}
	}
}

// RcuMap is a sharded read-copy-update concurrent map for read-mostly
// workloads. Readers never take a lock and never observe a half-updated
// table: a read atomically loads the shard's current snapshot and performs
// an ordinary lookup against that immutable table. Writers build a new
// table off the current snapshot (copy-on-write) and publish it with a
// compare-and-swap; losers of the race discard their copy and retry with
// backoff, so writes to the same shard are effectively serialized while
// writes to different shards proceed in parallel with no coordination.
//
// Superseded snapshots are reclaimed through reference counting: a writer
// never frees a table a concurrent reader might still be probing. The
// accounting is observable through Stats.
//
// Unlike FixedMap, an RcuMap shard grows: when the copy built by a writer
// cannot accommodate the mutation, it is simply rebuilt at a larger
// capacity before being published (bounded by WithMaxCapacity).
//
// An RcuMap must not be copied after first use.
type RcuMap[K comparable, V any] struct {
	_           noCopy
	shards      []rcuShard[K, V]
	shardBits   uint
	hash        HashFunc[K]
	seed        uint64
	initCap     int
	maxCapacity int // per-shard slot bound, 0 = unbounded
	loadFactor  float64
	probe       ProbeKind
	maxProbe    int

	totalGrowths  atomic.Uint32
	totalRetries  atomic.Uint32
	totalReclaims atomic.Uint32
}

// NewRcuMap creates an RcuMap.
//
// Recognized options: WithShardCount, WithCapacity, WithMaxCapacity,
// WithLoadFactor, WithProbeKind, WithMaxProbe.
func NewRcuMap[K comparable, V any](options ...func(*MapConfig)) *RcuMap[K, V] {
	return NewRcuMapWithHasher[K, V](nil, options...)
}

// NewRcuMapWithHasher is NewRcuMap with a custom hash function. A nil
// hasher selects the built-in one.
func NewRcuMapWithHasher[K comparable, V any](
	hasher HashFunc[K],
	options ...func(*MapConfig),
) *RcuMap[K, V] {
	c := newMapConfig(options...)
	if hasher == nil {
		hasher = defaultHasher[K]()
	}
	initCap, maxCap := normalizeCapacity(c)
	m := &RcuMap[K, V]{
		shards:      make([]rcuShard[K, V], c.shardCount),
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
		m.shards[i].cur.Store(newSnapshot(newTable[K, V](initCap, c.probe, c.maxProbe)))
	}
	return m
}

func (m *RcuMap[K, V]) hashOf(key K) uint64 {
	return mix(m.hash(key, m.seed))
}

func (m *RcuMap[K, V]) shardFor(hash uint64) *rcuShard[K, V] {
	return &m.shards[shardIndex(hash, m.shardBits)]
}

// Get returns the value stored under key. The snapshot load is the single
// synchronization point of a read: the lookup then runs against a table
// frozen at one instant between two writes, so a torn state is impossible.
func (m *RcuMap[K, V]) Get(key K) (V, bool) {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	sn := sh.acquire()
	v, ok := sn.tab.get(h, key)
	sn.unref(&m.totalReclaims)
	return v, ok
}

// Insert stores value under key, returning the previous value if the key
// was already present. The write copies the shard's table, applies the
// mutation, and publishes the copy with a CAS; under contention the losing
// writer retries against the winner's snapshot. ErrCapacityExceeded is
// returned only when WithMaxCapacity forbids further growth.
func (m *RcuMap[K, V]) Insert(key K, value V) (prev V, replaced bool, err error) {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	spins := 0
	for {
		old := sh.acquire()
		var dst *table[K, V]
		var grew bool
		dst, prev, replaced, grew, err = m.tableForInsert(old.tab, h, key, value)
		if err != nil {
			old.unref(&m.totalReclaims)
			return prev, false, err
		}
		if sh.cur.CompareAndSwap(old, newSnapshot(dst)) {
			old.unref(&m.totalReclaims) // the slot's reference
			old.unref(&m.totalReclaims) // our own
			if grew {
				m.totalGrowths.Add(1)
			}
			return prev, replaced, nil
		}
		old.unref(&m.totalReclaims)
		m.totalRetries.Add(1)
		delay(&spins)
	}
}

// tableForInsert builds the successor table for an insert into src. It
// clones at the current capacity unless the load factor would trip, and
// keeps rebuilding larger (or compacting tombstones at the maximum
// capacity) until the insert fits or growth is exhausted.
func (m *RcuMap[K, V]) tableForInsert(src *table[K, V], h uint64, key K, value V) (dst *table[K, V], prev V, replaced bool, grew bool, err error) {
	capNow := src.capacity()
	if float64(src.used+1) > m.loadFactor*float64(capNow) &&
		(m.maxCapacity == 0 || capNow*2 <= m.maxCapacity) {
		dst = newTable[K, V](capNow*2, m.probe, m.maxProbe)
		src.rehashInto(dst, m.hashOf)
		grew = true
	} else {
		dst = src.clone()
	}
	for {
		prev, replaced, err = dst.insert(h, key, value)
		if err == nil {
			return dst, prev, replaced, grew, nil
		}
		newCap := dst.capacity() * 2
		if m.maxCapacity > 0 && newCap > m.maxCapacity {
			if dst.used == dst.live {
				// No tombstones left to compact and no headroom.
				return nil, prev, false, grew, ErrCapacityExceeded
			}
			newCap = dst.capacity()
		}
		next := newTable[K, V](newCap, m.probe, m.maxProbe)
		dst.rehashInto(next, m.hashOf)
		dst = next
		grew = true
	}
}

// Remove deletes the entry for key and returns its value. A removal of an
// absent key publishes nothing.
func (m *RcuMap[K, V]) Remove(key K) (V, bool) {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	spins := 0
	for {
		old := sh.acquire()
		if _, ok := old.tab.get(h, key); !ok {
			old.unref(&m.totalReclaims)
			var zero V
			return zero, false
		}
		dst := old.tab.clone()
		v, _ := dst.remove(h, key)
		if sh.cur.CompareAndSwap(old, newSnapshot(dst)) {
			old.unref(&m.totalReclaims)
			old.unref(&m.totalReclaims)
			return v, true
		}
		old.unref(&m.totalReclaims)
		m.totalRetries.Add(1)
		delay(&spins)
	}
}

// Alter atomically transforms the entry for key through the copy-on-write
// publish loop. f receives the current value (or the zero value) and
// whether the key was present; it returns the value to store and whether
// to keep the entry. Returning keep=false removes the key.
//
// f may be invoked more than once if the publish races with other writers
// to the same shard, so it must be pure.
func (m *RcuMap[K, V]) Alter(key K, f func(old V, loaded bool) (V, bool)) error {
	h := m.hashOf(key)
	sh := m.shardFor(h)
	spins := 0
	for {
		old := sh.acquire()
		cur, loaded := old.tab.get(h, key)
		value, keep := f(cur, loaded)

		var dst *table[K, V]
		var grew bool
		if keep {
			var err error
			dst, _, _, grew, err = m.tableForInsert(old.tab, h, key, value)
			if err != nil {
				old.unref(&m.totalReclaims)
				return err
			}
		} else {
			if !loaded {
				old.unref(&m.totalReclaims)
				return nil
			}
			dst = old.tab.clone()
			dst.remove(h, key)
		}
		if sh.cur.CompareAndSwap(old, newSnapshot(dst)) {
			old.unref(&m.totalReclaims)
			old.unref(&m.totalReclaims)
			if grew {
				m.totalGrowths.Add(1)
			}
			return nil
		}
		old.unref(&m.totalReclaims)
		m.totalRetries.Add(1)
		delay(&spins)
	}
}

// Contains reports whether key is present.
func (m *RcuMap[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of live entries across all shards. Each shard
// contributes an atomically consistent count; the sum is not a
// point-in-time snapshot when writers are active on multiple shards.
func (m *RcuMap[K, V]) Len() int {
	var n int
	for i := range m.shards {
		sn := m.shards[i].acquire()
		n += sn.tab.live
		sn.unref(&m.totalReclaims)
	}
	return n
}

// IsEmpty reports whether the map holds no live entries.
func (m *RcuMap[K, V]) IsEmpty() bool { return m.Len() == 0 }

// Clear publishes a fresh empty snapshot in every shard.
func (m *RcuMap[K, V]) Clear() {
	for i := range m.shards {
		sh := &m.shards[i]
		spins := 0
		for {
			old := sh.acquire()
			next := newSnapshot(newTable[K, V](m.initCap, m.probe, m.maxProbe))
			if sh.cur.CompareAndSwap(old, next) {
				old.unref(&m.totalReclaims)
				old.unref(&m.totalReclaims)
				break
			}
			old.unref(&m.totalReclaims)
			m.totalRetries.Add(1)
			delay(&spins)
		}
	}
}

// Range calls f for each entry until f returns false. Each shard is read
// from one snapshot, so the entries of a single shard form a consistent
// view; no consistency is promised across shards. f runs while the
// snapshot reference is held but never blocks writers, so f may operate on
// the map itself.
func (m *RcuMap[K, V]) Range(f func(key K, value V) bool) {
	for i := range m.shards {
		sn := m.shards[i].acquire()
		cont := func() bool {
			defer sn.unref(&m.totalReclaims)
			return sn.tab.walk(f)
		}()
		if !cont {
			return
		}
	}
}

// ShardCount returns the number of shards fixed at construction.
func (m *RcuMap[K, V]) ShardCount() int { return len(m.shards) }

// Stats returns cumulative counters for grows, failed publishes and
// snapshot reclamations. After all operations have completed, Reclaims
// equals the number of snapshots ever superseded.
func (m *RcuMap[K, V]) Stats() MapStats {
	return MapStats{
		Growths:  m.totalGrowths.Load(),
		Retries:  m.totalRetries.Load(),
		Reclaims: m.totalReclaims.Load(),
	}
}
