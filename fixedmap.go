package shardmap

import "math/rand/v2"

// FixedMap is a single fixed-capacity open-addressed map with no sharding.
// Its backing array is allocated once at construction and never grows:
// Insert returns ErrCapacityExceeded instead of resizing, and growth (if
// desired) is the caller's job: build a larger map and re-insert the live
// entries.
//
// FixedMap performs no synchronization of its own. It is the package's only
// non-self-synchronizing variant, positioned for single-threaded or
// externally-synchronized, allocation-free deployments; concurrent use
// requires the caller to supply exclusion.
type FixedMap[K comparable, V any] struct {
	_    noCopy
	tab  *table[K, V]
	hash HashFunc[K]
	seed uint64
}

// NewFixedMap creates a FixedMap with the given capacity, rounded up to a
// power of two. Recognized options: WithProbeKind, WithMaxProbe.
func NewFixedMap[K comparable, V any](capacity int, options ...func(*MapConfig)) *FixedMap[K, V] {
	return NewFixedMapWithHasher[K, V](nil, capacity, options...)
}

// NewFixedMapWithHasher is NewFixedMap with a custom hash function.
// A nil hasher selects the built-in one.
func NewFixedMapWithHasher[K comparable, V any](
	hasher HashFunc[K],
	capacity int,
	options ...func(*MapConfig),
) *FixedMap[K, V] {
	if capacity <= 0 {
		panic("shardmap: fixed map capacity must be positive")
	}
	c := newMapConfig(options...)
	if hasher == nil {
		hasher = defaultHasher[K]()
	}
	return &FixedMap[K, V]{
		tab:  newTable[K, V](capacity, c.probe, c.maxProbe),
		hash: hasher,
		seed: rand.Uint64(),
	}
}

func (m *FixedMap[K, V]) hashOf(key K) uint64 {
	return mix(m.hash(key, m.seed))
}

// Get returns the value stored under key.
func (m *FixedMap[K, V]) Get(key K) (V, bool) {
	return m.tab.get(m.hashOf(key), key)
}

// Insert stores value under key. If the key was already present, its
// previous value is returned with replaced set. Inserting a new distinct
// key into a table with no claimable slot within the probe bound fails with
// ErrCapacityExceeded; the table never silently grows.
func (m *FixedMap[K, V]) Insert(key K, value V) (prev V, replaced bool, err error) {
	return m.tab.insert(m.hashOf(key), key, value)
}

// Remove deletes the entry for key and returns its value. The slot is
// tombstoned, not emptied, keeping probe chains for other keys intact.
func (m *FixedMap[K, V]) Remove(key K) (V, bool) {
	return m.tab.remove(m.hashOf(key), key)
}

// Contains reports whether key is present.
func (m *FixedMap[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of live entries.
func (m *FixedMap[K, V]) Len() int { return m.tab.live }

// Capacity returns the slot count fixed at construction.
func (m *FixedMap[K, V]) Capacity() int { return m.tab.capacity() }

// IsEmpty reports whether the map holds no live entries.
func (m *FixedMap[K, V]) IsEmpty() bool { return m.tab.live == 0 }

// IsFull reports whether every slot is occupied or tombstoned, i.e. whether
// the next insert of a distinct key may fail. A full table can still accept
// keys that land on tombstones.
func (m *FixedMap[K, V]) IsFull() bool { return m.tab.isFull() }

// Clear removes all entries, keeping the backing array.
func (m *FixedMap[K, V]) Clear() { m.tab.reset() }

// Range calls f for each entry until f returns false. Order is unspecified.
func (m *FixedMap[K, V]) Range(f func(key K, value V) bool) {
	m.tab.walk(f)
}
