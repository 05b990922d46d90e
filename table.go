package shardmap

// ProbeKind selects the probe sequence a table uses to resolve collisions.
// Capacities are always powers of two, so both kinds visit every slot
// exactly once over a full cycle; the "probing reaches a live key before
// any empty slot" invariant therefore holds for all keys, not just most.
type ProbeKind uint8

const (
	// ProbeQuadratic steps by increasing triangular increments
	// (h, h+1, h+3, h+6, ...), which spreads clusters apart.
	ProbeQuadratic ProbeKind = iota
	// ProbeLinear steps one slot at a time.
	ProbeLinear
)

// EntryOf is an immutable key/value pair, as produced by Range.
type EntryOf[K comparable, V any] struct {
	Key   K
	Value V
}

// slotState is the tri-state of an open-addressing slot. A tombstone marks
// "previously occupied, now removed": probes skip it but must not stop,
// otherwise keys displaced past the removed entry would become unreachable.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotLive
	slotTombstone
)

type slot[K comparable, V any] struct {
	state slotState
	key   K
	value V
}

// table is a fixed-capacity open-addressed hash table: the storage engine
// behind FixedMap, behind every LockedMap shard, and behind every RcuMap
// snapshot. It never grows; callers that want growth rebuild a larger table
// with rehashInto and swap it in under their own synchronization.
//
// Invariants:
//   - used (live + tombstone slots) never exceeds capacity; insert fails
//     with ErrCapacityExceeded first.
//   - a live key is reachable from its home slot before any empty slot on
//     its probe sequence.
//   - no two live slots hold equal keys.
type table[K comparable, V any] struct {
	slots    []slot[K, V]
	mask     uint64 // len(slots)-1; len is a power of two
	live     int    // live entries
	used     int    // live + tombstone slots
	maxProbe int
	probe    ProbeKind
}

// newTable allocates an empty table. capacity is rounded up to a power of
// two; maxProbe is clamped to it, with zero meaning a full cycle.
func newTable[K comparable, V any](capacity int, probe ProbeKind, maxProbe int) *table[K, V] {
	capacity = nextPowOf2(capacity)
	if maxProbe <= 0 || maxProbe > capacity {
		maxProbe = capacity
	}
	return &table[K, V]{
		slots:    make([]slot[K, V], capacity),
		mask:     uint64(capacity - 1),
		maxProbe: maxProbe,
		probe:    probe,
	}
}

// pos returns the i-th position of the probe sequence starting at home.
// Triangular increments permute a power-of-two table, so quadratic probing
// covers every slot within capacity steps just like linear probing does.
func (t *table[K, V]) pos(home uint64, i int) uint64 {
	if t.probe == ProbeLinear {
		return (home + uint64(i)) & t.mask
	}
	return (home + uint64(i)*(uint64(i)+1)/2) & t.mask
}

func (t *table[K, V]) get(hash uint64, key K) (V, bool) {
	home := hash & t.mask
	for i := 0; i < t.maxProbe; i++ {
		s := &t.slots[t.pos(home, i)]
		switch s.state {
		case slotEmpty:
			var zero V
			return zero, false
		case slotLive:
			if s.key == key {
				return s.value, true
			}
		}
	}
	var zero V
	return zero, false
}

// insert stores value under key, replacing an existing live entry if one is
// found. A new entry claims the first tombstone seen on the probe sequence,
// or the terminating empty slot if there was none. The scan never claims a
// tombstone before the sequence is exhausted or an empty slot is reached:
// the same key could still be live further down the chain, and a table must
// never hold it twice.
func (t *table[K, V]) insert(hash uint64, key K, value V) (prev V, replaced bool, err error) {
	home := hash & t.mask
	reuse := -1
	for i := 0; i < t.maxProbe; i++ {
		idx := t.pos(home, i)
		s := &t.slots[idx]
		switch s.state {
		case slotEmpty:
			if reuse >= 0 {
				t.claim(reuse, key, value)
			} else {
				t.used++
				t.claim(int(idx), key, value)
			}
			return prev, false, nil
		case slotTombstone:
			if reuse < 0 {
				reuse = int(idx)
			}
		case slotLive:
			if s.key == key {
				prev = s.value
				s.value = value
				return prev, true, nil
			}
		}
	}
	if reuse >= 0 {
		t.claim(reuse, key, value)
		return prev, false, nil
	}
	return prev, false, ErrCapacityExceeded
}

// claim turns an empty or tombstone slot into a live entry. The caller has
// already accounted for used.
func (t *table[K, V]) claim(idx int, key K, value V) {
	s := &t.slots[idx]
	s.state = slotLive
	s.key = key
	s.value = value
	t.live++
}

// remove tombstones a live entry. The slot is never reset to empty: probe
// chains for other keys must keep running past it.
func (t *table[K, V]) remove(hash uint64, key K) (V, bool) {
	home := hash & t.mask
	for i := 0; i < t.maxProbe; i++ {
		s := &t.slots[t.pos(home, i)]
		switch s.state {
		case slotEmpty:
			var zero V
			return zero, false
		case slotLive:
			if s.key == key {
				v := s.value
				var zeroK K
				var zeroV V
				s.key = zeroK
				s.value = zeroV
				s.state = slotTombstone
				t.live--
				return v, true
			}
		}
	}
	var zero V
	return zero, false
}

func (t *table[K, V]) capacity() int { return len(t.slots) }

func (t *table[K, V]) isFull() bool { return t.used == len(t.slots) }

// walk visits every live entry; it returns false as soon as f does.
// Iteration order is the slot order, which carries no meaning.
func (t *table[K, V]) walk(f func(K, V) bool) bool {
	for i := range t.slots {
		s := &t.slots[i]
		if s.state == slotLive {
			if !f(s.key, s.value) {
				return false
			}
		}
	}
	return true
}

// reset returns the table to its freshly constructed state, keeping the
// backing array.
func (t *table[K, V]) reset() {
	clear(t.slots)
	t.live = 0
	t.used = 0
}

// clone deep-copies the table. The copy shares nothing with the original;
// the RCU write path mutates the copy while readers keep the original.
func (t *table[K, V]) clone() *table[K, V] {
	c := &table[K, V]{
		slots:    make([]slot[K, V], len(t.slots)),
		mask:     t.mask,
		live:     t.live,
		used:     t.used,
		maxProbe: t.maxProbe,
		probe:    t.probe,
	}
	copy(c.slots, t.slots)
	return c
}

// rehashInto reinserts every live entry into dst, which must be empty and
// large enough to hold them all. Tombstones are dropped, so a rebuild also
// compacts probe chains.
func (t *table[K, V]) rehashInto(dst *table[K, V], hash func(K) uint64) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.state != slotLive {
			continue
		}
		if _, _, err := dst.insert(hash(s.key), s.key, s.value); err != nil {
			panic("shardmap: rehash into undersized table")
		}
	}
}
