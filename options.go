package shardmap

const (
	// defaultShardCount is the shard count used when WithShardCount is not
	// given. Must be a power of two.
	defaultShardCount = 32
	// defaultCapacity is the initial per-shard slot count.
	defaultCapacity = 16
	// defaultLoadFactor is the occupancy fraction (live plus tombstone slots
	// over capacity) that triggers a shard rebuild during insertion.
	defaultLoadFactor = 0.75
)

// MapConfig defines construction-time options shared by the map variants.
// All fields are fixed once the map is built; in particular the shard count
// never changes (there is no re-sharding).
type MapConfig struct {
	shardCount  int
	capacity    int
	maxCapacity int
	loadFactor  float64
	probe       ProbeKind
	maxProbe    int
}

func newMapConfig(options ...func(*MapConfig)) *MapConfig {
	c := &MapConfig{
		shardCount: defaultShardCount,
		capacity:   defaultCapacity,
		loadFactor: defaultLoadFactor,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// WithShardCount configures the number of independently synchronized
// partitions of the key space. Must be a positive power of two.
func WithShardCount(n int) func(*MapConfig) {
	return func(c *MapConfig) {
		if n <= 0 || n&(n-1) != 0 {
			panic("shardmap: shard count must be a positive power of two")
		}
		c.shardCount = n
	}
}

// WithCapacity configures the initial per-shard slot count, rounded up to a
// power of two. If n is zero or negative, the value is ignored.
func WithCapacity(n int) func(*MapConfig) {
	return func(c *MapConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithMaxCapacity bounds per-shard growth. Once a shard's table has reached
// this many slots (rounded up to a power of two) and cannot accommodate a
// new distinct key, Insert returns ErrCapacityExceeded instead of growing.
// Zero means unbounded.
func WithMaxCapacity(n int) func(*MapConfig) {
	return func(c *MapConfig) {
		if n < 0 {
			panic("shardmap: max capacity must not be negative")
		}
		c.maxCapacity = n
	}
}

// WithLoadFactor configures the occupancy threshold that triggers a shard
// rebuild after an insert. Must be in (0, 1).
func WithLoadFactor(f float64) func(*MapConfig) {
	return func(c *MapConfig) {
		if f <= 0 || f >= 1 {
			panic("shardmap: load factor must be in (0, 1)")
		}
		c.loadFactor = f
	}
}

// WithProbeKind selects the probe sequence used by every table the map
// builds. The kind is fixed for the life of the map.
func WithProbeKind(k ProbeKind) func(*MapConfig) {
	return func(c *MapConfig) {
		if k != ProbeQuadratic && k != ProbeLinear {
			panic("shardmap: unknown probe kind")
		}
		c.probe = k
	}
}

// WithMaxProbe caps the probe sequence length per lookup or insert. The
// default (zero) probes up to the table capacity, which guarantees that a
// full cycle visits every slot. A lower bound trades earlier
// ErrCapacityExceeded failures for tighter worst-case operation cost.
func WithMaxProbe(n int) func(*MapConfig) {
	return func(c *MapConfig) {
		if n < 0 {
			panic("shardmap: max probe must not be negative")
		}
		c.maxProbe = n
	}
}
