package shardmap

import "hash/maphash"

// HashFunc computes a 64-bit hash of a key. The seed is chosen randomly per
// map instance, so two maps never agree on slot placement for the same key.
// Replacing the hash changes key distribution across shards and slots but
// never affects correctness.
type HashFunc[K comparable] func(key K, seed uint64) uint64

// hashPrime is the 64-bit Golden Ratio mixing constant.
const hashPrime = 0x9E3779B185EBCA87

// defaultHasher returns a HashFunc built on hash/maphash, the runtime's
// hash for arbitrary comparable types. The maphash seed is captured at
// construction; the per-map uint64 seed is folded in so that custom and
// default hashers observe the same seeding contract.
func defaultHasher[K comparable]() HashFunc[K] {
	mseed := maphash.MakeSeed()
	return func(key K, seed uint64) uint64 {
		return maphash.Comparable(mseed, key) ^ seed
	}
}

// mix smears the hash with the golden-ratio constant so that the high-order
// bits (used for shard selection) do not correlate with the low-order bits
// (used for in-table probing). Correlated bits would funnel each shard's
// keys into a fraction of its slots.
func mix(h uint64) uint64 {
	h ^= h >> 33
	h *= hashPrime
	h ^= h >> 29
	return h
}

// shardIndex maps a mixed hash to [0, 1<<shardBits) using the high-order
// bits. The low-order bits remain for slot hints inside the shard's table.
func shardIndex(h uint64, shardBits uint) uint64 {
	if shardBits == 0 {
		return 0
	}
	return h >> (64 - shardBits)
}
