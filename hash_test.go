package shardmap

import (
	"fmt"
	"testing"
)

func TestShardIndexRange(t *testing.T) {
	for _, shardCount := range []int{1, 2, 16, 256} {
		bits := shardBitsFor(shardCount)
		for i := 0; i < 10000; i++ {
			h := mix(uint64(i))
			idx := shardIndex(h, bits)
			if idx >= uint64(shardCount) {
				t.Fatalf("shard index %d out of range for %d shards", idx, shardCount)
			}
		}
	}
}

func TestShardBitsFor(t *testing.T) {
	cases := map[int]uint{1: 0, 2: 1, 4: 2, 32: 5, 1024: 10}
	for count, want := range cases {
		if got := shardBitsFor(count); got != want {
			t.Fatalf("shardBitsFor(%d) = %d, want %d", count, got, want)
		}
	}
}

func TestMixDecorrelatesShardAndSlot(t *testing.T) {
	// Keys constructed to collide in the low bits (the slot hint) should
	// still spread over shards, because the shard index comes from the
	// high bits of the mixed hash.
	const shardCount = 16
	bits := shardBitsFor(shardCount)
	seen := make(map[uint64]int)
	for i := 0; i < 1024; i++ {
		h := mix(uint64(i << 12)) // low 12 bits identical for all keys
		seen[shardIndex(h, bits)]++
	}
	if len(seen) < shardCount {
		t.Fatalf("only %d of %d shards hit", len(seen), shardCount)
	}
}

func TestDefaultHasherDistribution(t *testing.T) {
	// Smoke test: string keys should not funnel into a few shards.
	hasher := defaultHasher[string]()
	const shardCount = 32
	bits := shardBitsFor(shardCount)
	counts := make([]int, shardCount)
	const n = 32 * 1000
	for i := 0; i < n; i++ {
		h := mix(hasher(fmt.Sprintf("key-%d", i), 0))
		counts[shardIndex(h, bits)]++
	}
	for s, c := range counts {
		if c < n/shardCount/2 || c > n/shardCount*2 {
			t.Fatalf("shard %d holds %d of %d keys, distribution skewed", s, c, n)
		}
	}
}

func TestDefaultHasherSeedIndependence(t *testing.T) {
	// Two hasher instances must disagree on at least some keys: slot
	// placement is per-map, not global.
	h1 := defaultHasher[int]()
	h2 := defaultHasher[int]()
	same := 0
	for i := 0; i < 128; i++ {
		if h1(i, 0) == h2(i, 0) {
			same++
		}
	}
	if same == 128 {
		t.Fatal("independent hashers agreed on every key")
	}
}

func TestNextPowOf2(t *testing.T) {
	cases := map[int]int{-1: 1, 0: 1, 1: 1, 2: 2, 3: 4, 16: 16, 17: 32, 1000: 1024}
	for in, want := range cases {
		if got := nextPowOf2(in); got != want {
			t.Fatalf("nextPowOf2(%d) = %d, want %d", in, got, want)
		}
	}
}
