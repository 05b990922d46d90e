package shardmap

import (
	"fmt"
	"math/rand"
	"testing"
)

// BenchmarkLockedMap_Get benchmarks read-only operations
func BenchmarkLockedMap_Get(b *testing.B) {
	sizes := []int{100, 10000, 100000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			m := NewLockedMap[int, int]()
			for i := 0; i < size; i++ {
				m.Insert(i, i*2)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Get(rand.Intn(size))
				}
			})
		})
	}
}

// BenchmarkRcuMap_Get benchmarks read-only operations
func BenchmarkRcuMap_Get(b *testing.B) {
	sizes := []int{100, 10000, 100000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			m := NewRcuMap[int, int]()
			for i := 0; i < size; i++ {
				m.Insert(i, i*2)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Get(rand.Intn(size))
				}
			})
		})
	}
}

func BenchmarkFixedMap_Get(b *testing.B) {
	const size = 10000
	m := NewFixedMap[int, int](size * 2)
	for i := 0; i < size; i++ {
		m.Insert(i, i*2)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Get(i % size)
	}
}

// BenchmarkLockedMap_Insert benchmarks write operations over a fixed key set
func BenchmarkLockedMap_Insert(b *testing.B) {
	const size = 10000
	m := NewLockedMap[int, int]()
	for i := 0; i < size; i++ {
		m.Insert(i, i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := rand.Intn(size)
			m.Insert(key, key)
		}
	})
}

// BenchmarkRcuMap_Insert benchmarks write operations over a fixed key set
func BenchmarkRcuMap_Insert(b *testing.B) {
	const size = 10000
	m := NewRcuMap[int, int]()
	for i := 0; i < size; i++ {
		m.Insert(i, i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := rand.Intn(size)
			m.Insert(key, key)
		}
	})
}

// BenchmarkMixedWorkload compares the sharded variants under mixed
// read/write ratios
func BenchmarkMixedWorkload(b *testing.B) {
	readRatios := []int{50, 95} // Percentage of reads
	const size = 10000

	for _, readRatio := range readRatios {
		b.Run(fmt.Sprintf("locked/read_%d_percent", readRatio), func(b *testing.B) {
			m := NewLockedMap[int, int]()
			for i := 0; i < size; i++ {
				m.Insert(i, i)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					key := rand.Intn(size)
					if rand.Intn(100) < readRatio {
						m.Get(key)
					} else {
						m.Insert(key, key)
					}
				}
			})
		})
		b.Run(fmt.Sprintf("rcu/read_%d_percent", readRatio), func(b *testing.B) {
			m := NewRcuMap[int, int]()
			for i := 0; i < size; i++ {
				m.Insert(i, i)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					key := rand.Intn(size)
					if rand.Intn(100) < readRatio {
						m.Get(key)
					} else {
						m.Insert(key, key)
					}
				}
			})
		})
	}
}

// BenchmarkRcuMap_HighContention tests snapshot churn with few hot keys
func BenchmarkRcuMap_HighContention(b *testing.B) {
	contentionLevels := []int{1, 100}

	for _, hotKeys := range contentionLevels {
		b.Run(fmt.Sprintf("hot_keys_%d", hotKeys), func(b *testing.B) {
			m := NewRcuMap[int, int]()
			for i := 0; i < hotKeys; i++ {
				m.Insert(i, i)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					key := rand.Intn(hotKeys)
					if rand.Intn(2) == 0 {
						m.Get(key)
					} else {
						m.Insert(key, key)
					}
				}
			})
		})
	}
}
