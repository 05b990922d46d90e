//go:build shardmap_cacheline_128

package shardmap

// CacheLineSize fixed at 128 bytes via the shardmap_cacheline_128 build tag.
const CacheLineSize = 128
