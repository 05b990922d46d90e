//go:build shardmap_cacheline_64

package shardmap

// CacheLineSize fixed at 64 bytes via the shardmap_cacheline_64 build tag.
const CacheLineSize = 64
