//go:build !shardmap_cacheline_64 && !shardmap_cacheline_128

package shardmap

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is used in structure padding to prevent false sharing
// between neighboring shards. It's automatically derived for the target
// architecture using the `golang.org/x/sys` package.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
