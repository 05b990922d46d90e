package shardmap

import (
	"math/bits"
	"runtime"
)

// maxBackoffSpins bounds the exponential spin phase of delay; past it the
// goroutine yields instead of burning cycles.
const maxBackoffSpins = 10

// nextPowOf2 rounds v up to the nearest power of two. v <= 1 yields 1.
func nextPowOf2(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

// delay backs off a contended CAS retry loop: doubling spin counts keep
// latency low for short conflicts, then the goroutine yields so a stalled
// writer cannot monopolize its P.
func delay(spins *int) {
	if *spins < maxBackoffSpins {
		*spins++
		for i := 0; i < 1<<uint(*spins); i++ {
			spin()
		}
	} else {
		runtime.Gosched()
	}
}

//go:noinline
func spin() {}

// noCopy may be embedded into structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
type noCopy struct{}

// Lock is a no-op used by vet's copylocks checker.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
