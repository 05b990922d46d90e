package shardmap

import "errors"

// ErrCapacityExceeded is returned when a fixed-capacity table cannot
// accommodate a new distinct key within its probe bound. FixedMap never
// resizes, so the error is final there; LockedMap and RcuMap return it only
// once a shard's table has reached the limit set with WithMaxCapacity.
//
// Absence of a key is not an error: lookups and removals report it through
// their boolean result.
var ErrCapacityExceeded = errors.New("shardmap: capacity exceeded")
