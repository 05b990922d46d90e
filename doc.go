// Package shardmap provides three concurrent key/value map variants that
// share one hashed key space but trade consistency against performance in
// different ways:
//
//   - FixedMap: a single fixed-capacity open-addressed table with no
//     internal synchronization and no allocation after construction.
//   - LockedMap: a sharded map with one reader/writer lock per shard and
//     per-shard growth under the exclusive lock.
//   - RcuMap: a sharded read-copy-update map whose readers never block and
//     never take a lock; writers publish immutable table snapshots via
//     compare-and-swap, and superseded snapshots are reclaimed through
//     reference counting once the last reader releases them.
//
// The variants deliberately do not share a runtime-polymorphic interface:
// blocking vs. non-blocking reads and fixed vs. growable capacity are part
// of each type's contract, not implementation details to hide.
package shardmap
