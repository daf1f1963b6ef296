// Package memory provides the in-memory keyspace for keymesh.
//
// The keyspace is a key to entry map guarded by a single mutex: every
// operation, single or multi key, executes at one serialization point, so
// readers never observe a torn write or a partially applied MSet. Entries
// carry an optional absolute expiry deadline taken from the monotonic
// clock.
//
// Expiry uses two cooperating mechanisms:
//
//   - lazy: every operation that touches a key checks its deadline first
//     and evicts on the fly, so an expired key is unobservable from the
//     moment its deadline passes;
//   - eventual: a Sweeper samples bounded batches at a fixed cadence, so
//     keys no client revisits still release memory.
package memory
