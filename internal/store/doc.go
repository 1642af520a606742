// Package store provides SQLite-backed persistence for spin-up snapshots and
// the fired-disturbance log.
//
// Snapshots are pool values in collection order, little-endian float64,
// zstd-compressed, keyed by the cache-key fingerprint. A Store satisfies
// spinup.SnapshotStore, so a cache miss in one process can be served by a
// snapshot saved by an earlier run.
//
// The disturbance log is append-only. Rows are ordered by (run_id, seq);
// seq comes from the run's logical sequence, never from wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
