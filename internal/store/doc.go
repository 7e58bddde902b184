// Package store provides SQLite-backed persistence for promptforge.
//
// The engine keeps everything in memory; the store is the collaborator
// that survives between CLI invocations:
//   - Overrides: locked rule values per bundle
//   - Settings: the selected bundle and the active seed
//   - Generations: an append-only history of produced prompts
//
// # Ordering
//
// History is ordered by seq, a monotonically increasing INTEGER assigned
// inside the insert transaction. created_at is informational only.
// Ties cannot occur (seq is UNIQUE), but queries still add
// id COLLATE BINARY so results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Bundle hashes stored with each generation come from ir.BundleHash, so a
// history entry can be traced to the bundle revision that produced it.
package store
