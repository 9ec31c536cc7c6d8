// Package store provides the SQLite-backed local store for liftsync.
//
// The store holds named record collections:
//   - sessions: the active workout session per user (state as JSON)
//   - pending_actions: queued mutations awaiting the server
//   - dead_letters: actions that exhausted their retries
//   - cache_entries: response bodies keyed by endpoint with an expiry
//   - records: canonical rows pulled from the server (exercises, splits,
//     personal records, weight entries)
//
// The store is pure persistence. Ordering, retry and expiry policy live in
// the syncq and cache packages, which depend on the store through small
// interfaces.
//
// # Critical Patterns
//
// One active session per user:
//   - partial UNIQUE index on sessions(user_id) WHERE phase != 'finished'
//   - SaveSession maps the constraint violation to ErrActiveSessionExists
//
// Move, don't copy:
//   - DeadLetter and RequeueDeadLetter insert and delete in one
//     transaction so an action is never in both collections
//
// Deterministic reads:
//   - ListActions orders by enqueued_at, id
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// The schema is versioned with PRAGMA user_version and migrated on Open.
package store
