// Package syncq implements the durable action queue and the sync engine
// that drains it.
//
// Mutations produced offline (or whose direct call failed) are appended
// to the local store as model.PendingAction values by Queue.Enqueue.
// Engine.Drain replays them against the server:
//
//   - Actions are stable-sorted by (entity priority, enqueue time) and
//     dispatched one at a time.
//   - A 2xx response deletes the action. Any other outcome increments its
//     retry count; at model.MaxRetry the action moves to the dead-letter
//     collection.
//   - A cycle with retained failures ends with a *SyncError summary.
//
// Drain and PullThenDrain share one in-process lock. A call that finds
// the lock held returns Report{Skipped: true} immediately; the queued
// data is untouched and the next trigger picks it up.
package syncq
