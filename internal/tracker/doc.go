// Package tracker runs the workout use cases.
//
// Every mutation follows the same order: load the caller's active session,
// check ownership, apply the state machine transition, persist the session
// locally, then mirror the new state to the server through the cache
// layer's mutation gateway. The local commit is authoritative: a mirror
// that cannot be delivered now is queued by the gateway, and a mirror the
// server rejects is logged without undoing the local change.
//
// Finishing a session aggregates it into a summary, hands the summary to
// the LogSink, records new personal bests, and removes the local session.
package tracker
