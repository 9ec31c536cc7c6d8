// Package connectivity tracks whether the server is reachable and what
// the sync machinery is doing.
//
// A Provider answers "are we online?". The Observer keeps the online flag
// together with sync bookkeeping (last attempt, last success, running
// flag, pending count), reconciles on every offline to online transition,
// and fans status changes out to subscribers. The Scheduler polls and
// drains periodically and on demand.
package connectivity
