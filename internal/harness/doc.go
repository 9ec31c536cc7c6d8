// Package harness replays workout scenarios against the tracker and the
// sync engine and compares the resulting trace with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: offline_session_then_sync
//	description: "What this scenario validates"
//	plan: ../plans/push.yaml
//	day: push
//	user: user-1
//	flow:
//	  - op: offline
//	  - op: start
//	  - op: set
//	    args: { weight: 100, reps: 5 }
//	    expect: { phase: resting, transition: rest }
//	  - op: online
//	  - op: sync
//	    expect: { synced: 2 }
//	assertions:
//	  - type: request_order
//	    requests: ["POST /api/sessions", "PUT /api/sessions/id-0001"]
//	  - type: queue_length
//	    count: 0
//
// # Operations
//
//   - start, set, tick, skip_rest, pause, resume, finish, abandon, weight:
//     tracker operations for the scenario user
//   - advance: move the manual clock forward by args.seconds
//   - online, offline: flip connectivity
//   - respond: answer later requests with args.status, or with a network
//     failure when args.fail is true
//   - sync, drain: run one sync cycle with or without the pull
//   - requeue: move dead letter args.id back onto the queue
//
// # Assertion Types
//
//   - request_order: the listed requests appear in this relative order
//   - request_count: a request appears exactly count times
//   - queue_length: pending actions left after the flow
//   - dead_letters: dead-lettered actions left after the flow
//   - session_phase: phase of the active session, "none" when there is none
//   - record_count: locally stored records of a collection
//
// # Deterministic Testing
//
// Every run uses a fresh database, a manual clock, sequential ids for
// sessions ("id-0001") and actions ("action-0001"), and a recording
// transport. Traces are therefore identical across runs and can be
// compared byte for byte with goldie.
package harness
