// Package workout implements the state machine for one in-progress
// guided workout.
//
// A Session walks a plan day step by step (exercises) and sub-step by
// sub-step (sets), alternating between the active-step and resting phases
// until it reaches the terminal finished phase:
//
//	active-step --EnterRest--> resting --AdvanceSubStep--> active-step
//	                           resting --AdvanceStep-----> active-step
//	                           resting --EndRest---------> active-step
//	any non-finished --Finish--> finished
//
// Completed sets are appended to CompletedItems and never removed while the
// session lives. Pause and Resume are orthogonal to the phase.
//
// Nothing in this package performs I/O. Every operation takes the current
// wall-clock time explicitly so callers (and tests) own the clock, and
// persistence and ownership lookups belong to the tracker package.
//
// Session.Record applies the driving policy after a completed set: rest,
// move to the next exercise, or finish. A step change and the rest that
// follows it are applied together so no half-advanced session is ever
// observable or persisted.
package workout
