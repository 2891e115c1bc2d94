// Package reminder is the sweep engine: on every trigger it decides
// which tasks are due soon for which subscribed recipients, sends at
// most one notification per (task, scheduled start, lead time, endpoint)
// combination, and never re-sends after a task is completed or a key has
// been recorded.
//
// Idempotency comes entirely from the durable dispatch key, not from
// locking: overlapping sweeps race on a conflict-safe insert, and a
// truncated sweep leaves already-processed tasks correctly marked with
// the rest eligible on the next run.
package reminder
