package model

import (
	"fmt"
	"time"
)

// DispatchRecord is a durable idempotency marker: one row per delivered
// (task, scheduled start, lead time, endpoint) combination. Records are
// written only after a successful delivery and never updated.
type DispatchRecord struct {
	Key    string    `db:"key" json:"key"`
	TaskID string    `db:"task_id" json:"task_id"`
	SentAt time.Time `db:"sent_at" json:"sent_at"`
}

// DispatchKey builds the idempotency key. The scheduled start is part of
// the key so a rescheduled task becomes eligible again, the lead time so
// subscriptions with different preferences stay independent, and the
// endpoint so recipients of the same task don't share a key.
func DispatchKey(taskID string, start time.Time, leadMinutes int, endpoint string) string {
	return fmt.Sprintf("%s|%s|%d|%s", taskID, start.UTC().Format(time.RFC3339), leadMinutes, endpoint)
}
