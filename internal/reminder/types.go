package reminder

import (
	"context"
	"time"

	"famplan/internal/model"
	"famplan/internal/push"
)

// SkipReason labels why a task or a (task, subscription) pair produced no
// send during a sweep. Reasons are data, not errors.
type SkipReason string

const (
	SkipCompleted         SkipReason = "completed"
	SkipAlreadyNotified   SkipReason = "already-notified"
	SkipDisabled          SkipReason = "notifications-disabled"
	SkipInvalidDate       SkipReason = "invalid-date"
	SkipInvalidTime       SkipReason = "invalid-time"
	SkipNoAudience        SkipReason = "no-audience"
	SkipOutsideWindow     SkipReason = "outside-window"
	SkipOffsetNotDue      SkipReason = "offset-not-due"
	SkipAlreadyDispatched SkipReason = "already-dispatched"
	SkipDeliveryFailed    SkipReason = "delivery-failed"
	SkipInternalError     SkipReason = "internal-error"
)

// Summary is the terminal output of one sweep.
type Summary struct {
	OK         bool               `json:"ok"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Scanned    int                `json:"scanned"`
	Sent       int                `json:"sent"`
	Skipped    map[SkipReason]int `json:"skipped_by_reason,omitempty"`
}

func (s *Summary) skip(r SkipReason) {
	if s.Skipped == nil {
		s.Skipped = map[SkipReason]int{}
	}
	s.Skipped[r]++
}

// TaskSource is the task persistence the sweep reads and marks.
type TaskSource interface {
	ListRemindableTasks(ctx context.Context) ([]model.Task, error)
	MarkNotified(ctx context.Context, id string) error
}

// SubscriptionSource is the subscription persistence; Delete implements
// the self-healing unsubscribe on permanently-gone endpoints.
type SubscriptionSource interface {
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// DispatchLedger is the durable idempotency store. RecordDispatch must
// treat a duplicate key as a silent no-op.
type DispatchLedger interface {
	DispatchExists(ctx context.Context, key string) (bool, error)
	RecordDispatch(ctx context.Context, key, taskID string, sentAt time.Time) error
}

// Transport sends one payload to one endpoint.
type Transport interface {
	Send(ctx context.Context, sub model.Subscription, p push.Payload) (push.Outcome, error)
}
