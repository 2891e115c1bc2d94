package reminder

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"famplan/internal/family"
	"famplan/internal/model"
	"famplan/internal/push"
	logx "famplan/pkg/logx"
)

// Config tunes one orchestrator.
type Config struct {
	// NotifiedPrefilter skips tasks whose notified flag is set before any
	// window math. Cheap, but the first delivered recipient silences the
	// task for everyone; the dispatch ledger stays the correctness gate
	// regardless.
	NotifiedPrefilter bool
}

// Orchestrator runs one sweep per invocation: bulk-load, evaluate each
// task independently, dispatch sequentially, summarize.
type Orchestrator struct {
	tasks     TaskSource
	subs      SubscriptionSource
	ledger    DispatchLedger
	transport Transport
	roster    *family.Roster
	eval      *Evaluator
	cfg       Config
	log       logx.Logger

	// now is swappable for tests.
	now func() time.Time

	mu   sync.Mutex
	last *Summary
}

func NewOrchestrator(
	tasks TaskSource,
	subs SubscriptionSource,
	ledger DispatchLedger,
	transport Transport,
	roster *family.Roster,
	eval *Evaluator,
	cfg Config,
	log logx.Logger,
) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{
		tasks:     tasks,
		subs:      subs,
		ledger:    ledger,
		transport: transport,
		roster:    roster,
		eval:      eval,
		cfg:       cfg,
		log:       log.With(logx.String("comp", "reminder")),
		now:       time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (o *Orchestrator) SetNow(now func() time.Time) { o.now = now }

// Last returns the most recent sweep summary, or nil before the first.
func (o *Orchestrator) Last() *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return nil
	}
	cp := *o.last
	return &cp
}

// Sweep runs one pass. Only infrastructure failures (store unreachable)
// return an error; per-task problems are counted, never propagated.
func (o *Orchestrator) Sweep(ctx context.Context) (Summary, error) {
	sum := Summary{StartedAt: o.now().UTC()}

	subs, err := o.subs.ListSubscriptions(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading subscriptions: %w", err)
	}
	tasks, err := o.tasks.ListRemindableTasks(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading tasks: %w", err)
	}

	now := o.now()
	sum.Scanned = len(tasks)
	for _, t := range tasks {
		o.evaluateTask(ctx, t, subs, now, &sum)
	}

	sum.OK = true
	sum.FinishedAt = o.now().UTC()

	o.mu.Lock()
	o.last = &sum
	o.mu.Unlock()

	o.log.Info("sweep done",
		logx.Int("scanned", sum.Scanned),
		logx.Int("sent", sum.Sent),
		logx.Duration("took", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, nil
}

// evaluateTask handles one task. Panics are contained here so a single
// malformed row cannot abort the sweep.
func (o *Orchestrator) evaluateTask(ctx context.Context, t model.Task, subs []model.Subscription, now time.Time, sum *Summary) {
	defer func() {
		if r := recover(); r != nil {
			sum.skip(SkipInternalError)
			o.log.Error("panic evaluating task",
				logx.String("task", t.ID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()

	// Eligibility is re-checked in-process; the store filter is only an
	// optimization.
	if t.Completed {
		sum.skip(SkipCompleted)
		return
	}
	if !t.SendNotification {
		sum.skip(SkipDisabled)
		return
	}
	if o.cfg.NotifiedPrefilter && t.Notified {
		sum.skip(SkipAlreadyNotified)
		return
	}

	if _, err := model.ParseDate(t.Date); err != nil {
		sum.skip(SkipInvalidDate)
		return
	}
	start, err := o.eval.StartAt(t)
	if err != nil {
		sum.skip(SkipInvalidTime)
		return
	}

	audience := o.roster.Decode(t.Recipients)
	if len(audience) == 0 {
		sum.skip(SkipNoAudience)
		return
	}

	diff := DiffMinutes(start, now)
	if !o.eval.WithinHorizon(diff) {
		sum.skip(SkipOutsideWindow)
		return
	}

	delivered := false
	for _, sub := range subs {
		if !o.roster.Includes(sub, audience) {
			continue
		}
		lead := o.eval.CoerceLead(sub.LeadMinutes)
		if !o.eval.DueForLead(diff, lead) {
			sum.skip(SkipOffsetNotDue)
			continue
		}

		key := model.DispatchKey(t.ID, start, lead, sub.Endpoint)
		if seen, err := o.ledger.DispatchExists(ctx, key); err != nil {
			sum.skip(SkipInternalError)
			o.log.Warn("dispatch lookup failed", logx.String("task", t.ID), logx.Err(err))
			continue
		} else if seen {
			sum.skip(SkipAlreadyDispatched)
			continue
		}

		if o.dispatch(ctx, t, sub, start, lead, key, sum) {
			delivered = true
		}
	}

	if delivered && !t.Notified {
		if err := o.tasks.MarkNotified(ctx, t.ID); err != nil {
			o.log.Warn("marking task notified failed", logx.String("task", t.ID), logx.Err(err))
		}
	}
}

// dispatch performs one delivery attempt and, on success, records the
// dispatch key. A failed delivery records nothing so it stays eligible
// on the next sweep.
func (o *Orchestrator) dispatch(ctx context.Context, t model.Task, sub model.Subscription, start time.Time, lead int, key string, sum *Summary) bool {
	p := push.Payload{
		Title:   t.Title,
		Body:    fmt.Sprintf("%s at %s", t.Title, t.Clock),
		Tag:     t.ID,
		TaskID:  t.ID,
		StartAt: start,
	}

	outcome, err := o.transport.Send(ctx, sub, p)
	switch outcome {
	case push.OutcomeDelivered:
		if rerr := o.ledger.RecordDispatch(ctx, key, t.ID, o.now()); rerr != nil {
			// The message went out; a failed marker means a potential
			// duplicate next sweep, which is the safe direction.
			o.log.Warn("recording dispatch failed", logx.String("task", t.ID), logx.Err(rerr))
		}
		sum.Sent++
		o.log.Debug("reminder sent",
			logx.String("task", t.ID),
			logx.String("owner", sub.Owner),
			logx.Int("lead_min", lead),
		)
		return true

	case push.OutcomeGone:
		// Self-healing unsubscribe: drop the dead endpoint so future
		// sweeps stop retrying it.
		if derr := o.subs.DeleteSubscription(ctx, sub.Endpoint); derr != nil {
			o.log.Warn("removing dead endpoint failed", logx.Err(derr))
		} else {
			o.log.Info("endpoint gone; subscription removed", logx.String("owner", sub.Owner))
		}
		sum.skip(SkipDeliveryFailed)
		return false

	case push.OutcomeUnconfigured:
		sum.skip(SkipDeliveryFailed)
		o.log.Warn("push transport not configured", logx.String("task", t.ID))
		return false

	default:
		sum.skip(SkipDeliveryFailed)
		o.log.Warn("delivery failed", logx.String("task", t.ID), logx.Err(err))
		return false
	}
}
