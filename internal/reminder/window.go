package reminder

import (
	"math"
	"time"

	"famplan/internal/model"
)

// Evaluator computes, per task and per subscription, whether a reminder
// is due right now.
//
// The coarse horizon (max lead + forward window) bounds total scan cost;
// the fine per-subscription window [L, L+forward] bridges the gap between
// periodic sweep invocations so no due instant can fall between two runs.
type Evaluator struct {
	loc            *time.Location
	forwardMinutes int
	leadChoices    []int
	defaultLead    int
}

func NewEvaluator(loc *time.Location, forwardMinutes int, leadChoices []int, defaultLead int) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	if forwardMinutes <= 0 {
		forwardMinutes = 15
	}
	if len(leadChoices) == 0 {
		leadChoices = []int{defaultLead}
	}
	return &Evaluator{
		loc:            loc,
		forwardMinutes: forwardMinutes,
		leadChoices:    leadChoices,
		defaultLead:    defaultLead,
	}
}

// StartAt resolves a task's scheduled start to an absolute instant in the
// evaluator's location.
func (e *Evaluator) StartAt(t model.Task) (time.Time, error) {
	return t.StartAt(e.loc)
}

// DiffMinutes is the whole-minute distance from now to start, floored so
// a start 30 seconds away counts as 0, and anything past due is negative.
func DiffMinutes(start, now time.Time) int {
	return int(math.Floor(start.Sub(now).Minutes()))
}

// Horizon is the forward admissibility bound in minutes: far enough to
// cover the largest lead preference plus the sweep tolerance.
func (e *Evaluator) Horizon() int {
	maxLead := e.defaultLead
	for _, l := range e.leadChoices {
		if l > maxLead {
			maxLead = l
		}
	}
	return maxLead + e.forwardMinutes
}

// WithinHorizon is the coarse per-task filter: not past due and not
// further out than any subscription could want.
func (e *Evaluator) WithinHorizon(diffMinutes int) bool {
	return diffMinutes >= 0 && diffMinutes <= e.Horizon()
}

// DueForLead is the fine per-subscription window, inclusive on both ends.
func (e *Evaluator) DueForLead(diffMinutes, leadMinutes int) bool {
	return diffMinutes >= leadMinutes && diffMinutes <= leadMinutes+e.forwardMinutes
}

// CoerceLead normalizes a subscription's preference to the allowed
// enumeration before any window math.
func (e *Evaluator) CoerceLead(v int) int {
	return model.CoerceLead(v, e.leadChoices, e.defaultLead)
}
