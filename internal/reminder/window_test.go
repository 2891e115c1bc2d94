package reminder

import (
	"testing"
	"time"

	"famplan/internal/model"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(time.UTC, 15, []int{5, 10, 15, 30, 60}, 15)
}

func TestDueForLeadInclusiveBounds(t *testing.T) {
	t.Parallel()
	e := testEvaluator()

	tests := []struct {
		name string
		diff int
		lead int
		want bool
	}{
		{name: "exactly at lead", diff: 10, lead: 10, want: true},
		{name: "one before lead", diff: 9, lead: 10, want: false},
		{name: "upper bound", diff: 25, lead: 10, want: true},
		{name: "one past upper bound", diff: 26, lead: 10, want: false},
		{name: "inside window", diff: 17, lead: 10, want: true},
		{name: "past due", diff: -1, lead: 10, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := e.DueForLead(tt.diff, tt.lead); got != tt.want {
				t.Fatalf("DueForLead(%d, %d) = %v, want %v", tt.diff, tt.lead, got, tt.want)
			}
		})
	}
}

func TestWithinHorizon(t *testing.T) {
	t.Parallel()
	e := testEvaluator()

	// max lead 60 + forward 15
	if e.Horizon() != 75 {
		t.Fatalf("Horizon() = %d, want 75", e.Horizon())
	}
	if e.WithinHorizon(-1) {
		t.Fatal("past-due tasks must be outside the horizon")
	}
	if !e.WithinHorizon(0) {
		t.Fatal("a task starting now is inside the horizon")
	}
	if !e.WithinHorizon(75) {
		t.Fatal("horizon bound is inclusive")
	}
	if e.WithinHorizon(76) {
		t.Fatal("beyond the horizon must be excluded")
	}
}

func TestDiffMinutesFloors(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 2, 24, 13, 50, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		want  int
	}{
		{name: "exact", start: now.Add(10 * time.Minute), want: 10},
		{name: "partial minute floors down", start: now.Add(9*time.Minute + 30*time.Second), want: 9},
		{name: "seconds away counts as zero", start: now.Add(30 * time.Second), want: 0},
		{name: "just past is negative", start: now.Add(-time.Second), want: -1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := DiffMinutes(tt.start, now); got != tt.want {
				t.Fatalf("DiffMinutes = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStartAtUsesLocation(t *testing.T) {
	t.Parallel()
	e := testEvaluator()

	task := model.Task{Date: "2026-02-24", Clock: "14:00"}
	start, err := e.StartAt(task)
	if err != nil {
		t.Fatalf("StartAt error: %v", err)
	}
	want := time.Date(2026, 2, 24, 14, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("StartAt = %v, want %v", start, want)
	}

	if _, err := e.StartAt(model.Task{Date: "2026-13-01", Clock: "14:00"}); err == nil {
		t.Fatal("expected error for invalid date")
	}
	if _, err := e.StartAt(model.Task{Date: "2026-02-24", Clock: "24:00"}); err == nil {
		t.Fatal("expected error for invalid time")
	}
}

func TestCoerceLead(t *testing.T) {
	t.Parallel()
	e := testEvaluator()

	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: 15},
		{in: -5, want: 15},
		{in: 10, want: 10},
		{in: 12, want: 10},
		{in: 14, want: 15},
		{in: 45, want: 30},
		{in: 500, want: 60},
	}
	for _, tt := range tests {
		if got := e.CoerceLead(tt.in); got != tt.want {
			t.Fatalf("CoerceLead(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
