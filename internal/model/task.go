package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Task is one scheduled activity occurrence.
//
// Date and Clock are kept exactly as entered (recipient-local calendar
// date and wall-clock time); StartAt resolves them to an absolute instant
// in a single configured location. All reminder math happens on instants.
type Task struct {
	ID         string `db:"id" json:"id"`
	Title      string `db:"title" json:"title"`
	Date       string `db:"date" json:"date"`   // YYYY-MM-DD
	Clock      string `db:"clock" json:"time"`  // HH:MM
	Recipients string `db:"recipients" json:"recipients"`
	Category   string `db:"category" json:"category,omitempty"`

	Recurring  bool    `db:"recurring" json:"recurring"`
	TemplateID *string `db:"template_id" json:"template_id,omitempty"`

	Completed        bool `db:"completed" json:"completed"`
	Notified         bool `db:"notified" json:"notified"`
	SendNotification bool `db:"send_notification" json:"send_notification"`
	NeedsAck         bool `db:"needs_ack" json:"needs_ack"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// ParseClock validates an HH:MM wall-clock time and returns hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid time %q: hour out of range", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}
	return h, m, nil
}

// StartAt combines Date and Clock into an absolute instant in loc.
func (t Task) StartAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := ParseDate(t.Date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(t.Clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc), nil
}

// Remindable reports whether the task is eligible for reminders at all.
// Completion and the opt-out flag are authoritative here regardless of
// what the store-level query already filtered.
func (t Task) Remindable() bool {
	return !t.Completed && t.SendNotification
}
