package model

import (
	"strings"
	"time"
)

// Subscription is one registered push endpoint with recipient metadata.
// The endpoint is the only stable identity; registrations upsert on it.
type Subscription struct {
	Endpoint string `db:"endpoint" json:"endpoint"`
	P256dh   string `db:"p256dh" json:"p256dh"`
	Auth     string `db:"auth" json:"auth"`

	// Owner is the recognized person this install belongs to, or empty
	// for anonymous installs (which receive everything).
	Owner string `db:"owner" json:"owner,omitempty"`

	// ReceiveAll and Watch only apply to parent owners.
	ReceiveAll bool     `db:"receive_all" json:"receive_all"`
	Watch      []string `db:"-" json:"watch,omitempty"`

	LeadMinutes int `db:"lead_minutes" json:"lead_minutes"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CoerceLead snaps v to the nearest allowed lead-time choice; values that
// are zero or missing fall back to def. Ties go to the smaller choice.
func CoerceLead(v int, choices []int, def int) int {
	if v <= 0 || len(choices) == 0 {
		return def
	}
	best := choices[0]
	bestDist := abs(v - best)
	for _, c := range choices[1:] {
		d := abs(v - c)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// JoinWatch flattens a watch list for storage ("amit,alin").
func JoinWatch(watch []string) string {
	out := make([]string, 0, len(watch))
	for _, w := range watch {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, ",")
}

// SplitWatch parses a stored watch list back into names.
func SplitWatch(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, w := range strings.Split(s, ",") {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
