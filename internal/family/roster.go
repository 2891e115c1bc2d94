// Package family resolves a task's raw recipient encoding against the
// closed roster of recognized people and decides which subscriptions are
// in a task's audience.
package family

import (
	"sort"
	"strings"
)

// Role is a person's category in the roster.
type Role int

const (
	RoleUnknown Role = iota
	RoleChild
	RoleParent
)

// Roster is the configured closed set of known identities. Names are
// matched case-insensitively; unrecognized names resolve to nothing.
type Roster struct {
	roles map[string]Role

	// names sorted by descending length so substring matching prefers
	// the longest (most specific) name first.
	names []string

	parentEmptyWatchReceivesAll bool
}

func NewRoster(children, parents []string, parentEmptyWatchReceivesAll bool) *Roster {
	r := &Roster{
		roles:                       make(map[string]Role, len(children)+len(parents)),
		parentEmptyWatchReceivesAll: parentEmptyWatchReceivesAll,
	}
	for _, n := range children {
		r.add(n, RoleChild)
	}
	for _, n := range parents {
		r.add(n, RoleParent)
	}
	sort.Slice(r.names, func(i, j int) bool {
		return len(r.names[i]) > len(r.names[j])
	})
	return r
}

func (r *Roster) add(name string, role Role) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	if _, ok := r.roles[key]; ok {
		return
	}
	r.roles[key] = role
	r.names = append(r.names, key)
}

// RoleOf returns the category of a name, or RoleUnknown.
func (r *Roster) RoleOf(name string) Role {
	return r.roles[strings.ToLower(strings.TrimSpace(name))]
}

// Known reports whether name is in the roster.
func (r *Roster) Known(name string) bool {
	return r.RoleOf(name) != RoleUnknown
}

// Children returns the child names in roster order of registration.
func (r *Roster) Children() []string {
	var out []string
	for _, n := range r.names {
		if r.roles[n] == RoleChild {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
