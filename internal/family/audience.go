package family

import (
	"strings"

	"famplan/internal/model"
)

// Decode resolves a task's raw recipient encoding to the set of known
// people it addresses, in first-seen order and deduplicated.
//
// Encodings are usually underscore-joined names ("amit_alin"); legacy
// rows sometimes carry free-form text, for which substring matching of
// known names is the fallback. Malformed or empty encodings resolve to
// an empty audience, never an error.
func (r *Roster) Decode(encoding string) []string {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	if enc == "" {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	appendName := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	for _, part := range strings.Split(enc, "_") {
		part = strings.TrimSpace(part)
		if r.Known(part) {
			appendName(part)
		}
	}
	if len(out) > 0 {
		return out
	}

	// Fallback: scan for known names as substrings of the whole encoding.
	for _, n := range r.names {
		if strings.Contains(enc, n) {
			appendName(n)
		}
	}
	return out
}

// Includes decides whether sub is in the audience of a task.
//
//   - No owner recorded: wildcard, receives every task (back-compatible
//     default for unclassified installs).
//   - Child owner: receives the task iff it is literally addressed.
//   - Parent owner: receives it with receive_all set, or when the watch
//     list intersects the audience. An empty watch list follows the
//     roster's configured default.
//   - Unrecognized owners receive nothing.
func (r *Roster) Includes(sub model.Subscription, audience []string) bool {
	owner := strings.ToLower(strings.TrimSpace(sub.Owner))
	if owner == "" {
		return true
	}

	switch r.roles[owner] {
	case RoleChild:
		return contains(audience, owner)
	case RoleParent:
		if sub.ReceiveAll {
			return true
		}
		if len(sub.Watch) == 0 {
			return r.parentEmptyWatchReceivesAll
		}
		for _, w := range sub.Watch {
			if contains(audience, strings.ToLower(strings.TrimSpace(w))) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
