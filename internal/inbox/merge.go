// Package inbox assembles the inbox a user sees: messages delivered by the
// store merged with reminders derived locally from the user's transactions.
package inbox

import (
	"sort"

	"github.com/shinyyama/rental-backend/internal/model"
)

// Merge combines server messages and synthetic reminders into one list,
// newest first with ties ordered by id. A reminder whose id is already
// present among the server messages is dropped; server messages pass through
// unmodified. The result is rebuilt from scratch on every call.
func Merge(server, reminders []model.InboxMessage) []model.InboxMessage {
	out := make([]model.InboxMessage, 0, len(server)+len(reminders))
	seen := make(map[string]struct{}, len(server)+len(reminders))
	for _, list := range [][]model.InboxMessage{server, reminders} {
		for _, m := range list {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}
