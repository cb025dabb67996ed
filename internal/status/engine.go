// Package status derives read/unread and last-sender facts from a conversation's messages.
package status

import (
	"time"

	"Flort/internal/model"
	"Flort/internal/timefmt"
)

// Result is the derived part of a ConversationStatus
type Result struct {
	HasUnreadMessages bool
	LastMessageFrom   *model.Sender
	// Unparseable counts messages whose time could not be parsed; they were ordered as oldest
	Unparseable int
}

// DetermineStatus computes the status of a message list.
//
// LastMessageFrom is the sender of the chronologically latest message. Messages with an unparseable
// time sort before every parsed one and ties keep input order.
// HasUnreadMessages only looks at bot messages; user and admin messages never set it.
func DetermineStatus(messages []model.Message) Result {
	if len(messages) == 0 {
		return Result{}
	}

	var res Result
	// order independent, scanned on the original list
	for _, m := range messages {
		if m.Sender == model.SenderBot && !m.Read {
			res.HasUnreadMessages = true
			break
		}
	}

	order, errs := timefmt.SortStable(len(messages), func(i int) string {
		return messages[i].Time
	})
	last := messages[order[len(order)-1]].Sender
	res.LastMessageFrom = &last
	res.Unparseable = len(errs)
	return res
}

// SortMessages returns a copy of messages in ascending time order
func SortMessages(messages []model.Message) []model.Message {
	order, _ := timefmt.SortStable(len(messages), func(i int) string {
		return messages[i].Time
	})
	out := make([]model.Message, len(order))
	for i, idx := range order {
		out[i] = messages[idx]
	}
	return out
}

// MarkAsRead returns a new list where every message from filter is read.
// A nil filter marks every message. The input slice is never modified.
func MarkAsRead(messages []model.Message, filter *model.Sender) []model.Message {
	out := make([]model.Message, len(messages))
	for i, m := range messages {
		if filter == nil || m.Sender == *filter {
			m.Read = true
		}
		out[i] = m
	}
	return out
}

// Registry is an immutable snapshot of conversation statuses keyed by conversation id
type Registry struct {
	entries map[string]model.ConversationStatus
}

func NewRegistry() Registry {
	return Registry{}
}

// Get returns the status of id and whether it was ever computed
func (r Registry) Get(id string) (model.ConversationStatus, bool) {
	st, ok := r.entries[id]
	return st, ok
}

func (r Registry) Len() int {
	return len(r.entries)
}

// Range calls fn for every entry until fn returns false
func (r Registry) Range(fn func(id string, st model.ConversationStatus) bool) {
	for id, st := range r.entries {
		if !fn(id, st) {
			return
		}
	}
}

// UpdateStatus recomputes the status of (userID, botID) and returns a new registry.
// reg itself is left untouched, so holders of the previous snapshot observe no change.
func UpdateStatus(reg Registry, userID, botID string, messages []model.Message, now time.Time) Registry {
	return reg.with(model.ConversationID(userID, botID), DetermineStatus(messages).Status(now))
}

// Status turns a Result into the registry entry stamped at now
func (r Result) Status(now time.Time) model.ConversationStatus {
	return model.ConversationStatus{
		LastUpdated:       now,
		HasUnreadMessages: r.HasUnreadMessages,
		LastMessageFrom:   r.LastMessageFrom,
	}
}

func (r Registry) with(id string, st model.ConversationStatus) Registry {
	entries := make(map[string]model.ConversationStatus, len(r.entries)+1)
	for k, v := range r.entries {
		entries[k] = v
	}
	entries[id] = st
	return Registry{entries: entries}
}
