package chat

import "time"

// ModifyWindow bounds sender edits and participant deletes.
const ModifyWindow = 10 * time.Minute

// CanEdit holds only for the original sender within ModifyWindow of creation.
func CanEdit(m *Message, requesterID string, now time.Time) bool {
	if m == nil || m.SenderID == "" || m.SenderID != requesterID {
		return false
	}
	return now.Sub(m.CreatedAt) <= ModifyWindow
}

// CanDelete holds for the original sender at any time, and for any participant
// within ModifyWindow of creation.
func CanDelete(c *Conversation, m *Message, requesterID string, now time.Time) bool {
	if c == nil || m == nil || requesterID == "" {
		return false
	}
	if m.SenderID == requesterID {
		return true
	}
	return c.IsParticipant(requesterID) && now.Sub(m.CreatedAt) <= ModifyWindow
}

// ToggleReaction computes the next reaction of one identity on one message.
// Requesting the current symbol clears it; any other symbol replaces it.
func ToggleReaction(current, requested string) (next string, set bool) {
	if current != "" && current == requested {
		return "", false
	}
	return requested, true
}
