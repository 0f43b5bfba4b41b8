package notifications

import "time"

// Notification is a single inbox entry. Title/Body carry the display text;
// MatchID/GroupID carry the structured context when the event relates to a
// match or a group.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	MatchID   string    `json:"matchId,omitempty"`
	GroupID   string    `json:"groupId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
