package domain

import "time"

// MessageEvent is an inbound group message delivered by the transport
type MessageEvent struct {
	ChatID    string
	UserID    string
	MessageID string
	Text      string
	Timestamp time.Time
}

// JoinEvent is delivered when a user enters a chat
type JoinEvent struct {
	ChatID    string
	UserID    string
	Timestamp time.Time
}

// ChallengeResponseEvent is delivered when a user answers a verification
// challenge (e.g. presses the callback button)
type ChallengeResponseEvent struct {
	ChatID    string
	UserID    string
	Token     string
	Timestamp time.Time
}

// Key returns the per-user serialization key for a chat/user pair
func Key(chatID, userID string) string {
	return chatID + "/" + userID
}
