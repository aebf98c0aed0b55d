package domain

import "time"

// ChatSettings holds per-chat moderation settings. Chats without stored
// overrides fall back to the configured defaults.
type ChatSettings struct {
	ChatID              string
	MuteDuration        time.Duration
	VerificationTimeout time.Duration
	NotifyAdmins        bool
}
