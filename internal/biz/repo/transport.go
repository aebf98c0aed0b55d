package repo

import (
	"context"
	"time"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
)

// ChatTransport is the messaging-platform boundary.
// All calls are network I/O that may block or fail; failures are returned as
// values and never thrown into the core's control flow. Implementations live
// in platform adapters; the core only consumes this interface.
type ChatTransport interface {
	// DeleteMessage removes a message from a chat
	DeleteMessage(ctx context.Context, chatID, messageID string) error

	// RestrictUser removes a user's posting permission until the given time.
	// A zero time means indefinite.
	RestrictUser(ctx context.Context, chatID, userID string, until time.Time) error

	// LiftRestriction restores a user's posting permission
	LiftRestriction(ctx context.Context, chatID, userID string) error

	// RemoveUser kicks a user from the chat (without a permanent ban)
	RemoveUser(ctx context.Context, chatID, userID string) error

	// SendChallenge delivers the verification challenge carrying the token
	// and returns the platform id of the challenge message
	SendChallenge(ctx context.Context, chatID, userID, token string, timeout time.Duration) (string, error)

	// NotifyAdmins posts a moderation notice to the chat's admin surface
	NotifyAdmins(ctx context.Context, chatID, text string) error

	// SendText posts a plain message (command replies)
	SendText(ctx context.Context, chatID, text string) error

	// IsAdmin reports whether the user administers the chat
	IsAdmin(ctx context.Context, chatID, userID string) (bool, error)
}

// ViolationRepo persists per-user enforcement state and the append-only
// violation log
type ViolationRepo interface {
	// GetState gets the violation state for a chat/user pair, nil if absent
	GetState(ctx context.Context, chatID, userID string) (*domain.ViolationState, error)

	// SaveState saves violation state (create or update)
	SaveState(ctx context.Context, state *domain.ViolationState) error

	// Append appends one entry to the violation log
	Append(ctx context.Context, rec *domain.ViolationRecord) error

	// Recent lists the most recent violations for a chat
	Recent(ctx context.Context, chatID string, limit int) ([]*domain.ViolationRecord, error)

	// Stats summarizes the log; an empty chatID means global
	Stats(ctx context.Context, chatID string) (*domain.Stats, error)
}

// VerificationRepo persists pending new-member verifications
type VerificationRepo interface {
	// Get gets the pending record for a chat/user pair, nil if absent
	Get(ctx context.Context, chatID, userID string) (*domain.PendingVerification, error)

	// Put saves a pending record, replacing any existing one for the pair
	Put(ctx context.Context, rec *domain.PendingVerification) error

	// Delete removes a pending record; absent is not an error
	Delete(ctx context.Context, chatID, userID string) error

	// Expired lists records whose expiry has passed (backup sweep)
	Expired(ctx context.Context, now time.Time) ([]*domain.PendingVerification, error)

	// CountPending counts unexpired records across all chats
	CountPending(ctx context.Context) (int, error)
}

// SettingsRepo hands out per-chat settings with defaults applied
type SettingsRepo interface {
	// Get returns the chat's settings, falling back to defaults
	Get(ctx context.Context, chatID string) (*domain.ChatSettings, error)

	// SetMuteDuration stores a per-chat mute duration override
	SetMuteDuration(ctx context.Context, chatID string, d time.Duration) error
}
