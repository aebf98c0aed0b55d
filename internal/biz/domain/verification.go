package domain

import "time"

// VerificationState is the lifecycle state of a new-member verification
type VerificationState int

const (
	// VerificationPending means the member has not answered the challenge yet
	VerificationPending VerificationState = iota
	// VerificationVerified is terminal: the challenge was answered in time
	VerificationVerified
	// VerificationExpired is terminal: the timeout fired first
	VerificationExpired
)

func (s VerificationState) String() string {
	switch s {
	case VerificationVerified:
		return "verified"
	case VerificationExpired:
		return "expired"
	default:
		return "pending"
	}
}

// PendingVerification is the per (chat, user) record of an unanswered
// challenge. At most one exists per (chat, user); a second join replaces it.
type PendingVerification struct {
	ChatID         string
	UserID         string
	Token          string // challenge identity the response must carry
	ChallengeMsgID string // message carrying the challenge, if sent
	JoinedAt       time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the verification window has closed
func (p *PendingVerification) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
