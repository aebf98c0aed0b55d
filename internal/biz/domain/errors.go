package domain

import "errors"

// Sentinel errors for moderation operations.
var (
	// ErrInvalidPattern indicates a rule with an uncompilable pattern.
	// Local to add/reload; the rule set is left unchanged.
	ErrInvalidPattern = errors.New("invalid pattern syntax")

	// ErrNotMuted indicates an unmute for a user with no active mute.
	ErrNotMuted = errors.New("user is not muted")

	// ErrVerificationExpired indicates a stale or unknown challenge response.
	// "Record not found or not pending" is treated uniformly as expired.
	ErrVerificationExpired = errors.New("verification expired or not pending")

	// ErrActionFailed indicates a platform call (delete/restrict/kick/send)
	// failed. Already-applied state changes are not rolled back.
	ErrActionFailed = errors.New("platform action failed")
)
