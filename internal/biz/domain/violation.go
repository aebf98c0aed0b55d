package domain

import "time"

// ViolationState is the per (chat, user) enforcement record.
// Created on first violation, updated on each subsequent one, never deleted;
// it becomes logically inactive once MutedUntil is in the past.
type ViolationState struct {
	ChatID        string
	UserID        string
	Count         int
	MutedUntil    time.Time // zero if not muted
	LastViolation time.Time
}

// IsMuted reports whether the user has an active mute at the given time
func (v *ViolationState) IsMuted(now time.Time) bool {
	return !v.MutedUntil.IsZero() && now.Before(v.MutedUntil)
}

// RecordViolation applies one violation: bumps the count and extends the mute
func (v *ViolationState) RecordViolation(now time.Time, muteDuration time.Duration) {
	v.Count++
	v.LastViolation = now
	v.MutedUntil = now.Add(muteDuration)
}

// ClearMute drops the active mute
func (v *ViolationState) ClearMute() {
	v.MutedUntil = time.Time{}
}

// ViolationRecord is one immutable entry in the append-only violation log
type ViolationRecord struct {
	ID          int64
	ChatID      string
	UserID      string
	MessageText string // truncated to 500 runes before persisting
	RuleID      string
	ActionTaken string
	Outcome     string
	CreatedAt   time.Time
}

// Stats summarizes the violation log for administrative display
type Stats struct {
	TotalViolations      int
	TodayViolations      int
	TrackedUsers         int
	PendingVerifications int
}
