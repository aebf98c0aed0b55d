package service

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// TimerKind tags the event a scheduled timer will deliver
type TimerKind string

const (
	// TimerMuteExpiry is advisory cleanup when a platform mute runs out
	TimerMuteExpiry TimerKind = "mute_expiry"
	// TimerVerificationExpiry fires when a verification window closes
	TimerVerificationExpiry TimerKind = "verification_expiry"
)

// Scheduler owns one-shot cancellable timers keyed by (kind, chat, user).
// Scheduling the same key again replaces the previous timer, so a second join
// for a pending user extends rather than duplicates. Cancellation is
// best-effort-but-race-safe: a callback that fires concurrently with its own
// cancellation must re-check record state before acting, so a lost race is a
// no-op rather than a double-applied action.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

func timerKey(kind TimerKind, chatID, userID string) string {
	return string(kind) + "/" + chatID + "/" + userID
}

// Schedule arranges fn to run once at the given time, replacing any timer
// already scheduled for the same (kind, chat, user) key.
func (s *Scheduler) Schedule(kind TimerKind, chatID, userID string, at time.Time, fn func()) {
	key := timerKey(kind, chatID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.timers[key]; ok {
		prev.Stop()
	}

	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		// only unregister ourselves; a replacement scheduled while this
		// callback waited on the lock must stay cancellable
		if s.timers[key] == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = t

	log.WithFields(log.Fields{
		"kind": kind,
		"chat": chatID,
		"user": userID,
		"at":   at,
	}).Debug("timer scheduled")
}

// Cancel stops the timer for the given key. Returns false if no timer was
// pending. A timer that already fired (or is firing) is not rewound; its
// callback is expected to find the record in a terminal state and do nothing.
func (s *Scheduler) Cancel(kind TimerKind, chatID, userID string) bool {
	key := timerKey(kind, chatID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return false
	}
	delete(s.timers, key)
	return t.Stop()
}

// Stop cancels all pending timers and rejects further scheduling
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending returns the number of timers currently scheduled
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
