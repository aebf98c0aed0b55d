package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
	"github.com/zohan724/SweepMonk/internal/metrics"
	"github.com/zohan724/SweepMonk/internal/service"
)

// maxLoggedTextRunes bounds how much of the offending message is persisted
const maxLoggedTextRunes = 500

// Notifier sends throttled admin notifications
type Notifier interface {
	Notify(ctx context.Context, chatID, text string)
}

// EnforcementCoordinator drives the violation path: delete, mute, notify,
// log. State transitions for a (chat, user) key are serialized; platform I/O
// happens outside the key lock. Failed actions are logged and surfaced but
// never rolled back and never halt unrelated events.
type EnforcementCoordinator struct {
	transport  repo.ChatTransport
	violations repo.ViolationRepo
	settings   repo.SettingsRepo
	judge      repo.SpamJudge // optional second opinion, may be nil
	sched      *service.Scheduler
	notifier   Notifier
	keys       *KeyedMutex
	dedup      *cache.Cache
}

// NewEnforcementCoordinator creates the coordinator. dedupWindow is the span
// during which a repeated message id is treated as already processed.
func NewEnforcementCoordinator(
	transport repo.ChatTransport,
	violations repo.ViolationRepo,
	settings repo.SettingsRepo,
	judge repo.SpamJudge,
	sched *service.Scheduler,
	notifier Notifier,
	keys *KeyedMutex,
	dedupWindow time.Duration,
) *EnforcementCoordinator {
	return &EnforcementCoordinator{
		transport:  transport,
		violations: violations,
		settings:   settings,
		judge:      judge,
		sched:      sched,
		notifier:   notifier,
		keys:       keys,
		dedup:      cache.New(dedupWindow, 2*dedupWindow),
	}
}

// HandleViolation processes one matched message. Duplicate deliveries within
// the dedup window are absorbed silently. The same message id produces at
// most one violation increment, one delete request and one mute action.
func (c *EnforcementCoordinator) HandleViolation(ctx context.Context, evt domain.MessageEvent, res domain.MatchResult) error {
	if !res.Matched {
		return nil
	}

	// dedup keys on message identity; Add fails if the id is still cached
	if err := c.dedup.Add(evt.ChatID+"/"+evt.MessageID, struct{}{}, cache.DefaultExpiration); err != nil {
		metrics.DuplicateEvents.Inc()
		log.WithFields(log.Fields{
			"chat": evt.ChatID,
			"msg":  evt.MessageID,
		}).Debug("duplicate message event ignored")
		return nil
	}

	logger := log.WithFields(log.Fields{
		"chat": evt.ChatID,
		"user": evt.UserID,
		"rule": res.RuleID,
	})

	// optional advisory second opinion before enforcing
	if c.judge != nil {
		spam, err := c.judge.IsSpam(ctx, evt.Text, res.RuleSource)
		if err != nil {
			logger.WithError(err).Warn("spam judge unavailable, enforcing on match alone")
		} else if !spam {
			logger.Info("spam judge overruled rule match, skipping enforcement")
			return nil
		}
	}

	metrics.ViolationsDetected.WithLabelValues(res.Kind.String()).Inc()

	cfg, err := c.settings.Get(ctx, evt.ChatID)
	if err != nil {
		return fmt.Errorf("get chat settings: %w", err)
	}
	now := time.Now()

	// state transition under the key lock, release before platform I/O
	unlock := c.keys.Lock(domain.Key(evt.ChatID, evt.UserID))
	state, err := c.violations.GetState(ctx, evt.ChatID, evt.UserID)
	if err != nil {
		unlock()
		return fmt.Errorf("get violation state: %w", err)
	}
	if state == nil {
		state = &domain.ViolationState{ChatID: evt.ChatID, UserID: evt.UserID}
	}
	state.RecordViolation(now, cfg.MuteDuration)
	if err := c.violations.SaveState(ctx, state); err != nil {
		unlock()
		return fmt.Errorf("save violation state: %w", err)
	}
	unlock()

	logger = logger.WithField("count", state.Count)
	logger.Info("violation detected")

	// 1. delete the offending message, best-effort; it may already be gone
	deleteOutcome := metrics.OutcomeOK
	if err := c.transport.DeleteMessage(ctx, evt.ChatID, evt.MessageID); err != nil {
		deleteOutcome = metrics.OutcomeFailed
		logger.WithError(err).Warn("failed to delete message")
	}
	metrics.Actions.WithLabelValues("delete", deleteOutcome).Inc()

	// 2. restrict the user until the mute runs out; failure is surfaced but
	//    does not roll back the deletion or the recorded violation
	muteOutcome := metrics.OutcomeOK
	muteErr := c.transport.RestrictUser(ctx, evt.ChatID, evt.UserID, state.MutedUntil)
	if muteErr != nil {
		muteOutcome = metrics.OutcomeFailed
		muteErr = fmt.Errorf("%w: restrict %s in %s: %v", domain.ErrActionFailed, evt.UserID, evt.ChatID, muteErr)
		logger.WithError(muteErr).Error("failed to mute user")
	}
	metrics.Actions.WithLabelValues("restrict", muteOutcome).Inc()

	// 3. advisory expiry timer; platform-level mute expiry stays authoritative
	chatID, userID := evt.ChatID, evt.UserID
	c.sched.Schedule(service.TimerMuteExpiry, chatID, userID, state.MutedUntil, func() {
		c.handleMuteExpiry(chatID, userID)
	})

	// 4. admin notification
	if cfg.NotifyAdmins {
		text := fmt.Sprintf(
			"⚠️ Violation detected\nUser: %s\nRule: %s\nCount: %d\nAction: message deleted, muted for %s",
			evt.UserID, res.RuleSource, state.Count, cfg.MuteDuration,
		)
		if muteErr != nil {
			text += "\n❌ Mute failed, admin attention needed"
		}
		c.notifier.Notify(ctx, evt.ChatID, text)
	}

	// 5. immutable log entry with the actual outcome
	rec := &domain.ViolationRecord{
		ChatID:      evt.ChatID,
		UserID:      evt.UserID,
		MessageText: truncateRunes(evt.Text, maxLoggedTextRunes),
		RuleID:      res.RuleID,
		ActionTaken: fmt.Sprintf("deleted, muted for %s", cfg.MuteDuration),
		Outcome:     outcomeString(deleteOutcome, muteOutcome),
		CreatedAt:   now,
	}
	if err := c.violations.Append(ctx, rec); err != nil {
		logger.WithError(err).Error("failed to append violation log")
	}

	return muteErr
}

// Unmute clears an active mute: cancels the advisory timer, lifts the
// platform restriction and zeroes mute-until. Returns ErrNotMuted when the
// user has no active mute.
func (c *EnforcementCoordinator) Unmute(ctx context.Context, chatID, userID string) error {
	now := time.Now()

	unlock := c.keys.Lock(domain.Key(chatID, userID))
	state, err := c.violations.GetState(ctx, chatID, userID)
	if err != nil {
		unlock()
		return fmt.Errorf("get violation state: %w", err)
	}
	if state == nil || !state.IsMuted(now) {
		unlock()
		return domain.ErrNotMuted
	}
	state.ClearMute()
	if err := c.violations.SaveState(ctx, state); err != nil {
		unlock()
		return fmt.Errorf("save violation state: %w", err)
	}
	unlock()

	c.sched.Cancel(service.TimerMuteExpiry, chatID, userID)

	if err := c.transport.LiftRestriction(ctx, chatID, userID); err != nil {
		metrics.Actions.WithLabelValues("unrestrict", metrics.OutcomeFailed).Inc()
		return fmt.Errorf("%w: lift restriction for %s in %s: %v", domain.ErrActionFailed, userID, chatID, err)
	}
	metrics.Actions.WithLabelValues("unrestrict", metrics.OutcomeOK).Inc()

	log.WithFields(log.Fields{
		"chat": chatID,
		"user": userID,
	}).Info("user unmuted")
	return nil
}

// handleMuteExpiry runs when the advisory mute timer fires. The platform
// lifts the restriction itself; this only reconciles local state, and a fire
// racing its own cancellation finds the mute already cleared and does nothing.
func (c *EnforcementCoordinator) handleMuteExpiry(chatID, userID string) {
	ctx := context.Background()
	now := time.Now()

	unlock := c.keys.Lock(domain.Key(chatID, userID))
	defer unlock()

	state, err := c.violations.GetState(ctx, chatID, userID)
	if err != nil {
		log.WithError(err).Error("mute expiry: failed to load state")
		return
	}
	if state == nil || state.MutedUntil.IsZero() || now.Before(state.MutedUntil) {
		return
	}
	state.ClearMute()
	if err := c.violations.SaveState(ctx, state); err != nil {
		log.WithError(err).Error("mute expiry: failed to save state")
		return
	}
	log.WithFields(log.Fields{
		"chat": chatID,
		"user": userID,
	}).Debug("mute expired")
}

func outcomeString(deleteOutcome, muteOutcome string) string {
	if deleteOutcome == metrics.OutcomeOK && muteOutcome == metrics.OutcomeOK {
		return "ok"
	}
	return fmt.Sprintf("delete=%s mute=%s", deleteOutcome, muteOutcome)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
