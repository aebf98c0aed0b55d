package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
	"github.com/zohan724/SweepMonk/internal/metrics"
	"github.com/zohan724/SweepMonk/internal/service"
)

// VerificationUsecase runs the new-member verification lifecycle:
// Pending on join, then Verified (challenge answered in time) or Expired
// (timeout fired, member removed). Both outcomes are terminal and discard the
// record, so "record not found" and "expired" are indistinguishable to a late
// challenge response.
type VerificationUsecase struct {
	transport repo.ChatTransport
	pending   repo.VerificationRepo
	settings  repo.SettingsRepo
	sched     *service.Scheduler
	keys      *KeyedMutex
}

// NewVerificationUsecase creates the verification usecase
func NewVerificationUsecase(
	transport repo.ChatTransport,
	pending repo.VerificationRepo,
	settings repo.SettingsRepo,
	sched *service.Scheduler,
	keys *KeyedMutex,
) *VerificationUsecase {
	return &VerificationUsecase{
		transport: transport,
		pending:   pending,
		settings:  settings,
		sched:     sched,
		keys:      keys,
	}
}

// HandleJoin gates a newly joined member: restrict posting, record a Pending
// verification and send the challenge. A second join while already Pending
// replaces the record and extends the timer rather than duplicating it.
func (uc *VerificationUsecase) HandleJoin(ctx context.Context, evt domain.JoinEvent) error {
	logger := log.WithFields(log.Fields{
		"chat": evt.ChatID,
		"user": evt.UserID,
	})

	cfg, err := uc.settings.Get(ctx, evt.ChatID)
	if err != nil {
		return fmt.Errorf("get chat settings: %w", err)
	}

	// restrict first; if this fails the member keeps posting rights and
	// starting a verification they cannot pass would only get them kicked
	if err := uc.transport.RestrictUser(ctx, evt.ChatID, evt.UserID, time.Time{}); err != nil {
		metrics.Actions.WithLabelValues("restrict", metrics.OutcomeFailed).Inc()
		return fmt.Errorf("%w: restrict new member %s in %s: %v", domain.ErrActionFailed, evt.UserID, evt.ChatID, err)
	}
	metrics.Actions.WithLabelValues("restrict", metrics.OutcomeOK).Inc()

	now := time.Now()
	rec := &domain.PendingVerification{
		ChatID:    evt.ChatID,
		UserID:    evt.UserID,
		Token:     uuid.NewString(),
		JoinedAt:  now,
		ExpiresAt: now.Add(cfg.VerificationTimeout),
	}

	unlock := uc.keys.Lock(domain.Key(evt.ChatID, evt.UserID))
	err = uc.pending.Put(ctx, rec)
	unlock()
	if err != nil {
		return fmt.Errorf("save pending verification: %w", err)
	}

	msgID, err := uc.transport.SendChallenge(ctx, evt.ChatID, evt.UserID, rec.Token, cfg.VerificationTimeout)
	if err != nil {
		metrics.Actions.WithLabelValues("challenge", metrics.OutcomeFailed).Inc()
		logger.WithError(err).Error("failed to send verification challenge")
	} else {
		metrics.Actions.WithLabelValues("challenge", metrics.OutcomeOK).Inc()
		unlock = uc.keys.Lock(domain.Key(evt.ChatID, evt.UserID))
		if cur, gerr := uc.pending.Get(ctx, evt.ChatID, evt.UserID); gerr == nil && cur != nil && cur.Token == rec.Token {
			cur.ChallengeMsgID = msgID
			_ = uc.pending.Put(ctx, cur)
		}
		unlock()
	}

	chatID, userID := evt.ChatID, evt.UserID
	uc.sched.Schedule(service.TimerVerificationExpiry, chatID, userID, rec.ExpiresAt, func() {
		uc.handleExpiry(chatID, userID)
	})

	logger.WithField("expires_at", rec.ExpiresAt).Info("verification started")
	return nil
}

// HandleChallengeResponse resolves a challenge answer. A response whose
// record is missing, already resolved, token-mismatched or past expiry gets
// ErrVerificationExpired; a removed user is never re-admitted implicitly.
// A validated response claims the record and cancels the expiry timer while
// still holding the key lock, so the timer cannot kick a member whose answer
// arrived in time but whose restriction lift is still in flight.
func (uc *VerificationUsecase) HandleChallengeResponse(ctx context.Context, evt domain.ChallengeResponseEvent) error {
	now := time.Now()

	unlock := uc.keys.Lock(domain.Key(evt.ChatID, evt.UserID))
	rec, err := uc.pending.Get(ctx, evt.ChatID, evt.UserID)
	if err != nil {
		unlock()
		return fmt.Errorf("get pending verification: %w", err)
	}
	if rec == nil || rec.Token != evt.Token || rec.Expired(now) {
		unlock()
		return domain.ErrVerificationExpired
	}
	if err := uc.pending.Delete(ctx, evt.ChatID, evt.UserID); err != nil {
		unlock()
		return fmt.Errorf("discard pending verification: %w", err)
	}
	uc.sched.Cancel(service.TimerVerificationExpiry, evt.ChatID, evt.UserID)
	unlock()

	// if the platform call fails, restore the record and its timer so the
	// member can answer again within the original window
	if err := uc.transport.LiftRestriction(ctx, evt.ChatID, evt.UserID); err != nil {
		metrics.Actions.WithLabelValues("unrestrict", metrics.OutcomeFailed).Inc()
		uc.restorePending(ctx, rec)
		return fmt.Errorf("%w: lift restriction for %s in %s: %v", domain.ErrActionFailed, evt.UserID, evt.ChatID, err)
	}
	metrics.Actions.WithLabelValues("unrestrict", metrics.OutcomeOK).Inc()
	metrics.Verifications.WithLabelValues(domain.VerificationVerified.String()).Inc()

	log.WithFields(log.Fields{
		"chat": evt.ChatID,
		"user": evt.UserID,
	}).Info("member verified")
	return nil
}

// restorePending re-registers a claimed record after a failed restriction
// lift. A record that reappeared in the meantime (a fresh join) is left alone.
func (uc *VerificationUsecase) restorePending(ctx context.Context, rec *domain.PendingVerification) {
	chatID, userID := rec.ChatID, rec.UserID

	unlock := uc.keys.Lock(domain.Key(chatID, userID))
	defer unlock()

	cur, err := uc.pending.Get(ctx, chatID, userID)
	if err != nil || cur != nil {
		return
	}
	if err := uc.pending.Put(ctx, rec); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat": chatID,
			"user": userID,
		}).Error("failed to restore pending verification")
		return
	}
	uc.sched.Schedule(service.TimerVerificationExpiry, chatID, userID, rec.ExpiresAt, func() {
		uc.handleExpiry(chatID, userID)
	})
}

// handleExpiry runs when the verification timer fires. A record that was
// resolved or replaced in the meantime makes the fire a no-op, which is what
// keeps the cancel/fire race from double-applying a removal.
func (uc *VerificationUsecase) handleExpiry(chatID, userID string) {
	ctx := context.Background()
	uc.expire(ctx, chatID, userID, time.Now())
}

// SweepExpired resolves every pending verification whose window has already
// closed. Backup for timers lost across a restart; records handled here go
// through the same expiry path as a live timer fire.
func (uc *VerificationUsecase) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := uc.pending.Expired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired verifications: %w", err)
	}
	n := 0
	for _, rec := range expired {
		if uc.expire(ctx, rec.ChatID, rec.UserID, now) {
			n++
		}
	}
	return n, nil
}

// expire transitions one record Pending -> Expired and removes the member.
// Returns false when the record was no longer pending or not yet due.
func (uc *VerificationUsecase) expire(ctx context.Context, chatID, userID string, now time.Time) bool {
	logger := log.WithFields(log.Fields{
		"chat": chatID,
		"user": userID,
	})

	unlock := uc.keys.Lock(domain.Key(chatID, userID))
	rec, err := uc.pending.Get(ctx, chatID, userID)
	if err != nil {
		unlock()
		logger.WithError(err).Error("verification expiry: failed to load record")
		return false
	}
	if rec == nil || !rec.Expired(now) {
		// resolved, replaced or extended since the timer was set
		unlock()
		return false
	}
	if err := uc.pending.Delete(ctx, chatID, userID); err != nil {
		unlock()
		logger.WithError(err).Error("verification expiry: failed to discard record")
		return false
	}
	unlock()

	if err := uc.transport.RemoveUser(ctx, chatID, userID); err != nil {
		metrics.Actions.WithLabelValues("remove", metrics.OutcomeFailed).Inc()
		logger.WithError(fmt.Errorf("%w: remove %s from %s: %v", domain.ErrActionFailed, userID, chatID, err)).
			Error("failed to remove unverified member")
	} else {
		metrics.Actions.WithLabelValues("remove", metrics.OutcomeOK).Inc()
	}

	metrics.Verifications.WithLabelValues(domain.VerificationExpired.String()).Inc()
	logger.Info("verification expired, member removed")
	return true
}

// CountPending reports the number of unanswered challenges across all chats
func (uc *VerificationUsecase) CountPending(ctx context.Context) (int, error) {
	return uc.pending.CountPending(ctx)
}
