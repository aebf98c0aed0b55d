package service

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

// Notifier posts admin notifications with a per-chat rate limit so a burst of
// violations cannot flood the chat. Dropped notices are logged, not queued.
type Notifier struct {
	transport repo.ChatTransport
	limit     rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewNotifier creates a notifier allowing on average one notice per
// minInterval per chat, with the given burst.
func NewNotifier(transport repo.ChatTransport, limit rate.Limit, burst int) *Notifier {
	return &Notifier{
		transport: transport,
		limit:     limit,
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (n *Notifier) limiter(chatID string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(n.limit, n.burst)
		n.limiters[chatID] = l
	}
	return l
}

// Notify sends a notice to the chat's admin surface, or drops it when the
// chat's limiter is exhausted. Transport failures are logged, not returned;
// a lost notification must never block enforcement.
func (n *Notifier) Notify(ctx context.Context, chatID, text string) {
	if !n.limiter(chatID).Allow() {
		log.WithField("chat", chatID).Warn("admin notification dropped by rate limit")
		return
	}
	if err := n.transport.NotifyAdmins(ctx, chatID, text); err != nil {
		log.WithFields(log.Fields{
			"chat": chatID,
			"err":  err,
		}).Error("failed to notify admins")
	}
}
