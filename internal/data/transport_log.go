package data

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

// logTransport is a dry-run ChatTransport: every action is logged and
// reported as successful. Used when no platform adapter is wired in, so the
// whole pipeline can be exercised without touching a real chat.
type logTransport struct {
	admins map[string]struct{}
}

// NewLogTransport creates a dry-run transport. adminIDs are the user ids
// IsAdmin reports true for.
func NewLogTransport(adminIDs []string) repo.ChatTransport {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &logTransport{admins: admins}
}

func (t *logTransport) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	log.WithFields(log.Fields{"chat": chatID, "msg": messageID}).Info("dry-run: delete message")
	return nil
}

func (t *logTransport) RestrictUser(ctx context.Context, chatID, userID string, until time.Time) error {
	log.WithFields(log.Fields{"chat": chatID, "user": userID, "until": until}).Info("dry-run: restrict user")
	return nil
}

func (t *logTransport) LiftRestriction(ctx context.Context, chatID, userID string) error {
	log.WithFields(log.Fields{"chat": chatID, "user": userID}).Info("dry-run: lift restriction")
	return nil
}

func (t *logTransport) RemoveUser(ctx context.Context, chatID, userID string) error {
	log.WithFields(log.Fields{"chat": chatID, "user": userID}).Info("dry-run: remove user")
	return nil
}

func (t *logTransport) SendChallenge(ctx context.Context, chatID, userID, token string, timeout time.Duration) (string, error) {
	log.WithFields(log.Fields{"chat": chatID, "user": userID, "timeout": timeout}).Info("dry-run: send challenge")
	return "dryrun-" + uuid.NewString(), nil
}

func (t *logTransport) NotifyAdmins(ctx context.Context, chatID, text string) error {
	log.WithFields(log.Fields{"chat": chatID, "text": text}).Info("dry-run: notify admins")
	return nil
}

func (t *logTransport) SendText(ctx context.Context, chatID, text string) error {
	log.WithFields(log.Fields{"chat": chatID, "text": text}).Info("dry-run: send text")
	return nil
}

func (t *logTransport) IsAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	_, ok := t.admins[userID]
	return ok, nil
}
