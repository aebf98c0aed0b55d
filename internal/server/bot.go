package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
	"github.com/zohan724/SweepMonk/internal/biz/usecase"
	"github.com/zohan724/SweepMonk/internal/filter"
)

const listPageSize = 50

// Bot glues transport events to the moderation core: messages are classified
// and enforced, joins start verification, commands mutate the rule set.
// Platform adapters deliver events by calling the Handle* methods; the core
// never blocks on them longer than one event takes to process.
type Bot struct {
	transport repo.ChatTransport
	engine    *filter.Engine
	enforcer  *usecase.EnforcementCoordinator
	verifier  *usecase.VerificationUsecase
	stats     *usecase.StatsUsecase
	settings  repo.SettingsRepo
	rules     repo.RuleSourceRepo
}

// NewBot creates the bot
func NewBot(
	transport repo.ChatTransport,
	engine *filter.Engine,
	enforcer *usecase.EnforcementCoordinator,
	verifier *usecase.VerificationUsecase,
	stats *usecase.StatsUsecase,
	settings repo.SettingsRepo,
	rules repo.RuleSourceRepo,
) *Bot {
	return &Bot{
		transport: transport,
		engine:    engine,
		enforcer:  enforcer,
		verifier:  verifier,
		stats:     stats,
		settings:  settings,
		rules:     rules,
	}
}

// LoadRules loads the persisted rule source into the match engine
func (b *Bot) LoadRules(ctx context.Context) error {
	src, err := b.rules.Load(ctx)
	if err != nil {
		return fmt.Errorf("load rule source: %w", err)
	}
	defer src.Close()

	loaded, skipped, err := b.engine.Reload(src)
	if err != nil {
		return fmt.Errorf("reload rules: %w", err)
	}
	log.WithFields(log.Fields{
		"loaded":  loaded,
		"skipped": skipped,
	}).Info("rule set loaded")
	return nil
}

// HandleMessage processes one inbound group message: admin commands first,
// then classification. Admin messages are never classified.
func (b *Bot) HandleMessage(ctx context.Context, evt domain.MessageEvent) {
	if strings.HasPrefix(evt.Text, "/") {
		b.handleCommand(ctx, evt)
		return
	}

	isAdmin, err := b.transport.IsAdmin(ctx, evt.ChatID, evt.UserID)
	if err != nil {
		// cannot confirm identity, leave the message alone
		log.WithError(err).WithFields(log.Fields{
			"chat": evt.ChatID,
			"user": evt.UserID,
		}).Error("failed to check admin status, skipping message")
		return
	}
	if isAdmin {
		return
	}

	res := b.engine.Classify(evt.Text)
	if !res.Matched {
		return
	}
	if err := b.enforcer.HandleViolation(ctx, evt, res); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat": evt.ChatID,
			"user": evt.UserID,
		}).Error("enforcement incomplete")
	}
}

// HandleJoin starts verification for a newly joined member
func (b *Bot) HandleJoin(ctx context.Context, evt domain.JoinEvent) {
	if err := b.verifier.HandleJoin(ctx, evt); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat": evt.ChatID,
			"user": evt.UserID,
		}).Error("failed to start verification")
	}
}

// HandleChallengeResponse resolves a verification challenge answer
func (b *Bot) HandleChallengeResponse(ctx context.Context, evt domain.ChallengeResponseEvent) {
	err := b.verifier.HandleChallengeResponse(ctx, evt)
	if errors.Is(err, domain.ErrVerificationExpired) {
		_ = b.transport.SendText(ctx, evt.ChatID, "Verification expired or already completed.")
		return
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat": evt.ChatID,
			"user": evt.UserID,
		}).Error("failed to resolve challenge response")
	}
}

// handleCommand dispatches an admin command. All commands except /help and
// /ping require chat admin rights.
func (b *Bot) handleCommand(ctx context.Context, evt domain.MessageEvent) {
	fields := strings.Fields(evt.Text)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help", "/start":
		b.reply(ctx, evt.ChatID, helpText)
		return
	case "/ping":
		b.reply(ctx, evt.ChatID, "🏓 Pong!")
		return
	}

	isAdmin, err := b.transport.IsAdmin(ctx, evt.ChatID, evt.UserID)
	if err != nil || !isAdmin {
		b.reply(ctx, evt.ChatID, "⛔ This command is admin-only.")
		return
	}

	switch cmd {
	case "/addkeyword":
		b.cmdAddKeyword(ctx, evt.ChatID, strings.Join(args, " "))
	case "/delkeyword":
		b.cmdDelKeyword(ctx, evt.ChatID, strings.Join(args, " "))
	case "/listkeywords":
		b.cmdListKeywords(ctx, evt.ChatID, args)
	case "/unmute":
		b.cmdUnmute(ctx, evt.ChatID, args)
	case "/stats":
		b.cmdStats(ctx, evt.ChatID)
	case "/setmutetime":
		b.cmdSetMuteTime(ctx, evt.ChatID, args)
	case "/reload":
		b.cmdReload(ctx, evt.ChatID)
	default:
		// unknown commands are ignored; they may belong to another bot
	}
}

func (b *Bot) cmdAddKeyword(ctx context.Context, chatID, raw string) {
	if raw == "" {
		b.reply(ctx, chatID, "Usage: /addkeyword <word>")
		return
	}
	added, err := b.engine.Add(raw)
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Invalid rule: %v", err))
		return
	}
	if !added {
		b.reply(ctx, chatID, fmt.Sprintf("⚠️ Rule already exists: %s", raw))
		return
	}
	if err := b.rules.AppendLine(ctx, raw); err != nil {
		log.WithError(err).Error("failed to persist added rule")
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Rule added: %s", raw))
}

func (b *Bot) cmdDelKeyword(ctx context.Context, chatID, raw string) {
	if raw == "" {
		b.reply(ctx, chatID, "Usage: /delkeyword <word>")
		return
	}
	if !b.engine.Remove(raw) {
		b.reply(ctx, chatID, fmt.Sprintf("⚠️ No such rule: %s", raw))
		return
	}
	if err := b.rules.Rewrite(ctx, b.engine.List()); err != nil {
		log.WithError(err).Error("failed to persist rule removal")
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Rule removed: %s", raw))
}

func (b *Bot) cmdListKeywords(ctx context.Context, chatID string, args []string) {
	rules := b.engine.List()
	if len(rules) == 0 {
		b.reply(ctx, chatID, "📝 No rules configured.")
		return
	}

	totalPages := (len(rules) + listPageSize - 1) / listPageSize
	page := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			page = min(max(n, 1), totalPages)
		}
	}

	start := (page - 1) * listPageSize
	end := min(start+listPageSize, len(rules))

	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Rules (page %d/%d, %d total)\n\n", page, totalPages, len(rules))
	for _, r := range rules[start:end] {
		sb.WriteString("• " + r + "\n")
	}
	if totalPages > 1 {
		sb.WriteString("\nUse /listkeywords <page> for other pages")
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) cmdUnmute(ctx context.Context, chatID string, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Usage: /unmute <user id>")
		return
	}
	userID := args[0]
	err := b.enforcer.Unmute(ctx, chatID, userID)
	if errors.Is(err, domain.ErrNotMuted) {
		b.reply(ctx, chatID, fmt.Sprintf("⚠️ User %s is not muted.", userID))
		return
	}
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Unmute failed: %v", err))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ User %s unmuted.", userID))
}

func (b *Bot) cmdStats(ctx context.Context, chatID string) {
	stats, err := b.stats.Summary(ctx, chatID)
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Stats unavailable: %v", err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Moderation stats\n\n")
	fmt.Fprintf(&sb, "• Total violations: %d\n", stats.TotalViolations)
	fmt.Fprintf(&sb, "• Violations today: %d\n", stats.TodayViolations)
	fmt.Fprintf(&sb, "• Tracked users: %d\n", stats.TrackedUsers)
	fmt.Fprintf(&sb, "• Pending verifications: %d\n", stats.PendingVerifications)

	recent, err := b.stats.Recent(ctx, chatID, 5)
	if err == nil && len(recent) > 0 {
		sb.WriteString("\n📋 Recent violations:\n")
		for _, v := range recent {
			rule := v.RuleID
			if len(rule) > 20 {
				rule = rule[:20]
			}
			fmt.Fprintf(&sb, "• %s: %s\n", v.UserID, rule)
		}
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) cmdSetMuteTime(ctx context.Context, chatID string, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Usage: /setmutetime <seconds> (60..31536000)")
		return
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil {
		b.reply(ctx, chatID, "❌ Not a number of seconds.")
		return
	}
	if secs < 60 || secs > 31536000 {
		b.reply(ctx, chatID, "⚠️ Mute duration must be between 60 seconds and 1 year.")
		return
	}
	d := time.Duration(secs) * time.Second
	if err := b.settings.SetMuteDuration(ctx, chatID, d); err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Failed to store setting: %v", err))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Mute duration set to %s.", d))
}

func (b *Bot) cmdReload(ctx context.Context, chatID string) {
	if err := b.LoadRules(ctx); err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Reload failed: %v", err))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Rule set reloaded, %d rules active.", b.engine.Len()))
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	if err := b.transport.SendText(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat", chatID).Error("failed to send reply")
	}
}

const helpText = `🧹 SweepMonk - group guardian

📝 Rule management:
• /addkeyword <word> - add a rule (prefix patterns with the pattern marker)
• /delkeyword <word> - remove a rule
• /listkeywords [page] - list rules
• /reload - reload the rule file

👤 User management:
• /unmute <user id> - lift an active mute

⚙️ Settings:
• /setmutetime <seconds> - set this chat's mute duration

📊 Other:
• /stats - moderation statistics
• /help - this message`
