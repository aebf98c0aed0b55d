package server

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/usecase"
	"github.com/zohan724/SweepMonk/internal/data"
	"github.com/zohan724/SweepMonk/internal/filter"
	"github.com/zohan724/SweepMonk/internal/service"
)

// recordingTransport captures platform calls for assertions

type recordingTransport struct {
	mu sync.Mutex

	deleted    []string
	restricted []string
	lifted     []string
	removed    []string
	replies    []string
	notices    []string
	admins     map[string]bool
}

func newRecordingTransport(admins ...string) *recordingTransport {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		set[a] = true
	}
	return &recordingTransport{admins: set}
}

func (m *recordingTransport) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *recordingTransport) RestrictUser(ctx context.Context, chatID, userID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restricted = append(m.restricted, userID)
	return nil
}

func (m *recordingTransport) LiftRestriction(ctx context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifted = append(m.lifted, userID)
	return nil
}

func (m *recordingTransport) RemoveUser(ctx context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, userID)
	return nil
}

func (m *recordingTransport) SendChallenge(ctx context.Context, chatID, userID, token string, timeout time.Duration) (string, error) {
	return "challenge-1", nil
}

func (m *recordingTransport) NotifyAdmins(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, text)
	return nil
}

func (m *recordingTransport) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, text)
	return nil
}

func (m *recordingTransport) IsAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	return m.admins[userID], nil
}

func (m *recordingTransport) lastReply() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return ""
	}
	return m.replies[len(m.replies)-1]
}

type botFixture struct {
	transport *recordingTransport
	bot       *Bot
	engine    *filter.Engine
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	dir := t.TempDir()

	repos, err := data.NewRepositories(filepath.Join(dir, "bot.db"), domain.ChatSettings{
		MuteDuration:        24 * time.Hour,
		VerificationTimeout: 5 * time.Minute,
		NotifyAdmins:        true,
	})
	if err != nil {
		t.Fatalf("Failed to open repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })

	transport := newRecordingTransport("admin-1")
	ruleFile := data.NewRuleFileRepo(filepath.Join(dir, "keywords.txt"), "regex:")
	engine := filter.NewEngine("regex:")
	sched := service.NewScheduler()
	t.Cleanup(sched.Stop)
	keys := usecase.NewKeyedMutex()
	notifier := service.NewNotifier(transport, rate.Inf, 1)

	enforcer := usecase.NewEnforcementCoordinator(
		transport, repos.Violations, repos.Settings, nil, sched, notifier, keys, time.Minute)
	verifier := usecase.NewVerificationUsecase(
		transport, repos.Verifications, repos.Settings, sched, keys)
	stats := usecase.NewStatsUsecase(repos.Violations, repos.Verifications)

	bot := NewBot(transport, engine, enforcer, verifier, stats, repos.Settings, ruleFile)
	if err := bot.LoadRules(context.Background()); err != nil {
		t.Fatalf("Failed to load rules: %v", err)
	}
	return &botFixture{transport: transport, bot: bot, engine: engine}
}

func message(userID, text string) domain.MessageEvent {
	return domain.MessageEvent{
		ChatID:    "chat-1",
		UserID:    userID,
		MessageID: "msg-" + text,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func TestBot_ViolatingMessageEnforced(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	f.bot.HandleMessage(ctx, message("user-1", "快來投資賺大錢"))

	if len(f.transport.deleted) != 1 {
		t.Errorf("Expected one deleted message, got %v", f.transport.deleted)
	}
	if len(f.transport.restricted) != 1 || f.transport.restricted[0] != "user-1" {
		t.Errorf("Expected user-1 restricted, got %v", f.transport.restricted)
	}
	if len(f.transport.notices) != 1 {
		t.Errorf("Expected one admin notice, got %v", f.transport.notices)
	}
}

func TestBot_AdminMessagesNeverClassified(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	f.bot.HandleMessage(ctx, message("admin-1", "大家別點投資廣告"))

	if len(f.transport.deleted) != 0 {
		t.Errorf("Admin message must not be deleted, got %v", f.transport.deleted)
	}
}

func TestBot_CleanMessageUntouched(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	f.bot.HandleMessage(ctx, message("user-1", "今天天氣真好"))

	if len(f.transport.deleted) != 0 || len(f.transport.restricted) != 0 {
		t.Error("Clean message must not trigger enforcement")
	}
}

func TestBot_CommandsAreAdminGated(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("user-1", "/addkeyword 投資"))
	if !strings.Contains(f.transport.lastReply(), "admin-only") {
		t.Errorf("Expected rejection, got %q", f.transport.lastReply())
	}
	if f.engine.Len() != 0 {
		t.Error("Non-admin must not mutate the rule set")
	}

	// help and ping are public
	f.bot.HandleMessage(ctx, message("user-1", "/ping"))
	if !strings.Contains(f.transport.lastReply(), "Pong") {
		t.Errorf("Expected pong, got %q", f.transport.lastReply())
	}
}

func TestBot_AddDelListKeyword(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	if !strings.Contains(f.transport.lastReply(), "added") {
		t.Errorf("Expected add confirmation, got %q", f.transport.lastReply())
	}

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	if !strings.Contains(f.transport.lastReply(), "already exists") {
		t.Errorf("Expected duplicate warning, got %q", f.transport.lastReply())
	}

	f.bot.HandleMessage(ctx, message("admin-1", `/addkeyword regex:([bad`))
	if !strings.Contains(f.transport.lastReply(), "Invalid rule") {
		t.Errorf("Expected invalid-rule reply, got %q", f.transport.lastReply())
	}

	f.bot.HandleMessage(ctx, message("admin-1", "/listkeywords"))
	if !strings.Contains(f.transport.lastReply(), "投資") {
		t.Errorf("Expected listing to contain the rule, got %q", f.transport.lastReply())
	}

	f.bot.HandleMessage(ctx, message("admin-1", "/delkeyword 投資"))
	if !strings.Contains(f.transport.lastReply(), "removed") {
		t.Errorf("Expected removal confirmation, got %q", f.transport.lastReply())
	}
	if f.engine.Len() != 0 {
		t.Errorf("Expected empty rule set, got %d", f.engine.Len())
	}

	f.bot.HandleMessage(ctx, message("admin-1", "/delkeyword 投資"))
	if !strings.Contains(f.transport.lastReply(), "No such rule") {
		t.Errorf("Expected no-such-rule warning, got %q", f.transport.lastReply())
	}
}

func TestBot_RulesSurviveReload(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	f.bot.HandleMessage(ctx, message("admin-1", `/addkeyword regex:賺\d+萬`))

	f.bot.HandleMessage(ctx, message("admin-1", "/reload"))
	if !strings.Contains(f.transport.lastReply(), "2 rules active") {
		t.Errorf("Expected 2 rules after reload, got %q", f.transport.lastReply())
	}
	res := f.engine.Classify("保證賺100萬")
	if !res.Matched {
		t.Error("Pattern rule must survive a reload")
	}
}

func TestBot_UnmuteCommand(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/unmute user-1"))
	if !strings.Contains(f.transport.lastReply(), "not muted") {
		t.Errorf("Expected not-muted warning, got %q", f.transport.lastReply())
	}

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	f.bot.HandleMessage(ctx, message("user-1", "投資機會"))

	f.bot.HandleMessage(ctx, message("admin-1", "/unmute user-1"))
	if !strings.Contains(f.transport.lastReply(), "unmuted") {
		t.Errorf("Expected unmute confirmation, got %q", f.transport.lastReply())
	}
	if len(f.transport.lifted) != 1 || f.transport.lifted[0] != "user-1" {
		t.Errorf("Expected restriction lifted for user-1, got %v", f.transport.lifted)
	}
}

func TestBot_SetMuteTimeBounds(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/setmutetime 30"))
	if !strings.Contains(f.transport.lastReply(), "between 60 seconds") {
		t.Errorf("Expected bounds warning, got %q", f.transport.lastReply())
	}

	f.bot.HandleMessage(ctx, message("admin-1", "/setmutetime abc"))
	if !strings.Contains(f.transport.lastReply(), "Not a number") {
		t.Errorf("Expected parse error reply, got %q", f.transport.lastReply())
	}

	f.bot.HandleMessage(ctx, message("admin-1", "/setmutetime 3600"))
	if !strings.Contains(f.transport.lastReply(), "1h0m0s") {
		t.Errorf("Expected confirmation with duration, got %q", f.transport.lastReply())
	}
}

func TestBot_JoinAndVerifyFlow(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleJoin(ctx, domain.JoinEvent{ChatID: "chat-1", UserID: "newbie", Timestamp: time.Now()})
	if len(f.transport.restricted) != 1 {
		t.Fatalf("Expected new member restricted, got %v", f.transport.restricted)
	}

	// an unknown token gets the expiry notice, not admission
	f.bot.HandleChallengeResponse(ctx, domain.ChallengeResponseEvent{
		ChatID: "chat-1", UserID: "newbie", Token: "wrong",
	})
	if !strings.Contains(f.transport.lastReply(), "expired") {
		t.Errorf("Expected expiry notice, got %q", f.transport.lastReply())
	}
	if len(f.transport.lifted) != 0 {
		t.Error("Wrong token must not lift the restriction")
	}
}

func TestBot_StatsCommand(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, message("admin-1", "/addkeyword 投資"))
	f.bot.HandleMessage(ctx, message("user-1", "投資群組"))

	f.bot.HandleMessage(ctx, message("admin-1", "/stats"))
	reply := f.transport.lastReply()
	if !strings.Contains(reply, "Total violations: 1") {
		t.Errorf("Expected one violation in stats, got %q", reply)
	}
	if !strings.Contains(reply, "Recent violations") {
		t.Errorf("Expected recent section, got %q", reply)
	}
}
