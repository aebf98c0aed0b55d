package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type notifyCounter struct {
	mu      sync.Mutex
	notices map[string]int
}

func (m *notifyCounter) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	return nil
}
func (m *notifyCounter) RestrictUser(ctx context.Context, chatID, userID string, until time.Time) error {
	return nil
}
func (m *notifyCounter) LiftRestriction(ctx context.Context, chatID, userID string) error { return nil }
func (m *notifyCounter) RemoveUser(ctx context.Context, chatID, userID string) error      { return nil }
func (m *notifyCounter) SendChallenge(ctx context.Context, chatID, userID, token string, timeout time.Duration) (string, error) {
	return "", nil
}
func (m *notifyCounter) SendText(ctx context.Context, chatID, text string) error { return nil }
func (m *notifyCounter) IsAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	return false, nil
}

func (m *notifyCounter) NotifyAdmins(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notices == nil {
		m.notices = make(map[string]int)
	}
	m.notices[chatID]++
	return nil
}

func (m *notifyCounter) count(chatID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notices[chatID]
}

func TestNotifier_BurstThenDrop(t *testing.T) {
	transport := &notifyCounter{}
	// effectively no refill during the test, burst of 3
	n := NewNotifier(transport, rate.Every(time.Hour), 3)

	for i := 0; i < 10; i++ {
		n.Notify(context.Background(), "chat-1", "notice")
	}
	if got := transport.count("chat-1"); got != 3 {
		t.Errorf("Expected burst of 3 delivered, got %d", got)
	}
}

func TestNotifier_PerChatLimits(t *testing.T) {
	transport := &notifyCounter{}
	n := NewNotifier(transport, rate.Every(time.Hour), 1)

	n.Notify(context.Background(), "chat-1", "notice")
	n.Notify(context.Background(), "chat-1", "notice")
	n.Notify(context.Background(), "chat-2", "notice")

	if got := transport.count("chat-1"); got != 1 {
		t.Errorf("Expected 1 for chat-1, got %d", got)
	}
	if got := transport.count("chat-2"); got != 1 {
		t.Errorf("Expected chat-2 to have its own budget, got %d", got)
	}
}
