package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
)

// Mock implementations

type mockTransport struct {
	mu sync.Mutex

	deleted    []string // "chat/msg"
	restricted []string // "chat/user"
	lifted     []string
	removed    []string
	challenges []string
	notices    []string
	texts      []string

	deleteErr   error
	restrictErr error
	liftErr     error
	liftDelay   time.Duration
	removeErr   error
	sendErr     error

	admins map[string]bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{admins: make(map[string]bool)}
}

func (m *mockTransport) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, chatID+"/"+messageID)
	return nil
}

func (m *mockTransport) RestrictUser(ctx context.Context, chatID, userID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restrictErr != nil {
		return m.restrictErr
	}
	m.restricted = append(m.restricted, chatID+"/"+userID)
	return nil
}

func (m *mockTransport) LiftRestriction(ctx context.Context, chatID, userID string) error {
	if m.liftDelay > 0 {
		time.Sleep(m.liftDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liftErr != nil {
		return m.liftErr
	}
	m.lifted = append(m.lifted, chatID+"/"+userID)
	return nil
}

func (m *mockTransport) RemoveUser(ctx context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, chatID+"/"+userID)
	return nil
}

func (m *mockTransport) SendChallenge(ctx context.Context, chatID, userID, token string, timeout time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.challenges = append(m.challenges, chatID+"/"+userID)
	return "challenge-msg-1", nil
}

func (m *mockTransport) NotifyAdmins(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, text)
	return nil
}

func (m *mockTransport) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockTransport) IsAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[userID], nil
}

func (m *mockTransport) countRemoved() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.removed)
}

func (m *mockTransport) countLifted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lifted)
}

type mockViolationRepo struct {
	mu      sync.Mutex
	states  map[string]*domain.ViolationState
	records []*domain.ViolationRecord
}

func newMockViolationRepo() *mockViolationRepo {
	return &mockViolationRepo{states: make(map[string]*domain.ViolationState)}
}

func (m *mockViolationRepo) GetState(ctx context.Context, chatID, userID string) (*domain.ViolationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[domain.Key(chatID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockViolationRepo) SaveState(ctx context.Context, state *domain.ViolationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[domain.Key(state.ChatID, state.UserID)] = &cp
	return nil
}

func (m *mockViolationRepo) Append(ctx context.Context, rec *domain.ViolationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockViolationRepo) Recent(ctx context.Context, chatID string, limit int) ([]*domain.ViolationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ViolationRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].ChatID == chatID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *mockViolationRepo) Stats(ctx context.Context, chatID string) (*domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.Stats{TotalViolations: len(m.records), TrackedUsers: len(m.states)}, nil
}

type mockVerificationRepo struct {
	mu      sync.Mutex
	pending map[string]*domain.PendingVerification
}

func newMockVerificationRepo() *mockVerificationRepo {
	return &mockVerificationRepo{pending: make(map[string]*domain.PendingVerification)}
}

func (m *mockVerificationRepo) Get(ctx context.Context, chatID, userID string) (*domain.PendingVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.pending[domain.Key(chatID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *mockVerificationRepo) Put(ctx context.Context, rec *domain.PendingVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.pending[domain.Key(rec.ChatID, rec.UserID)] = &cp
	return nil
}

func (m *mockVerificationRepo) Delete(ctx context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, domain.Key(chatID, userID))
	return nil
}

func (m *mockVerificationRepo) Expired(ctx context.Context, now time.Time) ([]*domain.PendingVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PendingVerification
	for _, rec := range m.pending {
		if rec.Expired(now) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockVerificationRepo) CountPending(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, rec := range m.pending {
		if !rec.Expired(now) {
			n++
		}
	}
	return n, nil
}

type mockSettingsRepo struct {
	defaults  domain.ChatSettings
	overrides map[string]time.Duration
}

func newMockSettingsRepo(defaults domain.ChatSettings) *mockSettingsRepo {
	return &mockSettingsRepo{defaults: defaults, overrides: make(map[string]time.Duration)}
}

func (m *mockSettingsRepo) Get(ctx context.Context, chatID string) (*domain.ChatSettings, error) {
	cfg := m.defaults
	cfg.ChatID = chatID
	if d, ok := m.overrides[chatID]; ok {
		cfg.MuteDuration = d
	}
	return &cfg, nil
}

func (m *mockSettingsRepo) SetMuteDuration(ctx context.Context, chatID string, d time.Duration) error {
	m.overrides[chatID] = d
	return nil
}

type mockNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (m *mockNotifier) Notify(ctx context.Context, chatID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
}

type mockJudge struct {
	spam bool
	err  error
}

func (m *mockJudge) IsSpam(ctx context.Context, text, matchedRule string) (bool, error) {
	return m.spam, m.err
}
