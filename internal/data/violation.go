package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

// violationRepo implements the violation state and log repository
type violationRepo struct {
	db *sql.DB
}

// NewViolationRepo creates the violation repository and its tables
func NewViolationRepo(db *sql.DB) (repo.ViolationRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS violation_state (
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			violation_count INTEGER NOT NULL DEFAULT 0,
			muted_until INTEGER NOT NULL DEFAULT 0,
			last_violation INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (chat_id, user_id)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create violation_state table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS violations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			message_text TEXT,
			matched_rule TEXT,
			action_taken TEXT,
			outcome TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create violations table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_violations_chat_created ON violations(chat_id, created_at)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create violations index: %w", err)
	}

	return &violationRepo{db: db}, nil
}

// GetState gets violation state for a chat/user pair
func (r *violationRepo) GetState(ctx context.Context, chatID, userID string) (*domain.ViolationState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, violation_count, muted_until, last_violation
		FROM violation_state
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)

	var state domain.ViolationState
	var mutedUntil, lastViolation int64
	err := row.Scan(&state.ChatID, &state.UserID, &state.Count, &mutedUntil, &lastViolation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query violation state: %w", err)
	}

	if mutedUntil > 0 {
		state.MutedUntil = time.Unix(mutedUntil, 0)
	}
	if lastViolation > 0 {
		state.LastViolation = time.Unix(lastViolation, 0)
	}
	return &state, nil
}

// SaveState saves violation state (create or update)
func (r *violationRepo) SaveState(ctx context.Context, state *domain.ViolationState) error {
	var mutedUntil int64
	if !state.MutedUntil.IsZero() {
		mutedUntil = state.MutedUntil.Unix()
	}
	var lastViolation int64
	if !state.LastViolation.IsZero() {
		lastViolation = state.LastViolation.Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO violation_state (chat_id, user_id, violation_count, muted_until, last_violation)
		VALUES (?, ?, ?, ?, ?)
	`, state.ChatID, state.UserID, state.Count, mutedUntil, lastViolation)
	if err != nil {
		return fmt.Errorf("failed to save violation state: %w", err)
	}
	return nil
}

// Append appends one entry to the violation log
func (r *violationRepo) Append(ctx context.Context, rec *domain.ViolationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO violations (chat_id, user_id, message_text, matched_rule, action_taken, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ChatID,
		rec.UserID,
		rec.MessageText,
		rec.RuleID,
		rec.ActionTaken,
		rec.Outcome,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append violation: %w", err)
	}
	return nil
}

// Recent lists the most recent violations for a chat
func (r *violationRepo) Recent(ctx context.Context, chatID string, limit int) ([]*domain.ViolationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, user_id, message_text, matched_rule, action_taken, outcome, created_at
		FROM violations
		WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	var out []*domain.ViolationRecord
	for rows.Next() {
		var rec domain.ViolationRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.UserID, &rec.MessageText, &rec.RuleID, &rec.ActionTaken, &rec.Outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Stats summarizes the violation log; empty chatID means global
func (r *violationRepo) Stats(ctx context.Context, chatID string) (*domain.Stats, error) {
	where := ""
	args := []any{}
	if chatID != "" {
		where = " WHERE chat_id = ?"
		args = append(args, chatID)
	}

	var stats domain.Stats
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations`+where, args...)
	if err := row.Scan(&stats.TotalViolations); err != nil {
		return nil, fmt.Errorf("failed to count violations: %w", err)
	}

	// "today" follows the local calendar day, not the UTC one
	now := time.Now()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Unix()
	todayArgs := append(append([]any{}, args...), midnight)
	todayWhere := " WHERE created_at >= ?"
	if chatID != "" {
		todayWhere = where + " AND created_at >= ?"
	}
	row = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations`+todayWhere, todayArgs...)
	if err := row.Scan(&stats.TodayViolations); err != nil {
		return nil, fmt.Errorf("failed to count today violations: %w", err)
	}

	row = r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM violation_state`)
	if err := row.Scan(&stats.TrackedUsers); err != nil {
		return nil, fmt.Errorf("failed to count tracked users: %w", err)
	}

	return &stats, nil
}
