package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

// settingsRepo implements per-chat settings with configured defaults
type settingsRepo struct {
	db       *sql.DB
	defaults domain.ChatSettings
}

// NewSettingsRepo creates the settings repository and its table
func NewSettingsRepo(db *sql.DB, defaults domain.ChatSettings) (repo.SettingsRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_settings (
			chat_id TEXT PRIMARY KEY,
			mute_duration INTEGER NOT NULL DEFAULT 0,
			verification_timeout INTEGER NOT NULL DEFAULT 0,
			notify_admins INTEGER NOT NULL DEFAULT -1,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_settings table: %w", err)
	}
	return &settingsRepo{db: db, defaults: defaults}, nil
}

// Get returns the chat's settings with defaults filled in for unset fields.
// Zero means unset for durations, -1 for the notify flag.
func (r *settingsRepo) Get(ctx context.Context, chatID string) (*domain.ChatSettings, error) {
	out := r.defaults
	out.ChatID = chatID

	row := r.db.QueryRowContext(ctx, `
		SELECT mute_duration, verification_timeout, notify_admins
		FROM chat_settings
		WHERE chat_id = ?
	`, chatID)

	var muteSecs, verifySecs int64
	var notify int
	err := row.Scan(&muteSecs, &verifySecs, &notify)
	if err == sql.ErrNoRows {
		return &out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat settings: %w", err)
	}

	if muteSecs > 0 {
		out.MuteDuration = time.Duration(muteSecs) * time.Second
	}
	if verifySecs > 0 {
		out.VerificationTimeout = time.Duration(verifySecs) * time.Second
	}
	if notify >= 0 {
		out.NotifyAdmins = notify != 0
	}
	return &out, nil
}

// SetMuteDuration stores a per-chat mute duration override
func (r *settingsRepo) SetMuteDuration(ctx context.Context, chatID string, d time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_settings (chat_id, mute_duration, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET mute_duration = excluded.mute_duration, updated_at = excluded.updated_at
	`, chatID, int64(d/time.Second), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set mute duration: %w", err)
	}
	return nil
}
