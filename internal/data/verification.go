package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

// verificationRepo implements the pending verification repository
type verificationRepo struct {
	db *sql.DB
}

// NewVerificationRepo creates the verification repository and its table
func NewVerificationRepo(db *sql.DB) (repo.VerificationRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_verifications (
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL,
			challenge_msg_id TEXT NOT NULL DEFAULT '',
			joined_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (chat_id, user_id)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending_verifications table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_pending_verifications_expires ON pending_verifications(expires_at)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending_verifications index: %w", err)
	}

	return &verificationRepo{db: db}, nil
}

// Get gets the pending record for a chat/user pair, nil if absent
func (r *verificationRepo) Get(ctx context.Context, chatID, userID string) (*domain.PendingVerification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, token, challenge_msg_id, joined_at, expires_at
		FROM pending_verifications
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)

	rec, err := scanVerification(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending verification: %w", err)
	}
	return rec, nil
}

// Put saves a pending record, replacing any existing one for the pair.
// The primary key keeps the at-most-one-pending invariant.
func (r *verificationRepo) Put(ctx context.Context, rec *domain.PendingVerification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pending_verifications (chat_id, user_id, token, challenge_msg_id, joined_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.ChatID,
		rec.UserID,
		rec.Token,
		rec.ChallengeMsgID,
		rec.JoinedAt.Unix(),
		rec.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending verification: %w", err)
	}
	return nil
}

// Delete removes a pending record; absent is not an error
func (r *verificationRepo) Delete(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM pending_verifications WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete pending verification: %w", err)
	}
	return nil
}

// Expired lists records whose expiry has passed
func (r *verificationRepo) Expired(ctx context.Context, now time.Time) ([]*domain.PendingVerification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, user_id, token, challenge_msg_id, joined_at, expires_at
		FROM pending_verifications
		WHERE expires_at <= ?
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired verifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.PendingVerification
	for rows.Next() {
		rec, err := scanVerification(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending verification: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountPending counts unexpired records across all chats; records past
// their deadline awaiting the sweeper are no longer pending
func (r *verificationRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_verifications WHERE expires_at > ?`, time.Now().Unix())
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending verifications: %w", err)
	}
	return n, nil
}

func scanVerification(scan func(...any) error) (*domain.PendingVerification, error) {
	var rec domain.PendingVerification
	var joinedAt, expiresAt int64
	if err := scan(&rec.ChatID, &rec.UserID, &rec.Token, &rec.ChallengeMsgID, &joinedAt, &expiresAt); err != nil {
		return nil, err
	}
	rec.JoinedAt = time.Unix(joinedAt, 0)
	rec.ExpiresAt = time.Unix(expiresAt, 0)
	return &rec, nil
}
