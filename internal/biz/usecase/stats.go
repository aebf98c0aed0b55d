package usecase

import (
	"context"
	"fmt"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

// StatsUsecase assembles moderation statistics for administrative display
type StatsUsecase struct {
	violations repo.ViolationRepo
	pending    repo.VerificationRepo
}

// NewStatsUsecase creates the stats usecase
func NewStatsUsecase(violations repo.ViolationRepo, pending repo.VerificationRepo) *StatsUsecase {
	return &StatsUsecase{violations: violations, pending: pending}
}

// Summary returns the aggregate stats; an empty chatID means global
func (uc *StatsUsecase) Summary(ctx context.Context, chatID string) (*domain.Stats, error) {
	stats, err := uc.violations.Stats(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("violation stats: %w", err)
	}
	n, err := uc.pending.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending verifications: %w", err)
	}
	stats.PendingVerifications = n
	return stats, nil
}

// Recent lists the latest violations for a chat
func (uc *StatsUsecase) Recent(ctx context.Context, chatID string, limit int) ([]*domain.ViolationRecord, error) {
	return uc.violations.Recent(ctx, chatID, limit)
}
