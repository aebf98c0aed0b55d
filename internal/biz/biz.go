package biz

import (
	"github.com/zohan724/SweepMonk/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Enforcement  *usecase.EnforcementCoordinator
	Verification *usecase.VerificationUsecase
	Stats        *usecase.StatsUsecase
}
