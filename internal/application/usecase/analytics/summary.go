package analytics

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cvlinkhq/cvlink/internal/domain/analytics"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type SummaryUseCase struct {
	analyticsRepo analytics.Repository
	profileRepo   profile.Repository
	logger        logger.Logger
}

func NewSummaryUseCase(aRepo analytics.Repository, pRepo profile.Repository, log logger.Logger) *SummaryUseCase {
	return &SummaryUseCase{
		analyticsRepo: aRepo,
		profileRepo:   pRepo,
		logger:        log,
	}
}

type GetSummaryInput struct {
	ProfileID uuid.UUID
	UserID    uuid.UUID
}

type GetSummaryOutput struct {
	Summary *analytics.Summary
}

// ExecuteGetSummary serves the dashboard from the denormalized counters; it
// never touches the event tables.
func (uc *SummaryUseCase) ExecuteGetSummary(ctx context.Context, input GetSummaryInput) (*GetSummaryOutput, error) {
	p, err := uc.profileRepo.FindByID(ctx, input.ProfileID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, apperror.NewNotFound("profile", input.ProfileID.String())
		}
		return nil, apperror.NewInternal("failed to load profile", err)
	}
	if p.UserID != input.UserID {
		return nil, apperror.NewPermissionDenied("profile belongs to another user")
	}

	s, err := uc.analyticsRepo.GetSummary(ctx, input.ProfileID)
	if err != nil {
		return nil, apperror.NewInternal("failed to read analytics summary", err)
	}
	return &GetSummaryOutput{Summary: s}, nil
}

type ReconcileInput struct {
	ProfileID uuid.UUID
}

// ExecuteReconcile recounts the event tables into the profile counters. The
// counters are a cache of the event log; this is the rebuild. Idempotent.
func (uc *SummaryUseCase) ExecuteReconcile(ctx context.Context, input ReconcileInput) error {
	err := uc.analyticsRepo.RebuildCounters(ctx, input.ProfileID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return apperror.NewNotFound("profile", input.ProfileID.String())
		}
		return apperror.NewInternal("failed to rebuild counters", err)
	}
	return nil
}
