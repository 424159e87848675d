package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type GetProfileUseCase struct {
	profileRepo profile.Repository
	logger      logger.Logger
}

func NewGetProfileUseCase(repo profile.Repository, log logger.Logger) *GetProfileUseCase {
	return &GetProfileUseCase{
		profileRepo: repo,
		logger:      log,
	}
}

type GetProfileInput struct {
	UserID uuid.UUID
}

type GetProfileOutput struct {
	Profile *profile.Profile
}

// Execute loads the caller's own profile; profiles are one-to-one with users.
func (uc *GetProfileUseCase) Execute(ctx context.Context, input GetProfileInput) (*GetProfileOutput, error) {
	p, err := uc.profileRepo.FindByUserID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, apperror.NewNotFound("profile", input.UserID.String())
		}
		return nil, apperror.NewInternal("failed to load profile", err)
	}
	return &GetProfileOutput{Profile: p}, nil
}
