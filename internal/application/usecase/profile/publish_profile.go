package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type PublishProfileUseCase struct {
	profileRepo profile.Repository
	cache       Cache
	logger      logger.Logger
}

func NewPublishProfileUseCase(repo profile.Repository, cache Cache, log logger.Logger) *PublishProfileUseCase {
	return &PublishProfileUseCase{
		profileRepo: repo,
		cache:       cache,
		logger:      log,
	}
}

type PublishProfileInput struct {
	ProfileID uuid.UUID
	UserID    uuid.UUID
	Publish   bool
}

type PublishProfileOutput struct {
	Profile *profile.Profile
}

func (uc *PublishProfileUseCase) Execute(ctx context.Context, input PublishProfileInput) (*PublishProfileOutput, error) {
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

	if input.Publish {
		if err := p.CanPublish(); err != nil {
			return nil, apperror.NewInvalidInput("profile is not ready to publish", err)
		}
	}

	if err := uc.profileRepo.SetPublished(ctx, p.ID, input.Publish); err != nil {
		return nil, apperror.NewInternal("failed to toggle publication", err)
	}
	p.IsPublished = input.Publish

	// Unpublishing must make the page unreachable immediately, so the cache
	// entry cannot be allowed to outlive this call.
	identifiers := []string{p.Slug}
	if p.CustomDomain != nil {
		identifiers = append(identifiers, *p.CustomDomain)
	}
	uc.cache.Invalidate(ctx, identifiers...)

	uc.logger.Info("Profile publication toggled",
		zap.String("profile_id", p.ID.String()),
		zap.Bool("published", input.Publish))

	return &PublishProfileOutput{Profile: p}, nil
}
