package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type CreateProfileUseCase struct {
	profileRepo profile.Repository
	logger      logger.Logger
}

func NewCreateProfileUseCase(repo profile.Repository, log logger.Logger) *CreateProfileUseCase {
	return &CreateProfileUseCase{
		profileRepo: repo,
		logger:      log,
	}
}

type CreateProfileInput struct {
	UserID uuid.UUID
	Slug   string
	Name   string
}

type CreateProfileOutput struct {
	Profile *profile.Profile
}

func (uc *CreateProfileUseCase) Execute(ctx context.Context, input CreateProfileInput) (*CreateProfileOutput, error) {
	if err := profile.ValidateSlug(input.Slug); err != nil {
		return nil, apperror.NewInvalidInput("invalid slug", err)
	}

	now := time.Now().UTC()
	newProfile := &profile.Profile{
		ID:            uuid.New(),
		UserID:        input.UserID,
		Slug:          input.Slug,
		Name:          input.Name,
		Skills:        []string{},
		WorkHistory:   []profile.WorkExperience{},
		Projects:      []profile.Project{},
		SocialLinks:   profile.SocialLinks{},
		ExternalLinks: []profile.ExternalLink{},
		Theme:         "default",
		IsPublished:   false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// The unique constraints on user_id and slug are the real gate; a
	// pre-check here would just race.
	if err := uc.profileRepo.Create(ctx, newProfile); err != nil {
		if errors.Is(err, profile.ErrProfileExists) {
			return nil, apperror.NewConflict("profile", "user", input.UserID.String())
		}
		if errors.Is(err, profile.ErrSlugTaken) {
			return nil, apperror.NewConflict("profile", "slug", input.Slug)
		}
		return nil, apperror.NewInternal("failed to create profile", err)
	}

	return &CreateProfileOutput{Profile: newProfile}, nil
}
