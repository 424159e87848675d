package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// Cache is the resolve-path cache the lifecycle use cases invalidate on
// every mutation.
type Cache interface {
	Invalidate(ctx context.Context, identifiers ...string)
}

type UpdateProfileUseCase struct {
	profileRepo  profile.Repository
	cache        Cache
	slugCooldown time.Duration
	logger       logger.Logger
}

func NewUpdateProfileUseCase(repo profile.Repository, cache Cache, slugCooldown time.Duration, log logger.Logger) *UpdateProfileUseCase {
	return &UpdateProfileUseCase{
		profileRepo:  repo,
		cache:        cache,
		slugCooldown: slugCooldown,
		logger:       log,
	}
}

// UpdateProfileInput is a partial patch: nil means "leave unchanged".
type UpdateProfileInput struct {
	ProfileID      uuid.UUID
	UserID         uuid.UUID
	Slug           *string
	Name           *string
	Tagline        *string
	Bio            *string
	Skills         *[]string
	WorkHistory    *[]profile.WorkExperience
	Projects       *[]profile.Project
	SocialLinks    *profile.SocialLinks
	ExternalLinks  *[]profile.ExternalLink
	Theme          *string
	SEOTitle       *string
	SEODescription *string
}

type UpdateProfileOutput struct {
	Profile *profile.Profile
}

func (uc *UpdateProfileUseCase) Execute(ctx context.Context, input UpdateProfileInput) (*UpdateProfileOutput, error) {
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

	applyPatch(p, input)

	if err := p.Validate(); err != nil {
		return nil, apperror.NewInvalidInput("profile validation failed", err)
	}

	// A refused rename must refuse the whole patch, so the slug checks run
	// before anything is written.
	wantsRename := input.Slug != nil && *input.Slug != p.Slug
	if wantsRename {
		if err := uc.slugChangeAllowed(p, *input.Slug); err != nil {
			return nil, err
		}
	}

	if err := uc.profileRepo.Update(ctx, p); err != nil {
		return nil, apperror.NewInternal("failed to update profile", err)
	}

	oldSlug := p.Slug
	var renameErr error
	if wantsRename {
		renameErr = uc.changeSlug(ctx, p, *input.Slug)
	}

	// Field edits are committed at this point even when the rename lost a
	// concurrent race, so the cache is dropped on both paths.
	identifiers := []string{oldSlug, p.Slug}
	if p.CustomDomain != nil {
		identifiers = append(identifiers, *p.CustomDomain)
	}
	uc.cache.Invalidate(ctx, identifiers...)

	if renameErr != nil {
		return nil, renameErr
	}
	return &UpdateProfileOutput{Profile: p}, nil
}

// slugChangeAllowed gives the user a precise remaining wait without touching
// the store.
func (uc *UpdateProfileUseCase) slugChangeAllowed(p *profile.Profile, newSlug string) error {
	if err := profile.ValidateSlug(newSlug); err != nil {
		return apperror.NewInvalidInput("invalid slug", err)
	}

	if p.LastSlugChange != nil {
		nextAllowed := p.LastSlugChange.Add(uc.slugCooldown)
		if now := time.Now().UTC(); now.Before(nextAllowed) {
			remaining := nextAllowed.Sub(now)
			return apperror.NewRateLimited(
				fmt.Sprintf("slug can be changed again in %s", remaining.Round(time.Minute)),
				remaining,
			)
		}
	}
	return nil
}

// changeSlug performs the conditional store write that closes the race
// between two concurrent renames of the same profile.
func (uc *UpdateProfileUseCase) changeSlug(ctx context.Context, p *profile.Profile, newSlug string) error {
	now := time.Now().UTC()
	cooldownBoundary := now.Add(-uc.slugCooldown)
	err := uc.profileRepo.ChangeSlug(ctx, p.ID, newSlug, now, cooldownBoundary)
	if err != nil {
		if errors.Is(err, profile.ErrSlugTaken) {
			return apperror.NewConflict("profile", "slug", newSlug)
		}
		if errors.Is(err, profile.ErrSlugCooldown) {
			return apperror.NewRateLimited("slug was changed concurrently, cooldown active", uc.slugCooldown)
		}
		return apperror.NewInternal("failed to change slug", err)
	}

	uc.logger.Info("Profile slug changed",
		zap.String("profile_id", p.ID.String()),
		zap.String("old_slug", p.Slug),
		zap.String("new_slug", newSlug))

	p.Slug = newSlug
	p.LastSlugChange = &now
	return nil
}

func applyPatch(p *profile.Profile, input UpdateProfileInput) {
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Tagline != nil {
		p.Tagline = *input.Tagline
	}
	if input.Bio != nil {
		p.Bio = *input.Bio
	}
	if input.Skills != nil {
		p.Skills = *input.Skills
	}
	if input.WorkHistory != nil {
		p.WorkHistory = *input.WorkHistory
	}
	if input.Projects != nil {
		p.Projects = *input.Projects
	}
	if input.SocialLinks != nil {
		p.SocialLinks = *input.SocialLinks
	}
	if input.ExternalLinks != nil {
		// Tile click counters belong to the analytics pipeline; carry them
		// over so a patch cannot set them.
		existing := make(map[uuid.UUID]int64, len(p.ExternalLinks))
		for _, l := range p.ExternalLinks {
			existing[l.ID] = l.ClickCount
		}
		links := *input.ExternalLinks
		for i := range links {
			if links[i].ID == uuid.Nil {
				links[i].ID = uuid.New()
			}
			links[i].ClickCount = existing[links[i].ID]
		}
		p.ExternalLinks = links
	}
	if input.Theme != nil {
		p.Theme = *input.Theme
	}
	if input.SEOTitle != nil {
		p.SEOTitle = *input.SEOTitle
	}
	if input.SEODescription != nil {
		p.SEODescription = *input.SEODescription
	}
	p.UpdatedAt = time.Now().UTC()
}
