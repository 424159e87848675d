package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// ResolveCache extends the invalidation interface with the read side used by
// the hot path.
type ResolveCache interface {
	Cache
	Get(ctx context.Context, identifier string) (*profile.Profile, bool)
	Set(ctx context.Context, identifier string, p *profile.Profile)
}

type ResolveProfileUseCase struct {
	profileRepo profile.Repository
	cache       ResolveCache
	logger      logger.Logger
}

func NewResolveProfileUseCase(repo profile.Repository, cache ResolveCache, log logger.Logger) *ResolveProfileUseCase {
	return &ResolveProfileUseCase{
		profileRepo: repo,
		cache:       cache,
		logger:      log,
	}
}

type ResolveProfileInput struct {
	// Identifier is a slug (subdomain label) or a verified custom domain.
	Identifier string
}

type ResolveProfileOutput struct {
	Profile *profile.Profile
}

// Execute is the public read path. Unpublished profiles resolve to NotFound
// indistinguishably from absent ones.
func (uc *ResolveProfileUseCase) Execute(ctx context.Context, input ResolveProfileInput) (*ResolveProfileOutput, error) {
	identifier := strings.ToLower(strings.TrimSpace(input.Identifier))
	if identifier == "" {
		return nil, apperror.NewNotFound("profile", input.Identifier)
	}

	if p, ok := uc.cache.Get(ctx, identifier); ok {
		return &ResolveProfileOutput{Profile: p}, nil
	}

	p, err := uc.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !p.IsPublished {
		return nil, apperror.NewNotFound("profile", identifier)
	}

	uc.cache.Set(ctx, identifier, p)
	return &ResolveProfileOutput{Profile: p}, nil
}

func (uc *ResolveProfileUseCase) lookup(ctx context.Context, identifier string) (*profile.Profile, error) {
	p, err := uc.profileRepo.FindBySlug(ctx, identifier)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, profile.ErrProfileNotFound) {
		return nil, apperror.NewInternal("failed to resolve profile by slug", err)
	}

	// Dotted identifiers can only be custom domains, and only verified ones
	// resolve.
	if strings.Contains(identifier, ".") {
		p, err = uc.profileRepo.FindByVerifiedDomain(ctx, identifier)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, profile.ErrProfileNotFound) {
			return nil, apperror.NewInternal("failed to resolve profile by domain", err)
		}
	}

	return nil, apperror.NewNotFound("profile", identifier)
}
