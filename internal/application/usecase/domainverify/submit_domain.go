package domainverify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// Cache mirrors the lifecycle use cases' invalidation hook; changing the
// domain must drop any cached resolution under the old one.
type Cache interface {
	Invalidate(ctx context.Context, identifiers ...string)
}

type SubmitDomainUseCase struct {
	verificationRepo domainverify.Repository
	profileRepo      profile.Repository
	cache            Cache
	cnameTarget      string
	logger           logger.Logger
}

func NewSubmitDomainUseCase(vRepo domainverify.Repository, pRepo profile.Repository, cache Cache, cnameTarget string, log logger.Logger) *SubmitDomainUseCase {
	return &SubmitDomainUseCase{
		verificationRepo: vRepo,
		profileRepo:      pRepo,
		cache:            cache,
		cnameTarget:      cnameTarget,
		logger:           log,
	}
}

type SubmitDomainInput struct {
	ProfileID uuid.UUID
	UserID    uuid.UUID
	Domain    string
}

type SubmitDomainOutput struct {
	Verification *domainverify.DomainVerification
	// CnameTarget is the host the user must point their CNAME at.
	CnameTarget string
}

// Execute supersedes any active verification attempt with a fresh pending
// one. This is also the only way out of a failed attempt.
func (uc *SubmitDomainUseCase) Execute(ctx context.Context, input SubmitDomainInput) (*SubmitDomainOutput, error) {
	domain := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(input.Domain, ".")))
	if err := domainverify.ValidateDomain(domain); err != nil {
		return nil, apperror.NewInvalidInput("invalid domain name", err)
	}

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

	now := time.Now().UTC()
	verification := &domainverify.DomainVerification{
		ID:                 uuid.New(),
		ProfileID:          p.ID,
		Domain:             domain,
		VerificationStatus: domainverify.StatusPending,
		CnameTarget:        uc.cnameTarget,
		DNSRecords:         []string{},
		SSLStatus:          domainverify.SSLPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.verificationRepo.Replace(ctx, verification); err != nil {
		return nil, apperror.NewInternal("failed to store domain verification", err)
	}

	// The profile carries the domain immediately but unverified; resolution
	// under it only works once a recheck verifies.
	if err := uc.profileRepo.SetCustomDomain(ctx, p.ID, &domain, false); err != nil {
		return nil, apperror.NewInternal("failed to attach custom domain", err)
	}

	identifiers := []string{p.Slug, domain}
	if p.CustomDomain != nil {
		identifiers = append(identifiers, *p.CustomDomain)
	}
	uc.cache.Invalidate(ctx, identifiers...)

	uc.logger.Info("Custom domain submitted",
		zap.String("profile_id", p.ID.String()),
		zap.String("domain", domain))

	return &SubmitDomainOutput{
		Verification: verification,
		CnameTarget:  uc.cnameTarget,
	}, nil
}
