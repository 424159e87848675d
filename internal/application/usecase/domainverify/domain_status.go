package domainverify

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type DomainStatusUseCase struct {
	verificationRepo domainverify.Repository
	profileRepo      profile.Repository
	logger           logger.Logger
}

func NewDomainStatusUseCase(vRepo domainverify.Repository, pRepo profile.Repository, log logger.Logger) *DomainStatusUseCase {
	return &DomainStatusUseCase{
		verificationRepo: vRepo,
		profileRepo:      pRepo,
		logger:           log,
	}
}

type DomainStatusInput struct {
	ProfileID uuid.UUID
	UserID    uuid.UUID
}

type DomainStatusOutput struct {
	Verification *domainverify.DomainVerification
}

func (uc *DomainStatusUseCase) Execute(ctx context.Context, input DomainStatusInput) (*DomainStatusOutput, error) {
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

	v, err := uc.verificationRepo.FindActiveByProfile(ctx, input.ProfileID)
	if err != nil {
		if errors.Is(err, domainverify.ErrNoActiveVerification) {
			return nil, apperror.NewNotFound("domain verification", input.ProfileID.String())
		}
		return nil, apperror.NewInternal("failed to load domain verification", err)
	}

	return &DomainStatusOutput{Verification: v}, nil
}
