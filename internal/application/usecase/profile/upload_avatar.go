package profile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/cvlinkhq/cvlink/internal/application/service"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type UploadAvatarUseCase struct {
	profileRepo profile.Repository
	uploader    service.Uploader
	cache       Cache
	logger      logger.Logger
}

func NewUploadAvatarUseCase(repo profile.Repository, uploader service.Uploader, cache Cache, log logger.Logger) *UploadAvatarUseCase {
	return &UploadAvatarUseCase{
		profileRepo: repo,
		uploader:    uploader,
		cache:       cache,
		logger:      log,
	}
}

type UploadAvatarInput struct {
	ProfileID uuid.UUID
	UserID    uuid.UUID
	File      io.Reader
}

type UploadAvatarOutput struct {
	AvatarURL string
}

func (uc *UploadAvatarUseCase) Execute(ctx context.Context, input UploadAvatarInput) (*UploadAvatarOutput, error) {
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

	folder := fmt.Sprintf("profiles/%s", p.ID.String())
	url, err := uc.uploader.Upload(ctx, input.File, folder, "avatar")
	if err != nil {
		return nil, apperror.NewExternal("failed to upload avatar", err)
	}

	if err := uc.profileRepo.SetAvatarURL(ctx, p.ID, url); err != nil {
		return nil, apperror.NewInternal("failed to persist avatar url", err)
	}

	identifiers := []string{p.Slug}
	if p.CustomDomain != nil {
		identifiers = append(identifiers, *p.CustomDomain)
	}
	uc.cache.Invalidate(ctx, identifiers...)

	return &UploadAvatarOutput{AvatarURL: url}, nil
}
