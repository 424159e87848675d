package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/user"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// SetUserFlagsUseCase applies admin moderation decisions to an account.
type SetUserFlagsUseCase struct {
	userRepo user.Repository
	logger   logger.Logger
}

func NewSetUserFlagsUseCase(repo user.Repository, log logger.Logger) *SetUserFlagsUseCase {
	return &SetUserFlagsUseCase{
		userRepo: repo,
		logger:   log,
	}
}

type SetUserFlagsInput struct {
	UserID   uuid.UUID
	IsAdmin  bool
	IsBanned bool
}

func (uc *SetUserFlagsUseCase) Execute(ctx context.Context, input SetUserFlagsInput) error {
	if err := uc.userRepo.SetFlags(ctx, input.UserID, input.IsAdmin, input.IsBanned); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperror.NewNotFound("user", input.UserID.String())
		}
		return apperror.NewInternal("failed to set user flags", err)
	}

	uc.logger.Info("User flags updated",
		zap.String("user_id", input.UserID.String()),
		zap.Bool("is_admin", input.IsAdmin),
		zap.Bool("is_banned", input.IsBanned))
	return nil
}
