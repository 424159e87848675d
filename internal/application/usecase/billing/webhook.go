package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/user"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// ApplyBillingEventUseCase consumes the billing provider's webhook: a
// subscription change arrives as {user_id, is_pro} and lands on users.is_pro.
type ApplyBillingEventUseCase struct {
	userRepo user.Repository
	logger   logger.Logger
}

func NewApplyBillingEventUseCase(repo user.Repository, log logger.Logger) *ApplyBillingEventUseCase {
	return &ApplyBillingEventUseCase{
		userRepo: repo,
		logger:   log,
	}
}

type ApplyBillingEventInput struct {
	UserID uuid.UUID
	IsPro  bool
}

func (uc *ApplyBillingEventUseCase) Execute(ctx context.Context, input ApplyBillingEventInput) error {
	if err := uc.userRepo.SetPro(ctx, input.UserID, input.IsPro); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperror.NewNotFound("user", input.UserID.String())
		}
		return apperror.NewInternal("failed to apply billing event", err)
	}

	uc.logger.Info("Billing event applied",
		zap.String("user_id", input.UserID.String()),
		zap.Bool("is_pro", input.IsPro))
	return nil
}
