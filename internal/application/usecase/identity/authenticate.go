package identity

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/user"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/auth"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// AuthenticateUseCase maps a validated identity-provider claim set onto the
// local User row, creating it on first sight. Identity fields are refreshed
// on every request; flags (pro/admin/banned) are owned locally and never
// touched here.
type AuthenticateUseCase struct {
	userRepo user.Repository
	logger   logger.Logger
}

func NewAuthenticateUseCase(repo user.Repository, log logger.Logger) *AuthenticateUseCase {
	return &AuthenticateUseCase{
		userRepo: repo,
		logger:   log,
	}
}

type AuthenticateInput struct {
	Claims *auth.IdentityClaims
}

type AuthenticateOutput struct {
	User *user.User
}

func (uc *AuthenticateUseCase) Execute(ctx context.Context, input AuthenticateInput) (*AuthenticateOutput, error) {
	candidate := &user.User{
		ID:      uuid.New(),
		Subject: input.Claims.Subject,
	}
	if input.Claims.Email != "" {
		candidate.Email = &input.Claims.Email
	}
	if input.Claims.FirstName != "" {
		candidate.FirstName = &input.Claims.FirstName
	}
	if input.Claims.LastName != "" {
		candidate.LastName = &input.Claims.LastName
	}
	if input.Claims.ProfileImageURL != "" {
		candidate.ProfileImageURL = &input.Claims.ProfileImageURL
	}

	u, err := uc.userRepo.UpsertBySubject(ctx, candidate)
	if err != nil {
		return nil, apperror.NewInternal("failed to upsert user", err)
	}

	if u.IsBanned {
		uc.logger.Warn("Banned user attempted access", zap.String("user_id", u.ID.String()))
		return nil, apperror.NewPermissionDenied("account is banned")
	}

	return &AuthenticateOutput{User: u}, nil
}
