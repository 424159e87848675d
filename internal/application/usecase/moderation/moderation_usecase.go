package moderation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/moderation"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

const maxReasonLen = 2000

type ModerationUseCase struct {
	reportRepo  moderation.Repository
	profileRepo profile.Repository
	logger      logger.Logger
}

func NewModerationUseCase(rRepo moderation.Repository, pRepo profile.Repository, log logger.Logger) *ModerationUseCase {
	return &ModerationUseCase{
		reportRepo:  rRepo,
		profileRepo: pRepo,
		logger:      log,
	}
}

type ReportProfileInput struct {
	ProfileID  uuid.UUID
	ReportedBy string
	Reason     string
}

type ReportProfileOutput struct {
	Report *moderation.Report
}

// ExecuteReport files a report from any viewer. The profile must exist but
// need not be published; reports against drafts from stale links still land.
func (uc *ModerationUseCase) ExecuteReport(ctx context.Context, input ReportProfileInput) (*ReportProfileOutput, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperror.NewInvalidInput("report reason is required", nil)
	}
	if len(reason) > maxReasonLen {
		return nil, apperror.NewInvalidInput("report reason is too long", nil)
	}

	if _, err := uc.profileRepo.FindByID(ctx, input.ProfileID); err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, apperror.NewNotFound("profile", input.ProfileID.String())
		}
		return nil, apperror.NewInternal("failed to load profile", err)
	}

	now := time.Now().UTC()
	report := &moderation.Report{
		ID:         uuid.New(),
		ProfileID:  input.ProfileID,
		ReportedBy: input.ReportedBy,
		Reason:     reason,
		Status:     moderation.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.reportRepo.Create(ctx, report); err != nil {
		return nil, apperror.NewInternal("failed to file report", err)
	}

	uc.logger.Info("Moderation report filed",
		zap.String("profile_id", input.ProfileID.String()),
		zap.String("report_id", report.ID.String()))

	return &ReportProfileOutput{Report: report}, nil
}

type ListReportsInput struct {
	Status *moderation.Status
	Limit  int
	Offset int
}

type ListReportsOutput struct {
	Reports []*moderation.Report
}

func (uc *ModerationUseCase) ExecuteList(ctx context.Context, input ListReportsInput) (*ListReportsOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 50
	}
	reports, err := uc.reportRepo.List(ctx, input.Status, input.Limit, input.Offset)
	if err != nil {
		return nil, apperror.NewInternal("failed to list reports", err)
	}
	return &ListReportsOutput{Reports: reports}, nil
}

type ReviewReportInput struct {
	ReportID uuid.UUID
	Status   moderation.Status
}

// ExecuteReview transitions a report's status. Admin-only; the handler
// enforces the role.
func (uc *ModerationUseCase) ExecuteReview(ctx context.Context, input ReviewReportInput) error {
	if !moderation.ValidStatus(input.Status) || input.Status == moderation.StatusPending {
		return apperror.NewInvalidInput("status must be 'reviewed' or 'dismissed'", nil)
	}

	if err := uc.reportRepo.UpdateStatus(ctx, input.ReportID, input.Status); err != nil {
		if errors.Is(err, moderation.ErrReportNotFound) {
			return apperror.NewNotFound("report", input.ReportID.String())
		}
		return apperror.NewInternal("failed to update report", err)
	}
	return nil
}
