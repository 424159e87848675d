package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/adapters/event"
	"github.com/cvlinkhq/cvlink/internal/domain/analytics"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// ProcessEventsUseCase is the worker-side consumer: it turns published
// events into append-only rows plus atomic counter increments.
type ProcessEventsUseCase struct {
	analyticsRepo analytics.Repository
	logger        logger.Logger
}

func NewProcessEventsUseCase(repo analytics.Repository, log logger.Logger) *ProcessEventsUseCase {
	return &ProcessEventsUseCase{
		analyticsRepo: repo,
		logger:        log,
	}
}

// ExecuteView applies one view event. A vanished profile is not an error
// worth retrying: the event is dropped.
func (uc *ProcessEventsUseCase) ExecuteView(ctx context.Context, payload event.ViewEventPayload) error {
	v := &analytics.ProfileView{
		ID:        uuid.New(),
		ProfileID: payload.ProfileID,
		IPAddress: payload.IPAddress,
		UserAgent: payload.UserAgent,
		Referrer:  payload.Referrer,
		CreatedAt: occurredOrNow(payload.OccurredAt),
	}

	err := uc.analyticsRepo.RecordView(ctx, v)
	if errors.Is(err, profile.ErrProfileNotFound) {
		uc.logger.Warn("Dropping view event for missing profile",
			zap.String("profile_id", payload.ProfileID.String()))
		return nil
	}
	return err
}

func (uc *ProcessEventsUseCase) ExecuteClick(ctx context.Context, payload event.ClickEventPayload) error {
	c := &analytics.LinkClick{
		ID:        uuid.New(),
		ProfileID: payload.ProfileID,
		LinkID:    payload.LinkID,
		LinkURL:   payload.LinkURL,
		IPAddress: payload.IPAddress,
		UserAgent: payload.UserAgent,
		Referrer:  payload.Referrer,
		CreatedAt: occurredOrNow(payload.OccurredAt),
	}

	err := uc.analyticsRepo.RecordLinkClick(ctx, c)
	if errors.Is(err, profile.ErrProfileNotFound) {
		uc.logger.Warn("Dropping click event for missing profile",
			zap.String("profile_id", payload.ProfileID.String()))
		return nil
	}
	return err
}

func (uc *ProcessEventsUseCase) ExecuteDownload(ctx context.Context, payload event.DownloadEventPayload) error {
	err := uc.analyticsRepo.RecordDownload(ctx, payload.ProfileID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		uc.logger.Warn("Dropping download event for missing profile",
			zap.String("profile_id", payload.ProfileID.String()))
		return nil
	}
	return err
}

func occurredOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
