package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/adapters/event"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// ViewDeduper is the short-window per-IP filter in front of view counting.
type ViewDeduper interface {
	MarkViewed(ctx context.Context, profileID uuid.UUID, ip string) bool
}

// TrackEventsUseCase sits on the public render/click path. Everything it
// publishes is fire-and-forget: a broker outage may undercount, it never
// fails the page or the click navigation.
type TrackEventsUseCase struct {
	kafkaClient *event.KafkaProducerClient
	deduper     ViewDeduper
	logger      logger.Logger
}

func NewTrackEventsUseCase(kClient *event.KafkaProducerClient, deduper ViewDeduper, log logger.Logger) *TrackEventsUseCase {
	return &TrackEventsUseCase{
		kafkaClient: kClient,
		deduper:     deduper,
		logger:      log,
	}
}

type RequestMeta struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

func (uc *TrackEventsUseCase) TrackView(ctx context.Context, p *profile.Profile, meta RequestMeta) {
	if uc.deduper.MarkViewed(ctx, p.ID, meta.IPAddress) {
		return
	}

	payload := event.ViewEventPayload{
		ProfileID:  p.ID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
		OccurredAt: time.Now().UTC(),
	}
	go func() {
		if err := uc.kafkaClient.PublishViewEvent(context.Background(), payload); err != nil {
			uc.logger.Warn("Failed to publish view event",
				zap.String("profile_id", p.ID.String()), zap.Error(err))
		}
	}()
}

// TrackClick validates the link against the profile before publishing so a
// forged link id cannot inflate counters. The returned URL is the redirect
// destination.
func (uc *TrackEventsUseCase) TrackClick(ctx context.Context, p *profile.Profile, linkID uuid.UUID, meta RequestMeta) (string, error) {
	var url string
	for _, l := range p.ExternalLinks {
		if l.ID == linkID && l.IsActive {
			url = l.URL
			break
		}
	}
	if url == "" {
		return "", apperror.NewNotFound("link", linkID.String())
	}

	payload := event.ClickEventPayload{
		ProfileID:  p.ID,
		LinkID:     linkID,
		LinkURL:    url,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
		OccurredAt: time.Now().UTC(),
	}
	go func() {
		if err := uc.kafkaClient.PublishClickEvent(context.Background(), payload); err != nil {
			uc.logger.Warn("Failed to publish click event",
				zap.String("profile_id", p.ID.String()), zap.Error(err))
		}
	}()

	return url, nil
}

func (uc *TrackEventsUseCase) TrackDownload(ctx context.Context, p *profile.Profile) {
	payload := event.DownloadEventPayload{
		ProfileID:  p.ID,
		OccurredAt: time.Now().UTC(),
	}
	go func() {
		if err := uc.kafkaClient.PublishDownloadEvent(context.Background(), payload); err != nil {
			uc.logger.Warn("Failed to publish download event",
				zap.String("profile_id", p.ID.String()), zap.Error(err))
		}
	}()
}
