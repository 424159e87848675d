package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProfileView is an immutable append-only record of one public page render.
type ProfileView struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkClick is an immutable append-only record of one external-link click.
type LinkClick struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	LinkID    uuid.UUID `json:"link_id"`
	LinkURL   string    `json:"link_url"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the dashboard read, served from the denormalized profile
// counters, never recomputed from the event tables on the read path.
type Summary struct {
	Views      int64 `json:"views"`
	Downloads  int64 `json:"downloads"`
	LinkClicks int64 `json:"link_clicks"`
}

type Repository interface {
	// RecordView appends the event row and applies the atomic view counter
	// increment in one transaction.
	RecordView(ctx context.Context, v *ProfileView) error
	// RecordLinkClick appends the event row and bumps both the profile and
	// the matching tile counter in one transaction.
	RecordLinkClick(ctx context.Context, c *LinkClick) error
	RecordDownload(ctx context.Context, profileID uuid.UUID) error
	GetSummary(ctx context.Context, profileID uuid.UUID) (*Summary, error)
	// RebuildCounters re-aggregates the event tables into the profile
	// counters. Idempotent; the reconciliation batch job.
	RebuildCounters(ctx context.Context, profileID uuid.UUID) error
}
