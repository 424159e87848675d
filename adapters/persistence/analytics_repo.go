package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cvlinkhq/cvlink/internal/domain/analytics"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
)

type postgresAnalyticsRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAnalyticsRepo(db *pgxpool.Pool) analytics.Repository {
	return &postgresAnalyticsRepo{db: db}
}

// RecordView appends the event and bumps the denormalized counter in one
// transaction. The increment is done at the store, never read-modify-write.
func (r *postgresAnalyticsRepo) RecordView(ctx context.Context, v *analytics.ProfileView) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin view transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO profile_views (id, profile_id, ip_address, user_agent, referrer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		v.ID, v.ProfileID, v.IPAddress, v.UserAgent, v.Referrer, v.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert profile view: %w", err)
	}

	bumpQuery := `UPDATE profiles SET view_count = view_count + 1 WHERE id = $1`
	cmdTag, err := tx.Exec(ctx, bumpQuery, v.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to bump view count: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}

	return tx.Commit(ctx)
}

func (r *postgresAnalyticsRepo) RecordLinkClick(ctx context.Context, c *analytics.LinkClick) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin click transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO link_clicks (id, profile_id, link_id, link_url, ip_address, user_agent, referrer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		c.ID, c.ProfileID, c.LinkID, c.LinkURL, c.IPAddress, c.UserAgent, c.Referrer, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert link click: %w", err)
	}

	// Bump the profile counter and the matching tile counter inside the
	// external_links JSONB in a single statement.
	bumpQuery := `
		UPDATE profiles
		SET link_click_count = link_click_count + 1,
			external_links = COALESCE((
				SELECT jsonb_agg(
					CASE WHEN elem->>'id' = $2::text
						THEN jsonb_set(elem, '{click_count}', to_jsonb(COALESCE((elem->>'click_count')::bigint, 0) + 1))
						ELSE elem
					END)
				FROM jsonb_array_elements(external_links) AS elem
			), '[]'::jsonb)
		WHERE id = $1
	`
	cmdTag, err := tx.Exec(ctx, bumpQuery, c.ProfileID, c.LinkID.String())
	if err != nil {
		return fmt.Errorf("failed to bump link click count: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}

	return tx.Commit(ctx)
}

func (r *postgresAnalyticsRepo) RecordDownload(ctx context.Context, profileID uuid.UUID) error {
	query := `UPDATE profiles SET download_count = download_count + 1 WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, profileID)
	if err != nil {
		return fmt.Errorf("failed to bump download count: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

func (r *postgresAnalyticsRepo) GetSummary(ctx context.Context, profileID uuid.UUID) (*analytics.Summary, error) {
	query := `SELECT view_count, download_count, link_click_count FROM profiles WHERE id = $1`
	s := &analytics.Summary{}
	err := r.db.QueryRow(ctx, query, profileID).Scan(&s.Views, &s.Downloads, &s.LinkClicks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to read analytics summary: %w", err)
	}
	return s, nil
}

// RebuildCounters recounts the event tables into the denormalized profile
// counters. Download events have no event table, so that counter is kept.
func (r *postgresAnalyticsRepo) RebuildCounters(ctx context.Context, profileID uuid.UUID) error {
	query := `
		UPDATE profiles SET
			view_count = (SELECT COUNT(*) FROM profile_views WHERE profile_id = $1),
			link_click_count = (SELECT COUNT(*) FROM link_clicks WHERE profile_id = $1)
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query, profileID)
	if err != nil {
		return fmt.Errorf("failed to rebuild counters: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}
