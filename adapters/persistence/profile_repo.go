package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type postgresProfileRepo struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresProfileRepo(db *pgxpool.Pool, logger logger.Logger) profile.Repository {
	return &postgresProfileRepo{db: db, logger: logger}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const profileColumns = `
	id, user_id, slug, name, tagline, bio, skills, work_history, projects,
	social_links, external_links, avatar_url, custom_domain,
	custom_domain_verified, theme, is_published, seo_title, seo_description,
	view_count, download_count, link_click_count, last_slug_change,
	created_at, updated_at`

func (r *postgresProfileRepo) scanProfile(row pgx.Row) (*profile.Profile, error) {
	p := &profile.Profile{}
	var skillsBytes, workHistoryBytes, projectsBytes, socialLinksBytes, linksBytes []byte
	var avatarURL, customDomain sql.NullString
	var lastSlugChange sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Slug,
		&p.Name,
		&p.Tagline,
		&p.Bio,
		&skillsBytes,
		&workHistoryBytes,
		&projectsBytes,
		&socialLinksBytes,
		&linksBytes,
		&avatarURL,
		&customDomain,
		&p.CustomDomainVerified,
		&p.Theme,
		&p.IsPublished,
		&p.SEOTitle,
		&p.SEODescription,
		&p.ViewCount,
		&p.DownloadCount,
		&p.LinkClickCount,
		&lastSlugChange,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile row: %w", err)
	}

	if avatarURL.Valid {
		p.AvatarURL = &avatarURL.String
	}
	if customDomain.Valid {
		p.CustomDomain = &customDomain.String
	}
	if lastSlugChange.Valid {
		t := lastSlugChange.Time
		p.LastSlugChange = &t
	}

	if err := json.Unmarshal(skillsBytes, &p.Skills); err != nil {
		r.logger.Warn("Failed to unmarshal skills", zap.String("profile_id", p.ID.String()), zap.Error(err))
		p.Skills = []string{}
	}
	if err := json.Unmarshal(workHistoryBytes, &p.WorkHistory); err != nil {
		r.logger.Warn("Failed to unmarshal work_history", zap.String("profile_id", p.ID.String()), zap.Error(err))
		p.WorkHistory = []profile.WorkExperience{}
	}
	if err := json.Unmarshal(projectsBytes, &p.Projects); err != nil {
		r.logger.Warn("Failed to unmarshal projects", zap.String("profile_id", p.ID.String()), zap.Error(err))
		p.Projects = []profile.Project{}
	}
	if err := json.Unmarshal(socialLinksBytes, &p.SocialLinks); err != nil {
		r.logger.Warn("Failed to unmarshal social_links", zap.String("profile_id", p.ID.String()), zap.Error(err))
		p.SocialLinks = profile.SocialLinks{}
	}
	if err := json.Unmarshal(linksBytes, &p.ExternalLinks); err != nil {
		r.logger.Warn("Failed to unmarshal external_links", zap.String("profile_id", p.ID.String()), zap.Error(err))
		p.ExternalLinks = []profile.ExternalLink{}
	}

	return p, nil
}

func marshalProfileJSON(p *profile.Profile) (skills, workHistory, projects, socialLinks, links []byte, err error) {
	if skills, err = json.Marshal(p.Skills); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal skills: %w", err)
	}
	if workHistory, err = json.Marshal(p.WorkHistory); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal work_history: %w", err)
	}
	if projects, err = json.Marshal(p.Projects); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal projects: %w", err)
	}
	if socialLinks, err = json.Marshal(p.SocialLinks); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal social_links: %w", err)
	}
	if links, err = json.Marshal(p.ExternalLinks); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal external_links: %w", err)
	}
	return skills, workHistory, projects, socialLinks, links, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *postgresProfileRepo) Create(ctx context.Context, p *profile.Profile) error {
	skills, workHistory, projects, socialLinks, links, err := marshalProfileJSON(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (
			id, user_id, slug, name, tagline, bio, skills, work_history,
			projects, social_links, external_links, theme, is_published,
			seo_title, seo_description, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.Exec(ctx, query,
		p.ID, p.UserID, p.Slug, p.Name, p.Tagline, p.Bio,
		skills, workHistory, projects, socialLinks, links,
		p.Theme, p.IsPublished, p.SEOTitle, p.SEODescription,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "profiles_user_id_key" {
				return profile.ErrProfileExists
			}
			return profile.ErrSlugTaken
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *postgresProfileRepo) Update(ctx context.Context, p *profile.Profile) error {
	skills, workHistory, projects, socialLinks, links, err := marshalProfileJSON(p)
	if err != nil {
		return err
	}

	// Tile click counters are owned by the click pipeline: for tiles that
	// already exist, the stored counter wins over whatever the caller
	// carried, inside the same row-locking statement as the click bump.
	query := `
		UPDATE profiles SET
			name = $2, tagline = $3, bio = $4, skills = $5, work_history = $6,
			projects = $7, social_links = $8,
			external_links = COALESCE((
				SELECT jsonb_agg(
					jsonb_set(new_elem, '{click_count}', COALESCE(
						(SELECT old_elem->'click_count'
						 FROM jsonb_array_elements(profiles.external_links) AS old_elem
						 WHERE old_elem->>'id' = new_elem->>'id'),
						new_elem->'click_count', '0'::jsonb))
					ORDER BY ord)
				FROM jsonb_array_elements($9::jsonb) WITH ORDINALITY AS t(new_elem, ord)
			), '[]'::jsonb),
			theme = $10, seo_title = $11, seo_description = $12, updated_at = NOW()
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Tagline, p.Bio,
		skills, workHistory, projects, socialLinks, links,
		p.Theme, p.SEOTitle, p.SEODescription,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

// ChangeSlug only writes if the cooldown boundary still holds at the store,
// so two concurrent renames cannot both slip past the application check.
func (r *postgresProfileRepo) ChangeSlug(ctx context.Context, id uuid.UUID, newSlug string, changedAt, cooldownBoundary time.Time) error {
	query := `
		UPDATE profiles
		SET slug = $2, last_slug_change = $3, updated_at = NOW()
		WHERE id = $1 AND (last_slug_change IS NULL OR last_slug_change <= $4)
	`
	cmdTag, err := r.db.Exec(ctx, query, id, newSlug, changedAt, cooldownBoundary)
	if err != nil {
		if isUniqueViolation(err) {
			return profile.ErrSlugTaken
		}
		return fmt.Errorf("failed to change slug: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrSlugCooldown
	}
	return nil
}

func (r *postgresProfileRepo) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	query := `UPDATE profiles SET is_published = $2, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, published)
	if err != nil {
		return fmt.Errorf("failed to set published: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

func (r *postgresProfileRepo) SetCustomDomain(ctx context.Context, id uuid.UUID, domain *string, verified bool) error {
	query := `UPDATE profiles SET custom_domain = $2, custom_domain_verified = $3, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, domain, verified)
	if err != nil {
		return fmt.Errorf("failed to set custom domain: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

func (r *postgresProfileRepo) SetDomainVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	query := `UPDATE profiles SET custom_domain_verified = $2, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, verified)
	if err != nil {
		return fmt.Errorf("failed to set domain verified: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

func (r *postgresProfileRepo) SetAvatarURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `UPDATE profiles SET avatar_url = $2, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, url)
	if err != nil {
		return fmt.Errorf("failed to set avatar url: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

func (r *postgresProfileRepo) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return r.scanProfile(r.db.QueryRow(ctx, query, id))
}

func (r *postgresProfileRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return r.scanProfile(r.db.QueryRow(ctx, query, userID))
}

func (r *postgresProfileRepo) FindBySlug(ctx context.Context, slug string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE slug = $1`
	return r.scanProfile(r.db.QueryRow(ctx, query, slug))
}

func (r *postgresProfileRepo) FindByVerifiedDomain(ctx context.Context, domain string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE custom_domain = $1 AND custom_domain_verified = TRUE`
	return r.scanProfile(r.db.QueryRow(ctx, query, domain))
}

func (r *postgresProfileRepo) ListPublished(ctx context.Context, limit, offset int) ([]*profile.Profile, error) {
	builder := psql.Select(profileColumns).
		From("profiles").
		Where(sq.Eq{"is_published": true}).
		OrderBy("updated_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build published list query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query published profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*profile.Profile, 0)
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row during iteration: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return profiles, nil
}
