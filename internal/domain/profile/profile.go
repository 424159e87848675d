package profile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("user already owns a profile")
	ErrSlugTaken       = errors.New("slug already taken")
	ErrSlugCooldown    = errors.New("slug change cooldown active")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

const (
	SlugMinLen = 3
	SlugMaxLen = 30

	MaxSkills        = 50
	MaxWorkHistory   = 50
	MaxProjects      = 50
	MaxExternalLinks = 50
)

type WorkExperience struct {
	Company     string     `json:"company"`
	Title       string     `json:"title"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Description string     `json:"description"`
}

type Project struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

// ExternalLink is one tile on the public page. ClickCount is a denormalized
// counter maintained by the analytics pipeline.
type ExternalLink struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	ClickCount int64     `json:"click_count"`
	IsActive   bool      `json:"is_active"`
	Position   int       `json:"position"`
}

type SocialLinks map[string]string

type Profile struct {
	ID                   uuid.UUID        `json:"id"`
	UserID               uuid.UUID        `json:"user_id"`
	Slug                 string           `json:"slug"`
	Name                 string           `json:"name"`
	Tagline              string           `json:"tagline"`
	Bio                  string           `json:"bio"`
	Skills               []string         `json:"skills"`
	WorkHistory          []WorkExperience `json:"work_history"`
	Projects             []Project        `json:"projects"`
	SocialLinks          SocialLinks      `json:"social_links"`
	ExternalLinks        []ExternalLink   `json:"external_links"`
	AvatarURL            *string          `json:"avatar_url"`
	CustomDomain         *string          `json:"custom_domain"`
	CustomDomainVerified bool             `json:"custom_domain_verified"`
	Theme                string           `json:"theme"`
	IsPublished          bool             `json:"is_published"`
	SEOTitle             string           `json:"seo_title"`
	SEODescription       string           `json:"seo_description"`
	ViewCount            int64            `json:"view_count"`
	DownloadCount        int64            `json:"download_count"`
	LinkClickCount       int64            `json:"link_click_count"`
	LastSlugChange       *time.Time       `json:"last_slug_change"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// ValidateSlug checks the restricted charset: lowercase alphanumerics and
// inner hyphens, 3-30 characters.
func ValidateSlug(slug string) error {
	if len(slug) < SlugMinLen || len(slug) > SlugMaxLen {
		return fmt.Errorf("slug must be %d-%d characters", SlugMinLen, SlugMaxLen)
	}
	if !slugPattern.MatchString(slug) {
		return errors.New("slug may only contain lowercase letters, digits and inner hyphens")
	}
	return nil
}

func (p *Profile) Validate() error {
	if err := ValidateSlug(p.Slug); err != nil {
		return err
	}
	if len(p.Skills) > MaxSkills {
		return fmt.Errorf("too many skills (max %d)", MaxSkills)
	}
	if len(p.WorkHistory) > MaxWorkHistory {
		return fmt.Errorf("too many work history entries (max %d)", MaxWorkHistory)
	}
	if len(p.Projects) > MaxProjects {
		return fmt.Errorf("too many projects (max %d)", MaxProjects)
	}
	if len(p.ExternalLinks) > MaxExternalLinks {
		return fmt.Errorf("too many external links (max %d)", MaxExternalLinks)
	}
	for _, l := range p.ExternalLinks {
		if l.Title == "" {
			return errors.New("external link title is required")
		}
		if err := validateHTTPURL(l.URL); err != nil {
			return fmt.Errorf("external link %q: %w", l.Title, err)
		}
	}
	for _, pr := range p.Projects {
		if pr.Name == "" {
			return errors.New("project name is required")
		}
		if pr.URL != "" {
			if err := validateHTTPURL(pr.URL); err != nil {
				return fmt.Errorf("project %q: %w", pr.Name, err)
			}
		}
	}
	return nil
}

// CanPublish enforces the publish preconditions: a name plus at least one of
// bio or work history.
func (p *Profile) CanPublish() error {
	if p.Name == "" {
		return errors.New("name is required to publish")
	}
	if p.Bio == "" && len(p.WorkHistory) == 0 {
		return errors.New("a bio or at least one work history entry is required to publish")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be absolute http(s)")
	}
	return nil
}

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	// Update persists all mutable fields except slug, publication state and
	// counters.
	Update(ctx context.Context, p *Profile) error
	// ChangeSlug renames atomically: the write succeeds only if the cooldown
	// boundary still holds at the store, returning ErrSlugCooldown otherwise
	// and ErrSlugTaken on a unique violation.
	ChangeSlug(ctx context.Context, id uuid.UUID, newSlug string, changedAt, cooldownBoundary time.Time) error
	SetPublished(ctx context.Context, id uuid.UUID, published bool) error
	SetCustomDomain(ctx context.Context, id uuid.UUID, domain *string, verified bool) error
	SetDomainVerified(ctx context.Context, id uuid.UUID, verified bool) error
	SetAvatarURL(ctx context.Context, id uuid.UUID, url string) error

	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	FindBySlug(ctx context.Context, slug string) (*Profile, error)
	FindByVerifiedDomain(ctx context.Context, domain string) (*Profile, error)
	ListPublished(ctx context.Context, limit, offset int) ([]*Profile, error)
}
