package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/internal/domain/moderation"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
)

// Profile DTOs

type WorkExperienceDTO struct {
	Company     string     `json:"company" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	StartDate   time.Time  `json:"start_date" binding:"required"`
	EndDate     *time.Time `json:"end_date"`
	Description string     `json:"description"`
}

type ProjectDTO struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type ExternalLinkDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title" binding:"required"`
	URL        string `json:"url" binding:"required"`
	ClickCount int64  `json:"click_count"`
	IsActive   bool   `json:"is_active"`
	Position   int    `json:"position"`
}

type ProfileDTO struct {
	ID                   string              `json:"id"`
	Slug                 string              `json:"slug"`
	Name                 string              `json:"name"`
	Tagline              string              `json:"tagline"`
	Bio                  string              `json:"bio"`
	Skills               []string            `json:"skills"`
	WorkHistory          []WorkExperienceDTO `json:"work_history"`
	Projects             []ProjectDTO        `json:"projects"`
	SocialLinks          map[string]string   `json:"social_links"`
	ExternalLinks        []ExternalLinkDTO   `json:"external_links"`
	AvatarURL            *string             `json:"avatar_url"`
	CustomDomain         *string             `json:"custom_domain"`
	CustomDomainVerified bool                `json:"custom_domain_verified"`
	Theme                string              `json:"theme"`
	IsPublished          bool                `json:"is_published"`
	SEOTitle             string              `json:"seo_title"`
	SEODescription       string              `json:"seo_description"`
	LastSlugChange       *time.Time          `json:"last_slug_change"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// PublicProfileDTO is the rendering payload for the public page: no
// counters, no SEO internals beyond what the page head needs.
type PublicProfileDTO struct {
	Slug           string              `json:"slug"`
	Name           string              `json:"name"`
	Tagline        string              `json:"tagline"`
	Bio            string              `json:"bio"`
	Skills         []string            `json:"skills"`
	WorkHistory    []WorkExperienceDTO `json:"work_history"`
	Projects       []ProjectDTO        `json:"projects"`
	SocialLinks    map[string]string   `json:"social_links"`
	ExternalLinks  []ExternalLinkDTO   `json:"external_links"`
	AvatarURL      *string             `json:"avatar_url"`
	Theme          string              `json:"theme"`
	SEOTitle       string              `json:"seo_title"`
	SEODescription string              `json:"seo_description"`
}

type CreateProfileRequest struct {
	Slug string `json:"slug" binding:"required"`
	Name string `json:"name"`
}

// UpdateProfileRequest is a partial patch: absent fields stay untouched.
type UpdateProfileRequest struct {
	Slug           *string              `json:"slug"`
	Name           *string              `json:"name"`
	Tagline        *string              `json:"tagline"`
	Bio            *string              `json:"bio"`
	Skills         *[]string            `json:"skills"`
	WorkHistory    *[]WorkExperienceDTO `json:"work_history"`
	Projects       *[]ProjectDTO        `json:"projects"`
	SocialLinks    *map[string]string   `json:"social_links"`
	ExternalLinks  *[]ExternalLinkDTO   `json:"external_links"`
	Theme          *string              `json:"theme"`
	SEOTitle       *string              `json:"seo_title"`
	SEODescription *string              `json:"seo_description"`
}

func toWorkExperienceDTOs(entries []profile.WorkExperience) []WorkExperienceDTO {
	dtos := make([]WorkExperienceDTO, len(entries))
	for i, e := range entries {
		dtos[i] = WorkExperienceDTO{
			Company:     e.Company,
			Title:       e.Title,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
			Description: e.Description,
		}
	}
	return dtos
}

func toProjectDTOs(projects []profile.Project) []ProjectDTO {
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = ProjectDTO{Name: p.Name, Description: p.Description, URL: p.URL}
	}
	return dtos
}

func toExternalLinkDTOs(links []profile.ExternalLink, includeCounts bool) []ExternalLinkDTO {
	dtos := make([]ExternalLinkDTO, 0, len(links))
	for _, l := range links {
		dto := ExternalLinkDTO{
			ID:       l.ID.String(),
			Title:    l.Title,
			URL:      l.URL,
			IsActive: l.IsActive,
			Position: l.Position,
		}
		if includeCounts {
			dto.ClickCount = l.ClickCount
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

func ToProfileDTO(p *profile.Profile) ProfileDTO {
	return ProfileDTO{
		ID:                   p.ID.String(),
		Slug:                 p.Slug,
		Name:                 p.Name,
		Tagline:              p.Tagline,
		Bio:                  p.Bio,
		Skills:               p.Skills,
		WorkHistory:          toWorkExperienceDTOs(p.WorkHistory),
		Projects:             toProjectDTOs(p.Projects),
		SocialLinks:          p.SocialLinks,
		ExternalLinks:        toExternalLinkDTOs(p.ExternalLinks, true),
		AvatarURL:            p.AvatarURL,
		CustomDomain:         p.CustomDomain,
		CustomDomainVerified: p.CustomDomainVerified,
		Theme:                p.Theme,
		IsPublished:          p.IsPublished,
		SEOTitle:             p.SEOTitle,
		SEODescription:       p.SEODescription,
		LastSlugChange:       p.LastSlugChange,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func ToPublicProfileDTO(p *profile.Profile) PublicProfileDTO {
	activeLinks := make([]profile.ExternalLink, 0, len(p.ExternalLinks))
	for _, l := range p.ExternalLinks {
		if l.IsActive {
			activeLinks = append(activeLinks, l)
		}
	}
	return PublicProfileDTO{
		Slug:           p.Slug,
		Name:           p.Name,
		Tagline:        p.Tagline,
		Bio:            p.Bio,
		Skills:         p.Skills,
		WorkHistory:    toWorkExperienceDTOs(p.WorkHistory),
		Projects:       toProjectDTOs(p.Projects),
		SocialLinks:    p.SocialLinks,
		ExternalLinks:  toExternalLinkDTOs(activeLinks, false),
		AvatarURL:      p.AvatarURL,
		Theme:          p.Theme,
		SEOTitle:       p.SEOTitle,
		SEODescription: p.SEODescription,
	}
}

func (req *UpdateProfileRequest) ToDomainWorkHistory() *[]profile.WorkExperience {
	if req.WorkHistory == nil {
		return nil
	}
	entries := make([]profile.WorkExperience, len(*req.WorkHistory))
	for i, e := range *req.WorkHistory {
		entries[i] = profile.WorkExperience{
			Company:     e.Company,
			Title:       e.Title,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
			Description: e.Description,
		}
	}
	return &entries
}

func (req *UpdateProfileRequest) ToDomainProjects() *[]profile.Project {
	if req.Projects == nil {
		return nil
	}
	projects := make([]profile.Project, len(*req.Projects))
	for i, p := range *req.Projects {
		projects[i] = profile.Project{Name: p.Name, Description: p.Description, URL: p.URL}
	}
	return &projects
}

func (req *UpdateProfileRequest) ToDomainExternalLinks() *[]profile.ExternalLink {
	if req.ExternalLinks == nil {
		return nil
	}
	links := make([]profile.ExternalLink, len(*req.ExternalLinks))
	for i, l := range *req.ExternalLinks {
		id := uuid.Nil
		if parsed, err := uuid.Parse(l.ID); err == nil {
			id = parsed
		}
		links[i] = profile.ExternalLink{
			ID:       id,
			Title:    l.Title,
			URL:      l.URL,
			IsActive: l.IsActive,
			Position: l.Position,
		}
	}
	return &links
}

func (req *UpdateProfileRequest) ToDomainSocialLinks() *profile.SocialLinks {
	if req.SocialLinks == nil {
		return nil
	}
	s := profile.SocialLinks(*req.SocialLinks)
	return &s
}

// Domain verification DTOs

type SubmitDomainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

type DomainVerificationDTO struct {
	Domain             string     `json:"domain"`
	VerificationStatus string     `json:"verification_status"`
	CnameTarget        string     `json:"cname_target"`
	DNSRecords         []string   `json:"dns_records"`
	SSLStatus          string     `json:"ssl_status"`
	LastChecked        *time.Time `json:"last_checked"`
	CreatedAt          time.Time  `json:"created_at"`
}

func ToDomainVerificationDTO(v *domainverify.DomainVerification) DomainVerificationDTO {
	return DomainVerificationDTO{
		Domain:             v.Domain,
		VerificationStatus: string(v.VerificationStatus),
		CnameTarget:        v.CnameTarget,
		DNSRecords:         v.DNSRecords,
		SSLStatus:          string(v.SSLStatus),
		LastChecked:        v.LastChecked,
		CreatedAt:          v.CreatedAt,
	}
}

// Moderation DTOs

type ReportProfileRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ReviewReportRequest struct {
	Status string `json:"status" binding:"required,oneof=reviewed dismissed"`
}

type ReportDTO struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func ToReportDTO(r *moderation.Report) ReportDTO {
	return ReportDTO{
		ID:        r.ID.String(),
		ProfileID: r.ProfileID.String(),
		Reason:    r.Reason,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

// Webhook / admin DTOs

type BillingWebhookRequest struct {
	UserID string `json:"user_id" binding:"required"`
	IsPro  *bool  `json:"is_pro" binding:"required"`
}

type SetUserFlagsRequest struct {
	IsAdmin  bool `json:"is_admin"`
	IsBanned bool `json:"is_banned"`
}
