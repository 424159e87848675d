package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// DirectoryFeedUseCase builds the public feed of recently published profiles,
// the discovery/SEO surface for the directory page.
type DirectoryFeedUseCase struct {
	profileRepo profile.Repository
	baseURL     string
	logger      logger.Logger
}

func NewDirectoryFeedUseCase(repo profile.Repository, baseURL string, log logger.Logger) *DirectoryFeedUseCase {
	return &DirectoryFeedUseCase{
		profileRepo: repo,
		baseURL:     baseURL,
		logger:      log,
	}
}

func (uc *DirectoryFeedUseCase) Execute(ctx context.Context) (*feeds.Feed, error) {
	feed := &feeds.Feed{
		Title:       "CVLink - Recently published profiles",
		Link:        &feeds.Link{Href: uc.baseURL},
		Description: "Newly published CV and bio-link pages.",
		Created:     time.Now(),
	}

	profiles, err := uc.profileRepo.ListPublished(ctx, 50, 0)
	if err != nil {
		return nil, apperror.NewInternal("failed to list published profiles for feed", err)
	}

	items := make([]*feeds.Item, 0, len(profiles))
	for _, p := range profiles {
		title := p.Name
		if p.SEOTitle != "" {
			title = p.SEOTitle
		}
		description := p.Tagline
		if p.SEODescription != "" {
			description = p.SEODescription
		}
		items = append(items, &feeds.Item{
			Title:       title,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/%s", uc.baseURL, p.Slug)},
			Description: description,
			Created:     p.CreatedAt,
			Updated:     p.UpdatedAt,
		})
	}
	feed.Items = items

	return feed, nil
}
