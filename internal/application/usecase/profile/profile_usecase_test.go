package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// memProfileRepo mimics the store's uniqueness and conditional-write
// semantics so the concurrency behavior under test matches production.
type memProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*profile.Profile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: make(map[uuid.UUID]*profile.Profile)}
}

func (r *memProfileRepo) Create(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.profiles {
		if existing.UserID == p.UserID {
			return profile.ErrProfileExists
		}
		if existing.Slug == p.Slug {
			return profile.ErrSlugTaken
		}
	}
	clone := *p
	r.profiles[p.ID] = &clone
	return nil
}

func (r *memProfileRepo) Update(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[p.ID]
	if !ok {
		return profile.ErrProfileNotFound
	}
	clone := *p
	clone.Slug = stored.Slug
	clone.IsPublished = stored.IsPublished
	clone.LastSlugChange = stored.LastSlugChange
	r.profiles[p.ID] = &clone
	return nil
}

func (r *memProfileRepo) ChangeSlug(_ context.Context, id uuid.UUID, newSlug string, changedAt, cooldownBoundary time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[id]
	if !ok {
		return profile.ErrProfileNotFound
	}
	for _, existing := range r.profiles {
		if existing.ID != id && existing.Slug == newSlug {
			return profile.ErrSlugTaken
		}
	}
	if stored.LastSlugChange != nil && stored.LastSlugChange.After(cooldownBoundary) {
		return profile.ErrSlugCooldown
	}
	stored.Slug = newSlug
	stored.LastSlugChange = &changedAt
	return nil
}

func (r *memProfileRepo) SetPublished(_ context.Context, id uuid.UUID, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[id]
	if !ok {
		return profile.ErrProfileNotFound
	}
	stored.IsPublished = published
	return nil
}

func (r *memProfileRepo) SetCustomDomain(_ context.Context, id uuid.UUID, domain *string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[id]
	if !ok {
		return profile.ErrProfileNotFound
	}
	stored.CustomDomain = domain
	stored.CustomDomainVerified = verified
	return nil
}

func (r *memProfileRepo) SetDomainVerified(_ context.Context, id uuid.UUID, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[id]
	if !ok {
		return profile.ErrProfileNotFound
	}
	stored.CustomDomainVerified = verified
	return nil
}

func (r *memProfileRepo) SetAvatarURL(_ context.Context, id uuid.UUID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[id]
	if !ok {
		return profile.ErrProfileNotFound
	}
	stored.AvatarURL = &url
	return nil
}

func (r *memProfileRepo) FindByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	clone := *stored
	return &clone, nil
}

func (r *memProfileRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.profiles {
		if stored.UserID == userID {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, profile.ErrProfileNotFound
}

func (r *memProfileRepo) FindBySlug(_ context.Context, slug string) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.profiles {
		if stored.Slug == slug {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, profile.ErrProfileNotFound
}

func (r *memProfileRepo) FindByVerifiedDomain(_ context.Context, domain string) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.profiles {
		if stored.CustomDomain != nil && *stored.CustomDomain == domain && stored.CustomDomainVerified {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, profile.ErrProfileNotFound
}

func (r *memProfileRepo) ListPublished(_ context.Context, limit, offset int) ([]*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*profile.Profile, 0)
	for _, stored := range r.profiles {
		if stored.IsPublished {
			clone := *stored
			out = append(out, &clone)
		}
	}
	return out, nil
}

// memCache records invalidations and serves Get/Set for the resolve path.
type memCache struct {
	mu          sync.Mutex
	entries     map[string]*profile.Profile
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*profile.Profile)}
}

func (c *memCache) Get(_ context.Context, identifier string) (*profile.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[identifier]
	return p, ok
}

func (c *memCache) Set(_ context.Context, identifier string, p *profile.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[identifier] = p
}

func (c *memCache) Invalidate(_ context.Context, identifiers ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range identifiers {
		delete(c.entries, id)
		c.invalidated = append(c.invalidated, id)
	}
}

func seedProfile(t *testing.T, repo *memProfileRepo, slug string) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Slug:        slug,
		Name:        "Jane Doe",
		Bio:         "Engineer.",
		SocialLinks: profile.SocialLinks{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func assertKind(t *testing.T, err error, base error) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, errors.Is(appErr.BaseError, base), "expected %v, got %v", base, appErr.BaseError)
}

func TestCreateProfile(t *testing.T) {
	ctx := context.Background()
	repo := newMemProfileRepo()
	uc := NewCreateProfileUseCase(repo, logger.NewNopLogger())

	t.Run("creates a draft profile", func(t *testing.T) {
		out, err := uc.Execute(ctx, CreateProfileInput{UserID: uuid.New(), Slug: "jane-doe", Name: "Jane"})
		require.NoError(t, err)
		assert.False(t, out.Profile.IsPublished)
		assert.Equal(t, "default", out.Profile.Theme)
		assert.NotEqual(t, uuid.Nil, out.Profile.ID)
	})

	t.Run("rejects invalid slug", func(t *testing.T) {
		_, err := uc.Execute(ctx, CreateProfileInput{UserID: uuid.New(), Slug: "Bad Slug"})
		assertKind(t, err, apperror.ErrInvalidInput)
	})

	t.Run("taken slug is a conflict", func(t *testing.T) {
		_, err := uc.Execute(ctx, CreateProfileInput{UserID: uuid.New(), Slug: "jane-doe"})
		assertKind(t, err, apperror.ErrConflict)
	})

	t.Run("second profile for the same user is a conflict", func(t *testing.T) {
		userID := uuid.New()
		_, err := uc.Execute(ctx, CreateProfileInput{UserID: userID, Slug: "first-slug"})
		require.NoError(t, err)
		_, err = uc.Execute(ctx, CreateProfileInput{UserID: userID, Slug: "second-slug"})
		assertKind(t, err, apperror.ErrConflict)
	})
}

func TestCreateProfile_ConcurrentSameSlug(t *testing.T) {
	ctx := context.Background()
	repo := newMemProfileRepo()
	uc := NewCreateProfileUseCase(repo, logger.NewNopLogger())

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Execute(ctx, CreateProfileInput{UserID: uuid.New(), Slug: "contested"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assertKind(t, err, apperror.ErrConflict)
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent create may win the slug")
}

func TestUpdateProfile_SlugCooldown(t *testing.T) {
	ctx := context.Background()
	repo := newMemProfileRepo()
	cache := newMemCache()
	uc := NewUpdateProfileUseCase(repo, cache, 30*24*time.Hour, logger.NewNopLogger())

	p := seedProfile(t, repo, "jane-doe")

	newSlug := "jane-doe-dev"
	out, err := uc.Execute(ctx, UpdateProfileInput{ProfileID: p.ID, UserID: p.UserID, Slug: &newSlug})
	require.NoError(t, err)
	assert.Equal(t, newSlug, out.Profile.Slug)
	assert.NotNil(t, out.Profile.LastSlugChange)
	assert.Contains(t, cache.invalidated, "jane-doe", "old slug must be evicted")

	// A second rename inside the cooldown window is rate limited with a
	// retry hint.
	another := "jane-again"
	_, err = uc.Execute(ctx, UpdateProfileInput{ProfileID: p.ID, UserID: p.UserID, Slug: &another})
	assertKind(t, err, apperror.ErrRateLimited)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Greater(t, appErr.RetryAfter, time.Duration(0))

	// Same-value "renames" are no-ops and never trip the cooldown.
	same := newSlug
	_, err = uc.Execute(ctx, UpdateProfileInput{ProfileID: p.ID, UserID: p.UserID, Slug: &same})
	assert.NoError(t, err)

	// A rate-limited rename refuses the whole patch: no field edit may land.
	name := "Changed Name"
	_, err = uc.Execute(ctx, UpdateProfileInput{ProfileID: p.ID, UserID: p.UserID, Name: &name, Slug: &another})
	assertKind(t, err, apperror.ErrRateLimited)

	stored, findErr := repo.FindByID(ctx, p.ID)
	require.NoError(t, findErr)
	assert.Equal(t, "Jane Doe", stored.Name, "refused rename must not commit the other fields")
	assert.Equal(t, newSlug, stored.Slug)
}

func TestUpdateProfile_PatchCannotSetClickCounts(t *testing.T) {
	ctx := context.Background()
	repo := newMemProfileRepo()
	uc := NewUpdateProfileUseCase(repo, newMemCache(), time.Hour, logger.NewNopLogger())

	p := seedProfile(t, repo, "jane-doe")
	linkID := uuid.New()
	p.ExternalLinks = []profile.ExternalLink{{ID: linkID, Title: "GitHub", URL: "https://github.com/jane", ClickCount: 7, IsActive: true}}
	require.NoError(t, repo.Update(ctx, p))

	patch := []profile.ExternalLink{
		{ID: linkID, Title: "GitHub", URL: "https://github.com/jane", ClickCount: 9999, IsActive: true},
		{Title: "Blog", URL: "https://blog.example.com", ClickCount: 1234, IsActive: true},
	}
	out, err := uc.Execute(ctx, UpdateProfileInput{ProfileID: p.ID, UserID: p.UserID, ExternalLinks: &patch})
	require.NoError(t, err)

	require.Len(t, out.Profile.ExternalLinks, 2)
	assert.Equal(t, int64(7), out.Profile.ExternalLinks[0].ClickCount, "existing counter carried over")
	assert.Equal(t, int64(0), out.Profile.ExternalLinks[1].ClickCount, "new tile starts at zero")
	assert.NotEqual(t, uuid.Nil, out.Profile.ExternalLinks[1].ID)
}

func TestUpdateProfile_Ownership(t *testing.T) {
	ctx := context.Background()
	repo := newMemProfileRepo()
	uc := NewUpdateProfileUseCase(repo, newMemCache(), time.Hour, logger.NewNopLogger())

	p := seedProfile(t, repo, "jane-doe")
	name := "Mallory"
	_, err := uc.Execute(ctx, UpdateProfileInput{ProfileID: p.ID, UserID: uuid.New(), Name: &name})
	assertKind(t, err, apperror.ErrPermission)
}

func TestPublishProfile(t *testing.T) {
	ctx := context.Background()
	repo := newMemProfileRepo()
	cache := newMemCache()
	uc := NewPublishProfileUseCase(repo, cache, logger.NewNopLogger())

	t.Run("incomplete profile cannot publish", func(t *testing.T) {
		p := &profile.Profile{ID: uuid.New(), UserID: uuid.New(), Slug: "empty-one"}
		require.NoError(t, repo.Create(ctx, p))

		_, err := uc.Execute(ctx, PublishProfileInput{ProfileID: p.ID, UserID: p.UserID, Publish: true})
		assertKind(t, err, apperror.ErrInvalidInput)
	})

	t.Run("publish and unpublish evict the cache", func(t *testing.T) {
		p := seedProfile(t, repo, "jane-doe")

		out, err := uc.Execute(ctx, PublishProfileInput{ProfileID: p.ID, UserID: p.UserID, Publish: true})
		require.NoError(t, err)
		assert.True(t, out.Profile.IsPublished)

		cache.Set(ctx, p.Slug, out.Profile)
		out, err = uc.Execute(ctx, PublishProfileInput{ProfileID: p.ID, UserID: p.UserID, Publish: false})
		require.NoError(t, err)
		assert.False(t, out.Profile.IsPublished)

		_, cached := cache.Get(ctx, p.Slug)
		assert.False(t, cached, "unpublish must evict the resolve cache entry")
	})

	t.Run("unpublish never requires completeness", func(t *testing.T) {
		p := &profile.Profile{ID: uuid.New(), UserID: uuid.New(), Slug: "bare-draft", IsPublished: true}
		require.NoError(t, repo.Create(ctx, p))

		_, err := uc.Execute(ctx, PublishProfileInput{ProfileID: p.ID, UserID: p.UserID, Publish: false})
		assert.NoError(t, err)
	})
}

func TestResolveProfile(t *testing.T) {
	ctx := context.Background()
	repo := newMemProfileRepo()
	cache := newMemCache()
	uc := NewResolveProfileUseCase(repo, cache, logger.NewNopLogger())

	published := seedProfile(t, repo, "jane-doe")
	require.NoError(t, repo.SetPublished(ctx, published.ID, true))

	draft := seedProfile(t, repo, "draft-profile")

	t.Run("published slug resolves and warms the cache", func(t *testing.T) {
		out, err := uc.Execute(ctx, ResolveProfileInput{Identifier: "jane-doe"})
		require.NoError(t, err)
		assert.Equal(t, published.ID, out.Profile.ID)

		_, cached := cache.Get(ctx, "jane-doe")
		assert.True(t, cached)
	})

	t.Run("identifier is case insensitive", func(t *testing.T) {
		out, err := uc.Execute(ctx, ResolveProfileInput{Identifier: "  JANE-DOE "})
		require.NoError(t, err)
		assert.Equal(t, published.ID, out.Profile.ID)
	})

	t.Run("unpublished profile is not found", func(t *testing.T) {
		_, err := uc.Execute(ctx, ResolveProfileInput{Identifier: draft.Slug})
		assertKind(t, err, apperror.ErrNotFound)
	})

	t.Run("verified custom domain resolves", func(t *testing.T) {
		domain := "cv.jane.dev"
		require.NoError(t, repo.SetCustomDomain(ctx, published.ID, &domain, true))

		out, err := uc.Execute(ctx, ResolveProfileInput{Identifier: domain})
		require.NoError(t, err)
		assert.Equal(t, published.ID, out.Profile.ID)
	})

	t.Run("unverified custom domain does not resolve", func(t *testing.T) {
		domain := "cv.draft.dev"
		require.NoError(t, repo.SetCustomDomain(ctx, draft.ID, &domain, false))
		require.NoError(t, repo.SetPublished(ctx, draft.ID, true))

		_, err := uc.Execute(ctx, ResolveProfileInput{Identifier: domain})
		assertKind(t, err, apperror.ErrNotFound)
	})
}
