package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvlinkhq/cvlink/adapters/event"
	"github.com/cvlinkhq/cvlink/internal/domain/analytics"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// memAnalyticsRepo applies the same event-plus-counter coupling the store
// does, guarded by a mutex so concurrent recording is observable.
type memAnalyticsRepo struct {
	mu        sync.Mutex
	known     map[uuid.UUID]bool
	views     []*analytics.ProfileView
	clicks    []*analytics.LinkClick
	summaries map[uuid.UUID]*analytics.Summary
}

func newMemAnalyticsRepo(profileIDs ...uuid.UUID) *memAnalyticsRepo {
	r := &memAnalyticsRepo{
		known:     make(map[uuid.UUID]bool),
		summaries: make(map[uuid.UUID]*analytics.Summary),
	}
	for _, id := range profileIDs {
		r.known[id] = true
		r.summaries[id] = &analytics.Summary{}
	}
	return r
}

func (r *memAnalyticsRepo) RecordView(_ context.Context, v *analytics.ProfileView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known[v.ProfileID] {
		return profile.ErrProfileNotFound
	}
	r.views = append(r.views, v)
	r.summaries[v.ProfileID].Views++
	return nil
}

func (r *memAnalyticsRepo) RecordLinkClick(_ context.Context, c *analytics.LinkClick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known[c.ProfileID] {
		return profile.ErrProfileNotFound
	}
	r.clicks = append(r.clicks, c)
	r.summaries[c.ProfileID].LinkClicks++
	return nil
}

func (r *memAnalyticsRepo) RecordDownload(_ context.Context, profileID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known[profileID] {
		return profile.ErrProfileNotFound
	}
	r.summaries[profileID].Downloads++
	return nil
}

func (r *memAnalyticsRepo) GetSummary(_ context.Context, profileID uuid.UUID) (*analytics.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.summaries[profileID]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *memAnalyticsRepo) RebuildCounters(_ context.Context, profileID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.summaries[profileID]
	if !ok {
		return profile.ErrProfileNotFound
	}
	var views, clicks int64
	for _, v := range r.views {
		if v.ProfileID == profileID {
			views++
		}
	}
	for _, c := range r.clicks {
		if c.ProfileID == profileID {
			clicks++
		}
	}
	s.Views = views
	s.LinkClicks = clicks
	return nil
}

type summaryProfileRepo struct {
	p *profile.Profile
}

func (r *summaryProfileRepo) FindByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	if r.p != nil && r.p.ID == id {
		clone := *r.p
		return &clone, nil
	}
	return nil, profile.ErrProfileNotFound
}

func (r *summaryProfileRepo) Create(context.Context, *profile.Profile) error { return nil }
func (r *summaryProfileRepo) Update(context.Context, *profile.Profile) error { return nil }
func (r *summaryProfileRepo) ChangeSlug(context.Context, uuid.UUID, string, time.Time, time.Time) error {
	return nil
}
func (r *summaryProfileRepo) SetPublished(context.Context, uuid.UUID, bool) error { return nil }
func (r *summaryProfileRepo) SetCustomDomain(context.Context, uuid.UUID, *string, bool) error {
	return nil
}
func (r *summaryProfileRepo) SetDomainVerified(context.Context, uuid.UUID, bool) error { return nil }
func (r *summaryProfileRepo) SetAvatarURL(context.Context, uuid.UUID, string) error    { return nil }
func (r *summaryProfileRepo) FindByUserID(context.Context, uuid.UUID) (*profile.Profile, error) {
	return nil, profile.ErrProfileNotFound
}
func (r *summaryProfileRepo) FindBySlug(context.Context, string) (*profile.Profile, error) {
	return nil, profile.ErrProfileNotFound
}
func (r *summaryProfileRepo) FindByVerifiedDomain(context.Context, string) (*profile.Profile, error) {
	return nil, profile.ErrProfileNotFound
}
func (r *summaryProfileRepo) ListPublished(context.Context, int, int) ([]*profile.Profile, error) {
	return nil, nil
}

func TestProcessEvents(t *testing.T) {
	ctx := context.Background()
	profileID := uuid.New()
	repo := newMemAnalyticsRepo(profileID)
	uc := NewProcessEventsUseCase(repo, logger.NewNopLogger())

	t.Run("view event lands as row plus counter", func(t *testing.T) {
		err := uc.ExecuteView(ctx, event.ViewEventPayload{
			ProfileID:  profileID,
			IPAddress:  "203.0.113.7",
			OccurredAt: time.Now().UTC(),
		})
		require.NoError(t, err)

		s, err := repo.GetSummary(ctx, profileID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), s.Views)
	})

	t.Run("events for deleted profiles are dropped, not retried", func(t *testing.T) {
		err := uc.ExecuteView(ctx, event.ViewEventPayload{ProfileID: uuid.New()})
		assert.NoError(t, err, "a missing profile must not poison the consumer loop")

		err = uc.ExecuteClick(ctx, event.ClickEventPayload{ProfileID: uuid.New(), LinkID: uuid.New()})
		assert.NoError(t, err)

		err = uc.ExecuteDownload(ctx, event.DownloadEventPayload{ProfileID: uuid.New()})
		assert.NoError(t, err)
	})
}

func TestProcessEvents_ConcurrentViews(t *testing.T) {
	ctx := context.Background()
	profileID := uuid.New()
	repo := newMemAnalyticsRepo(profileID)
	uc := NewProcessEventsUseCase(repo, logger.NewNopLogger())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = uc.ExecuteView(ctx, event.ViewEventPayload{ProfileID: profileID, OccurredAt: time.Now().UTC()})
		}()
	}
	wg.Wait()

	s, err := repo.GetSummary(ctx, profileID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), s.Views, "every concurrent view must count exactly once")
}

func TestGetSummary(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	p := &profile.Profile{ID: uuid.New(), UserID: owner, Slug: "jane-doe"}
	repo := newMemAnalyticsRepo(p.ID)
	uc := NewSummaryUseCase(repo, &summaryProfileRepo{p: p}, logger.NewNopLogger())

	require.NoError(t, repo.RecordDownload(ctx, p.ID))
	require.NoError(t, repo.RecordView(ctx, &analytics.ProfileView{ID: uuid.New(), ProfileID: p.ID}))

	t.Run("owner reads the counters", func(t *testing.T) {
		out, err := uc.ExecuteGetSummary(ctx, GetSummaryInput{ProfileID: p.ID, UserID: owner})
		require.NoError(t, err)
		assert.Equal(t, int64(1), out.Summary.Views)
		assert.Equal(t, int64(1), out.Summary.Downloads)
		assert.Equal(t, int64(0), out.Summary.LinkClicks)
	})

	t.Run("non-owner is denied", func(t *testing.T) {
		_, err := uc.ExecuteGetSummary(ctx, GetSummaryInput{ProfileID: p.ID, UserID: uuid.New()})
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.ErrorIs(t, appErr.BaseError, apperror.ErrPermission)
	})

	t.Run("reconcile recounts from the event tables", func(t *testing.T) {
		// Drift the counter by hand, then rebuild.
		repo.summaries[p.ID].Views = 999
		require.NoError(t, uc.ExecuteReconcile(ctx, ReconcileInput{ProfileID: p.ID}))

		out, err := uc.ExecuteGetSummary(ctx, GetSummaryInput{ProfileID: p.ID, UserID: owner})
		require.NoError(t, err)
		assert.Equal(t, int64(1), out.Summary.Views)
	})
}

type staticDeduper struct{ seen bool }

func (d *staticDeduper) MarkViewed(context.Context, uuid.UUID, string) bool { return d.seen }

func TestTrackClick_RejectsForgedLink(t *testing.T) {
	uc := NewTrackEventsUseCase(nil, &staticDeduper{}, logger.NewNopLogger())
	p := &profile.Profile{
		ID: uuid.New(),
		ExternalLinks: []profile.ExternalLink{
			{ID: uuid.New(), Title: "GitHub", URL: "https://github.com/jane", IsActive: true},
			{ID: uuid.New(), Title: "Old", URL: "https://old.example.com", IsActive: false},
		},
	}

	// Unknown link id.
	_, err := uc.TrackClick(context.Background(), p, uuid.New(), RequestMeta{})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.ErrorIs(t, appErr.BaseError, apperror.ErrNotFound)

	// Inactive tiles do not redirect or count.
	_, err = uc.TrackClick(context.Background(), p, p.ExternalLinks[1].ID, RequestMeta{})
	require.ErrorAs(t, err, &appErr)
	assert.ErrorIs(t, appErr.BaseError, apperror.ErrNotFound)
}
