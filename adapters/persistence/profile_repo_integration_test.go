package persistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/cvlinkhq/cvlink/internal/domain/analytics"
	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/internal/domain/user"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type ProfileRepoIntegrationTestSuite struct {
	suite.Suite
	dbPool           *pgxpool.Pool
	pgContainer      *postgres.PostgresContainer
	testLogger       logger.Logger
	profileRepo      profile.Repository
	userRepo         user.Repository
	analyticsRepo    analytics.Repository
	verificationRepo domainverify.Repository
}

func (s *ProfileRepoIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(1*time.Minute),
		),
	)
	if err != nil {
		s.T().Fatalf("Failed to start postgres container: %s", err)
	}
	s.pgContainer = pgContainer

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		s.T().Fatalf("Failed to get connection string: %s", err)
	}

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		s.T().Fatalf("Failed to create migrate instance: %s", err)
	}
	if err := m.Up(); err != nil {
		s.T().Fatalf("Failed to run migrations: %s", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		s.T().Fatalf("Failed to create pgxpool: %s", err)
	}
	s.dbPool = pool

	s.testLogger = logger.NewNopLogger()
	s.profileRepo = NewPostgresProfileRepo(s.dbPool, s.testLogger)
	s.userRepo = NewPostgresUserRepo(s.dbPool)
	s.analyticsRepo = NewPostgresAnalyticsRepo(s.dbPool)
	s.verificationRepo = NewPostgresDomainVerificationRepo(s.dbPool, s.testLogger)
}

func (s *ProfileRepoIntegrationTestSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(context.Background()); err != nil {
			s.T().Fatalf("Failed to terminate postgres container: %s", err)
		}
	}
}

func TestProfileRepoIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode.")
	}
	suite.Run(t, new(ProfileRepoIntegrationTestSuite))
}

func (s *ProfileRepoIntegrationTestSuite) seedUser() *user.User {
	ctx := context.Background()
	u, err := s.userRepo.UpsertBySubject(ctx, &user.User{
		ID:      uuid.New(),
		Subject: fmt.Sprintf("subject-%s", uuid.NewString()),
	})
	s.Require().NoError(err)
	return u
}

func (s *ProfileRepoIntegrationTestSuite) seedProfile(slug string) *profile.Profile {
	ctx := context.Background()
	u := s.seedUser()
	now := time.Now().UTC()
	p := &profile.Profile{
		ID:            uuid.New(),
		UserID:        u.ID,
		Slug:          slug,
		Name:          "Jane Doe",
		Bio:           "Engineer.",
		Skills:        []string{"go"},
		WorkHistory:   []profile.WorkExperience{},
		Projects:      []profile.Project{},
		SocialLinks:   profile.SocialLinks{},
		ExternalLinks: []profile.ExternalLink{},
		Theme:         "default",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Require().NoError(s.profileRepo.Create(ctx, p))
	return p
}

func (s *ProfileRepoIntegrationTestSuite) Test_Create_And_FindBySlug() {
	ctx := context.Background()
	p := s.seedProfile("jane-create")

	found, err := s.profileRepo.FindBySlug(ctx, "jane-create")
	s.NoError(err)
	s.Equal(p.ID, found.ID)
	s.Equal([]string{"go"}, found.Skills)
	s.False(found.IsPublished)
}

func (s *ProfileRepoIntegrationTestSuite) Test_Create_DuplicateSlug() {
	ctx := context.Background()
	s.seedProfile("contested-slug")

	u := s.seedUser()
	dup := &profile.Profile{
		ID: uuid.New(), UserID: u.ID, Slug: "contested-slug",
		Skills: []string{}, WorkHistory: []profile.WorkExperience{}, Projects: []profile.Project{},
		SocialLinks: profile.SocialLinks{}, ExternalLinks: []profile.ExternalLink{},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	err := s.profileRepo.Create(ctx, dup)
	s.ErrorIs(err, profile.ErrSlugTaken)
}

func (s *ProfileRepoIntegrationTestSuite) Test_Create_SecondProfileSameUser() {
	ctx := context.Background()
	p := s.seedProfile("first-of-user")

	second := &profile.Profile{
		ID: uuid.New(), UserID: p.UserID, Slug: "second-of-user",
		Skills: []string{}, WorkHistory: []profile.WorkExperience{}, Projects: []profile.Project{},
		SocialLinks: profile.SocialLinks{}, ExternalLinks: []profile.ExternalLink{},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	err := s.profileRepo.Create(ctx, second)
	s.ErrorIs(err, profile.ErrProfileExists)
}

func (s *ProfileRepoIntegrationTestSuite) Test_Create_ConcurrentSameSlug() {
	ctx := context.Background()

	const n = 10
	users := make([]*user.User, n)
	for i := range users {
		users[i] = s.seedUser()
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &profile.Profile{
				ID: uuid.New(), UserID: users[i].ID, Slug: "race-slug",
				Skills: []string{}, WorkHistory: []profile.WorkExperience{}, Projects: []profile.Project{},
				SocialLinks: profile.SocialLinks{}, ExternalLinks: []profile.ExternalLink{},
				CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
			}
			errs[i] = s.profileRepo.Create(ctx, p)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			s.ErrorIs(err, profile.ErrSlugTaken)
		}
	}
	s.Equal(1, succeeded, "the unique constraint lets exactly one create win")
}

func (s *ProfileRepoIntegrationTestSuite) Test_ChangeSlug_CooldownBoundary() {
	ctx := context.Background()
	p := s.seedProfile("rename-me")

	now := time.Now().UTC()
	boundary := now.Add(-30 * 24 * time.Hour)
	s.NoError(s.profileRepo.ChangeSlug(ctx, p.ID, "renamed-once", now, boundary))

	// The stored last_slug_change is now inside the boundary, so a second
	// conditional rename must be refused.
	err := s.profileRepo.ChangeSlug(ctx, p.ID, "renamed-twice", now, boundary)
	s.ErrorIs(err, profile.ErrSlugCooldown)

	found, err := s.profileRepo.FindByID(ctx, p.ID)
	s.NoError(err)
	s.Equal("renamed-once", found.Slug)
	s.NotNil(found.LastSlugChange)
}

func (s *ProfileRepoIntegrationTestSuite) Test_RecordView_ConcurrentIncrements() {
	ctx := context.Background()
	p := s.seedProfile("view-target")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.analyticsRepo.RecordView(ctx, &analytics.ProfileView{
				ID:        uuid.New(),
				ProfileID: p.ID,
				IPAddress: "203.0.113.7",
				CreatedAt: time.Now().UTC(),
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	summary, err := s.analyticsRepo.GetSummary(ctx, p.ID)
	s.NoError(err)
	s.Equal(int64(n), summary.Views)

	// Rebuild must agree with the event table.
	s.NoError(s.analyticsRepo.RebuildCounters(ctx, p.ID))
	summary, err = s.analyticsRepo.GetSummary(ctx, p.ID)
	s.NoError(err)
	s.Equal(int64(n), summary.Views)
}

func (s *ProfileRepoIntegrationTestSuite) Test_RecordLinkClick_BumpsTileCounter() {
	ctx := context.Background()
	p := s.seedProfile("click-target")

	linkID := uuid.New()
	p.ExternalLinks = []profile.ExternalLink{
		{ID: linkID, Title: "GitHub", URL: "https://github.com/jane", IsActive: true},
	}
	s.Require().NoError(s.profileRepo.Update(ctx, p))

	err := s.analyticsRepo.RecordLinkClick(ctx, &analytics.LinkClick{
		ID:        uuid.New(),
		ProfileID: p.ID,
		LinkID:    linkID,
		LinkURL:   "https://github.com/jane",
		CreatedAt: time.Now().UTC(),
	})
	s.NoError(err)

	found, err := s.profileRepo.FindByID(ctx, p.ID)
	s.NoError(err)
	s.Equal(int64(1), found.LinkClickCount)
	s.Require().Len(found.ExternalLinks, 1)
	s.Equal(int64(1), found.ExternalLinks[0].ClickCount)
}

func (s *ProfileRepoIntegrationTestSuite) Test_Update_KeepsTileCounterBumpedMeanwhile() {
	ctx := context.Background()
	p := s.seedProfile("stale-save")

	linkID := uuid.New()
	p.ExternalLinks = []profile.ExternalLink{
		{ID: linkID, Title: "GitHub", URL: "https://github.com/jane", IsActive: true},
	}
	s.Require().NoError(s.profileRepo.Update(ctx, p))

	// A click lands between the editor's read and their save.
	s.Require().NoError(s.analyticsRepo.RecordLinkClick(ctx, &analytics.LinkClick{
		ID:        uuid.New(),
		ProfileID: p.ID,
		LinkID:    linkID,
		LinkURL:   "https://github.com/jane",
		CreatedAt: time.Now().UTC(),
	}))

	// The save still carries the pre-click counter plus a new tile.
	p.ExternalLinks = []profile.ExternalLink{
		{ID: linkID, Title: "GitHub", URL: "https://github.com/jane", ClickCount: 0, IsActive: true},
		{ID: uuid.New(), Title: "Blog", URL: "https://blog.jane.dev", IsActive: true},
	}
	s.Require().NoError(s.profileRepo.Update(ctx, p))

	found, err := s.profileRepo.FindByID(ctx, p.ID)
	s.NoError(err)
	s.Require().Len(found.ExternalLinks, 2)
	s.Equal(int64(1), found.ExternalLinks[0].ClickCount, "stored counter wins over the stale save")
	s.Equal(int64(0), found.ExternalLinks[1].ClickCount)
}

func (s *ProfileRepoIntegrationTestSuite) Test_VerificationReplace_SupersedesActive() {
	ctx := context.Background()
	p := s.seedProfile("domain-target")

	first := &domainverify.DomainVerification{
		ID: uuid.New(), ProfileID: p.ID, Domain: "first.jane.dev",
		VerificationStatus: domainverify.StatusPending, CnameTarget: "custom.cvlink.to",
		DNSRecords: []string{}, SSLStatus: domainverify.SSLPending,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.verificationRepo.Replace(ctx, first))

	second := &domainverify.DomainVerification{
		ID: uuid.New(), ProfileID: p.ID, Domain: "second.jane.dev",
		VerificationStatus: domainverify.StatusPending, CnameTarget: "custom.cvlink.to",
		DNSRecords: []string{}, SSLStatus: domainverify.SSLPending,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.verificationRepo.Replace(ctx, second))

	active, err := s.verificationRepo.FindActiveByProfile(ctx, p.ID)
	s.NoError(err)
	s.Equal(second.ID, active.ID)

	due, err := s.verificationRepo.ListDue(ctx, time.Now().UTC(), 10)
	s.NoError(err)
	for _, v := range due {
		s.NotEqual(domainverify.StatusFailed, v.VerificationStatus)
	}
}

func (s *ProfileRepoIntegrationTestSuite) Test_VerifiedDomain_UniquePerProfile() {
	ctx := context.Background()
	p1 := s.seedProfile("domain-holder")
	p2 := s.seedProfile("domain-wanter")

	domain := "shared.jane.dev"
	s.Require().NoError(s.profileRepo.SetCustomDomain(ctx, p1.ID, &domain, true))

	// A second profile cannot hold the same domain verified.
	err := s.profileRepo.SetCustomDomain(ctx, p2.ID, &domain, true)
	s.Error(err)

	// Unverified attachment of the same domain is allowed.
	s.NoError(s.profileRepo.SetCustomDomain(ctx, p2.ID, &domain, false))
}
