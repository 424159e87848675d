package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/cvlinkhq/cvlink/adapters/event"
	"github.com/cvlinkhq/cvlink/adapters/persistence"
	analyticsUC "github.com/cvlinkhq/cvlink/internal/application/usecase/analytics"
	identityUC "github.com/cvlinkhq/cvlink/internal/application/usecase/identity"
	moderationUC "github.com/cvlinkhq/cvlink/internal/application/usecase/moderation"
	profileUC "github.com/cvlinkhq/cvlink/internal/application/usecase/profile"
	"github.com/cvlinkhq/cvlink/internal/config"
	"github.com/cvlinkhq/cvlink/pkg/auth"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// ProfileE2ETestSuite runs against the services from docker-compose: set
// E2E_TESTS=1 with Postgres, Redis and Kafka reachable per config.
type ProfileE2ETestSuite struct {
	suite.Suite
	Router *gin.Engine
	token  string
}

func (s *ProfileE2ETestSuite) SetupSuite() {
	cfg, err := config.LoadConfig("../..")
	if err != nil {
		s.T().Fatalf("Failed to load config for E2E test: %v", err)
	}

	appLogger := logger.NewZapLogger("development")

	dbPool, err := pgxpool.New(context.Background(), cfg.DB.DSN)
	if err != nil {
		s.T().Fatalf("E2E test failed to connect postgres: %v", err)
	}

	redisClient, err := persistence.NewRedisClient(cfg, appLogger)
	if err != nil {
		s.T().Fatalf("E2E test failed to connect redis: %v", err)
	}

	kafkaClient, err := event.NewKafkaProducerClient(cfg)
	if err != nil {
		s.T().Fatalf("E2E test failed to init kafka: %v", err)
	}

	userRepo := persistence.NewPostgresUserRepo(dbPool)
	profileRepo := persistence.NewPostgresProfileRepo(dbPool, appLogger)
	moderationRepo := persistence.NewPostgresModerationRepo(dbPool)
	profileCache := persistence.NewProfileCache(redisClient, cfg, appLogger)

	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifespan)

	subject := fmt.Sprintf("e2e-%s", uuid.NewString())
	s.token, err = jwtSvc.GenerateToken(subject, auth.IdentityClaims{Email: "e2e@example.com"})
	if err != nil {
		s.T().Fatalf("E2E test failed to mint token: %v", err)
	}

	authenticateUseCase := identityUC.NewAuthenticateUseCase(userRepo, appLogger)
	createUseCase := profileUC.NewCreateProfileUseCase(profileRepo, appLogger)
	getUseCase := profileUC.NewGetProfileUseCase(profileRepo, appLogger)
	updateUseCase := profileUC.NewUpdateProfileUseCase(profileRepo, profileCache, cfg.Profile.SlugCooldown, appLogger)
	publishUseCase := profileUC.NewPublishProfileUseCase(profileRepo, profileCache, appLogger)
	resolveUseCase := profileUC.NewResolveProfileUseCase(profileRepo, profileCache, appLogger)
	trackUseCase := analyticsUC.NewTrackEventsUseCase(kafkaClient, profileCache, appLogger)
	moderationUseCase := moderationUC.NewModerationUseCase(moderationRepo, profileRepo, appLogger)

	profileHandler := NewProfileHandler(createUseCase, getUseCase, updateUseCase, publishUseCase, nil, appLogger)
	publicHandler := NewPublicHandler(resolveUseCase, trackUseCase, moderationUseCase, appLogger)

	authMiddleware := AuthMiddleware(jwtSvc, authenticateUseCase, appLogger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorMiddleware(appLogger))

	api := router.Group("/api")
	{
		p := api.Group("/p")
		{
			p.GET("/:identifier", publicHandler.ResolveProfile)
		}
		me := api.Group("/me")
		me.Use(authMiddleware)
		{
			me.POST("/profile", profileHandler.CreateProfile)
			profiles := me.Group("/profiles/:id")
			{
				profiles.PUT("", profileHandler.UpdateProfile)
				profiles.POST("/publish", profileHandler.Publish)
				profiles.POST("/unpublish", profileHandler.Unpublish)
			}
		}
	}

	s.Router = router
}

func (s *ProfileE2ETestSuite) TearDownSuite() {}

func TestProfileE2E(t *testing.T) {
	if os.Getenv("E2E_TESTS") == "" {
		t.Skip("Skipping E2E tests. Set E2E_TESTS=1 to run.")
	}
	suite.Run(t, new(ProfileE2ETestSuite))
}

func (s *ProfileE2ETestSuite) doJSON(method, path string, body any, withToken bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.T().Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if withToken {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func (s *ProfileE2ETestSuite) Test_Profile_Lifecycle_Flow() {
	slug := fmt.Sprintf("e2e-%s", uuid.NewString()[:8])

	// Unauthenticated create is refused.
	rr := s.doJSON(http.MethodPost, "/api/me/profile", gin.H{"slug": slug}, false)
	assert.Equal(s.T(), http.StatusUnauthorized, rr.Code)

	// Create a draft.
	rr = s.doJSON(http.MethodPost, "/api/me/profile", gin.H{"slug": slug, "name": "Jane Doe"}, true)
	assert.Equal(s.T(), http.StatusCreated, rr.Code)

	var created ProfileDTO
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &created))
	s.Require().NotEmpty(created.ID)

	// The draft is not publicly reachable.
	rr = s.doJSON(http.MethodGet, "/api/p/"+slug, nil, false)
	assert.Equal(s.T(), http.StatusNotFound, rr.Code)

	// Publishing an incomplete profile is a validation error.
	rr = s.doJSON(http.MethodPost, "/api/me/profiles/"+created.ID+"/publish", nil, true)
	assert.Equal(s.T(), http.StatusBadRequest, rr.Code)

	// Fill in a bio, then publish.
	rr = s.doJSON(http.MethodPut, "/api/me/profiles/"+created.ID, gin.H{"bio": "Engineer."}, true)
	assert.Equal(s.T(), http.StatusOK, rr.Code)

	rr = s.doJSON(http.MethodPost, "/api/me/profiles/"+created.ID+"/publish", nil, true)
	assert.Equal(s.T(), http.StatusOK, rr.Code)

	// Now the public page resolves without counters or inactive tiles.
	rr = s.doJSON(http.MethodGet, "/api/p/"+slug, nil, false)
	assert.Equal(s.T(), http.StatusOK, rr.Code)
	assert.NotContains(s.T(), rr.Body.String(), "view_count")

	// The account already owns a profile; a second create is a conflict.
	rr = s.doJSON(http.MethodPost, "/api/me/profile", gin.H{"slug": slug, "name": "Copycat"}, true)
	assert.Equal(s.T(), http.StatusConflict, rr.Code)

	// Unpublish makes the page unreachable again, immediately.
	rr = s.doJSON(http.MethodPost, "/api/me/profiles/"+created.ID+"/unpublish", nil, true)
	assert.Equal(s.T(), http.StatusOK, rr.Code)

	rr = s.doJSON(http.MethodGet, "/api/p/"+slug, nil, false)
	assert.Equal(s.T(), http.StatusNotFound, rr.Code)
}
