package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/cvlinkhq/cvlink/adapters/dns"
	"github.com/cvlinkhq/cvlink/adapters/event"
	httpAdapter "github.com/cvlinkhq/cvlink/adapters/http"
	"github.com/cvlinkhq/cvlink/adapters/media_storage"
	"github.com/cvlinkhq/cvlink/adapters/persistence"
	analyticsUC "github.com/cvlinkhq/cvlink/internal/application/usecase/analytics"
	billingUC "github.com/cvlinkhq/cvlink/internal/application/usecase/billing"
	domainUC "github.com/cvlinkhq/cvlink/internal/application/usecase/domainverify"
	identityUC "github.com/cvlinkhq/cvlink/internal/application/usecase/identity"
	moderationUC "github.com/cvlinkhq/cvlink/internal/application/usecase/moderation"
	profileUC "github.com/cvlinkhq/cvlink/internal/application/usecase/profile"
	"github.com/cvlinkhq/cvlink/internal/config"
	"github.com/cvlinkhq/cvlink/pkg/auth"
	"github.com/cvlinkhq/cvlink/pkg/logger"
	"github.com/cvlinkhq/cvlink/pkg/tracing"
)

func main() {
	fmt.Println("Starting CVLink API Server...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: cannot load config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.App.Env)

	// Tracing
	tp, err := tracing.NewTracerProvider(cfg, appLogger, "cvlink-server")
	if err != nil {
		log.Fatalf("FATAL: cannot init tracing: %v", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Initialize dependencies
	dbPool, err := persistence.NewPostgresPool(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot connect Postgres: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := persistence.NewRedisClient(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: cannot connect Redis: %v", err)
	}
	defer redisClient.Close()

	kafkaClient, err := event.NewKafkaProducerClient(cfg)
	if err != nil {
		log.Fatalf("FATAL: cannot init Kafka: %v", err)
	}
	defer kafkaClient.Close()

	// Repositories
	userRepo := persistence.NewPostgresUserRepo(dbPool)
	profileRepo := persistence.NewPostgresProfileRepo(dbPool, appLogger)
	analyticsRepo := persistence.NewPostgresAnalyticsRepo(dbPool)
	verificationRepo := persistence.NewPostgresDomainVerificationRepo(dbPool, appLogger)
	moderationRepo := persistence.NewPostgresModerationRepo(dbPool)

	// Services
	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifespan)
	uploader, err := media_storage.NewCloudinaryAdapter(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize uploader: %v", err)
	}
	profileCache := persistence.NewProfileCache(redisClient, cfg, appLogger)
	resolver := dns.NewCNAMEResolver(cfg.Domains.CheckTimeout)
	issuer := dns.NewCertAuthorityClient(cfg.Domains.CertAuthorityURL, cfg.Domains.CheckTimeout)

	// Use Cases
	authenticateUseCase := identityUC.NewAuthenticateUseCase(userRepo, appLogger)
	setFlagsUseCase := identityUC.NewSetUserFlagsUseCase(userRepo, appLogger)
	applyBillingUseCase := billingUC.NewApplyBillingEventUseCase(userRepo, appLogger)

	createProfileUseCase := profileUC.NewCreateProfileUseCase(profileRepo, appLogger)
	getProfileUseCase := profileUC.NewGetProfileUseCase(profileRepo, appLogger)
	updateProfileUseCase := profileUC.NewUpdateProfileUseCase(profileRepo, profileCache, cfg.Profile.SlugCooldown, appLogger)
	publishProfileUseCase := profileUC.NewPublishProfileUseCase(profileRepo, profileCache, appLogger)
	resolveProfileUseCase := profileUC.NewResolveProfileUseCase(profileRepo, profileCache, appLogger)
	uploadAvatarUseCase := profileUC.NewUploadAvatarUseCase(profileRepo, uploader, profileCache, appLogger)
	feedUseCase := profileUC.NewDirectoryFeedUseCase(profileRepo, cfg.App.BaseURL, appLogger)

	submitDomainUseCase := domainUC.NewSubmitDomainUseCase(verificationRepo, profileRepo, profileCache, cfg.Domains.CnameTarget, appLogger)
	domainStatusUseCase := domainUC.NewDomainStatusUseCase(verificationRepo, profileRepo, appLogger)
	recheckDomainUseCase := domainUC.NewRecheckDomainUseCase(
		verificationRepo,
		profileRepo,
		resolver,
		issuer,
		profileCache,
		cfg.Domains.MaxCheckFailures,
		appLogger,
	)

	trackEventsUseCase := analyticsUC.NewTrackEventsUseCase(kafkaClient, profileCache, appLogger)
	summaryUseCase := analyticsUC.NewSummaryUseCase(analyticsRepo, profileRepo, appLogger)

	moderationUseCase := moderationUC.NewModerationUseCase(moderationRepo, profileRepo, appLogger)

	// HTTP Handlers
	profileHandler := httpAdapter.NewProfileHandler(
		createProfileUseCase,
		getProfileUseCase,
		updateProfileUseCase,
		publishProfileUseCase,
		uploadAvatarUseCase,
		appLogger,
	)
	publicHandler := httpAdapter.NewPublicHandler(resolveProfileUseCase, trackEventsUseCase, moderationUseCase, appLogger)
	domainHandler := httpAdapter.NewDomainHandler(submitDomainUseCase, domainStatusUseCase, recheckDomainUseCase, appLogger)
	analyticsHandler := httpAdapter.NewAnalyticsHandler(summaryUseCase, appLogger)
	moderationHandler := httpAdapter.NewModerationHandler(moderationUseCase, appLogger)
	billingHandler := httpAdapter.NewBillingHandler(applyBillingUseCase, cfg.Billing.WebhookSecret, appLogger)
	adminHandler := httpAdapter.NewAdminHandler(setFlagsUseCase, appLogger)
	feedHandler := httpAdapter.NewFeedHandler(feedUseCase, appLogger)

	// Middleware
	authMiddleware := httpAdapter.AuthMiddleware(jwtSvc, authenticateUseCase, appLogger)

	// Setup Gin router
	router := gin.Default()
	router.Use(httpAdapter.ErrorMiddleware(appLogger))

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "UP"}) })
		api.GET("/feed", feedHandler.GetRSS)

		// Public render + tracking surface
		p := api.Group("/p")
		{
			p.GET("/:identifier", publicHandler.ResolveProfile)
			p.GET("/:identifier/links/:linkId", publicHandler.ClickLink)
			p.POST("/:identifier/downloads", publicHandler.TrackDownload)
			p.POST("/:identifier/reports", publicHandler.ReportProfile)
		}

		// Authenticated owner surface
		me := api.Group("/me")
		me.Use(authMiddleware)
		{
			me.POST("/profile", profileHandler.CreateProfile)
			me.GET("/profile", profileHandler.GetMyProfile)

			profiles := me.Group("/profiles/:id")
			{
				profiles.PUT("", profileHandler.UpdateProfile)
				profiles.POST("/publish", profileHandler.Publish)
				profiles.POST("/unpublish", profileHandler.Unpublish)
				profiles.POST("/avatar", profileHandler.UploadAvatar)

				profiles.POST("/domain", domainHandler.SubmitDomain)
				profiles.GET("/domain", domainHandler.DomainStatus)
				profiles.POST("/domain/recheck", domainHandler.RecheckDomain)

				profiles.GET("/analytics", analyticsHandler.GetSummary)
			}
		}

		// Admin surface
		admin := api.Group("/admin")
		admin.Use(authMiddleware, httpAdapter.AdminMiddleware())
		{
			admin.GET("/reports", moderationHandler.ListReports)
			admin.PUT("/reports/:id", moderationHandler.ReviewReport)
			admin.PUT("/users/:id/flags", adminHandler.SetUserFlags)
			admin.POST("/profiles/:id/analytics/reconcile", analyticsHandler.Reconcile)
		}

		// Provider webhooks
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/billing", billingHandler.Webhook)
		}
	}

	log.Printf("Server running on port %s", cfg.App.Port)
	if err := router.Run(":" + cfg.App.Port); err != nil {
		log.Fatalf("Cannot run server: %v", err)
	}
}
