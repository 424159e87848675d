package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	profileUC "github.com/cvlinkhq/cvlink/internal/application/usecase/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type ProfileHandler struct {
	createUseCase  *profileUC.CreateProfileUseCase
	getUseCase     *profileUC.GetProfileUseCase
	updateUseCase  *profileUC.UpdateProfileUseCase
	publishUseCase *profileUC.PublishProfileUseCase
	avatarUseCase  *profileUC.UploadAvatarUseCase
	logger         logger.Logger
}

func NewProfileHandler(
	createUC *profileUC.CreateProfileUseCase,
	getUC *profileUC.GetProfileUseCase,
	updateUC *profileUC.UpdateProfileUseCase,
	publishUC *profileUC.PublishProfileUseCase,
	avatarUC *profileUC.UploadAvatarUseCase,
	log logger.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		createUseCase:  createUC,
		getUseCase:     getUC,
		updateUseCase:  updateUC,
		publishUseCase: publishUC,
		avatarUseCase:  avatarUC,
		logger:         log,
	}
}

func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	u, ok := GetUserFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("user not found in context"))
		return
	}

	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for profile creation", err))
		return
	}

	input := profileUC.CreateProfileInput{
		UserID: u.ID,
		Slug:   req.Slug,
		Name:   req.Name,
	}
	output, err := h.createUseCase.Execute(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ToProfileDTO(output.Profile))
}

func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	u, ok := GetUserFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("user not found in context"))
		return
	}

	output, err := h.getUseCase.Execute(c.Request.Context(), profileUC.GetProfileInput{UserID: u.ID})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToProfileDTO(output.Profile))
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	u, ok := GetUserFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("user not found in context"))
		return
	}

	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid profile id", err))
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for profile update", err))
		return
	}

	input := profileUC.UpdateProfileInput{
		ProfileID:      profileID,
		UserID:         u.ID,
		Slug:           req.Slug,
		Name:           req.Name,
		Tagline:        req.Tagline,
		Bio:            req.Bio,
		Skills:         req.Skills,
		WorkHistory:    req.ToDomainWorkHistory(),
		Projects:       req.ToDomainProjects(),
		SocialLinks:    req.ToDomainSocialLinks(),
		ExternalLinks:  req.ToDomainExternalLinks(),
		Theme:          req.Theme,
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
	}
	output, err := h.updateUseCase.Execute(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToProfileDTO(output.Profile))
}

func (h *ProfileHandler) Publish(c *gin.Context) {
	h.togglePublication(c, true)
}

func (h *ProfileHandler) Unpublish(c *gin.Context) {
	h.togglePublication(c, false)
}

func (h *ProfileHandler) togglePublication(c *gin.Context, publish bool) {
	u, ok := GetUserFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("user not found in context"))
		return
	}

	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid profile id", err))
		return
	}

	input := profileUC.PublishProfileInput{
		ProfileID: profileID,
		UserID:    u.ID,
		Publish:   publish,
	}
	output, err := h.publishUseCase.Execute(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToProfileDTO(output.Profile))
}

func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	u, ok := GetUserFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("user not found in context"))
		return
	}

	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid profile id", err))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(apperror.NewInvalidInput("avatar file is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.Error(apperror.NewInvalidInput("cannot read avatar file", err))
		return
	}
	defer file.Close()

	input := profileUC.UploadAvatarInput{
		ProfileID: profileID,
		UserID:    u.ID,
		File:      file,
	}
	output, err := h.avatarUseCase.Execute(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": output.AvatarURL})
}
