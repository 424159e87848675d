package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	analyticsUC "github.com/cvlinkhq/cvlink/internal/application/usecase/analytics"
	moderationUC "github.com/cvlinkhq/cvlink/internal/application/usecase/moderation"
	profileUC "github.com/cvlinkhq/cvlink/internal/application/usecase/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// PublicHandler serves the unauthenticated surface: profile resolution for
// the rendering layer plus the tracking and report endpoints attached to it.
type PublicHandler struct {
	resolveUseCase    *profileUC.ResolveProfileUseCase
	trackUseCase      *analyticsUC.TrackEventsUseCase
	moderationUseCase *moderationUC.ModerationUseCase
	logger            logger.Logger
}

func NewPublicHandler(
	resolveUC *profileUC.ResolveProfileUseCase,
	trackUC *analyticsUC.TrackEventsUseCase,
	modUC *moderationUC.ModerationUseCase,
	log logger.Logger,
) *PublicHandler {
	return &PublicHandler{
		resolveUseCase:    resolveUC,
		trackUseCase:      trackUC,
		moderationUseCase: modUC,
		logger:            log,
	}
}

func requestMeta(c *gin.Context) analyticsUC.RequestMeta {
	return analyticsUC.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
}

// ResolveProfile is the public render read path; it also records the view.
// Tracking is fire-and-forget and can never fail the render.
func (h *PublicHandler) ResolveProfile(c *gin.Context) {
	output, err := h.resolveUseCase.Execute(c.Request.Context(), profileUC.ResolveProfileInput{
		Identifier: c.Param("identifier"),
	})
	if err != nil {
		c.Error(err)
		return
	}

	h.trackUseCase.TrackView(c.Request.Context(), output.Profile, requestMeta(c))

	c.JSON(http.StatusOK, ToPublicProfileDTO(output.Profile))
}

// ClickLink records the click and redirects to the link target.
func (h *PublicHandler) ClickLink(c *gin.Context) {
	output, err := h.resolveUseCase.Execute(c.Request.Context(), profileUC.ResolveProfileInput{
		Identifier: c.Param("identifier"),
	})
	if err != nil {
		c.Error(err)
		return
	}

	linkID, err := uuid.Parse(c.Param("linkId"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid link id", err))
		return
	}

	url, err := h.trackUseCase.TrackClick(c.Request.Context(), output.Profile, linkID, requestMeta(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

// TrackDownload counts a CV download triggered from the public page.
func (h *PublicHandler) TrackDownload(c *gin.Context) {
	output, err := h.resolveUseCase.Execute(c.Request.Context(), profileUC.ResolveProfileInput{
		Identifier: c.Param("identifier"),
	})
	if err != nil {
		c.Error(err)
		return
	}

	h.trackUseCase.TrackDownload(c.Request.Context(), output.Profile)

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// ReportProfile lets any viewer flag a page. The reporter identity is the
// client IP; no account is required.
func (h *PublicHandler) ReportProfile(c *gin.Context) {
	output, err := h.resolveUseCase.Execute(c.Request.Context(), profileUC.ResolveProfileInput{
		Identifier: c.Param("identifier"),
	})
	if err != nil {
		c.Error(err)
		return
	}

	var req ReportProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for report", err))
		return
	}

	input := moderationUC.ReportProfileInput{
		ProfileID:  output.Profile.ID,
		ReportedBy: c.ClientIP(),
		Reason:     req.Reason,
	}
	reportOutput, err := h.moderationUseCase.ExecuteReport(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ToReportDTO(reportOutput.Report))
}
