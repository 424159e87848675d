package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	moderationUC "github.com/cvlinkhq/cvlink/internal/application/usecase/moderation"
	"github.com/cvlinkhq/cvlink/internal/domain/moderation"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type ModerationHandler struct {
	moderationUseCase *moderationUC.ModerationUseCase
	logger            logger.Logger
}

func NewModerationHandler(modUC *moderationUC.ModerationUseCase, log logger.Logger) *ModerationHandler {
	return &ModerationHandler{moderationUseCase: modUC, logger: log}
}

func (h *ModerationHandler) ListReports(c *gin.Context) {
	input := moderationUC.ListReportsInput{}

	if raw := c.Query("status"); raw != "" {
		status := moderation.Status(raw)
		if !moderation.ValidStatus(status) {
			c.Error(apperror.NewInvalidInput("unknown report status filter", nil))
			return
		}
		input.Status = &status
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			input.Limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			input.Offset = n
		}
	}

	output, err := h.moderationUseCase.ExecuteList(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	dtos := make([]ReportDTO, 0, len(output.Reports))
	for _, r := range output.Reports {
		dtos = append(dtos, ToReportDTO(r))
	}
	c.JSON(http.StatusOK, gin.H{"reports": dtos})
}

func (h *ModerationHandler) ReviewReport(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid report id", err))
		return
	}

	var req ReviewReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for report review", err))
		return
	}

	input := moderationUC.ReviewReportInput{
		ReportID: reportID,
		Status:   moderation.Status(req.Status),
	}
	if err := h.moderationUseCase.ExecuteReview(c.Request.Context(), input); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
