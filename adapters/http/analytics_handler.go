package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	analyticsUC "github.com/cvlinkhq/cvlink/internal/application/usecase/analytics"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type AnalyticsHandler struct {
	summaryUseCase *analyticsUC.SummaryUseCase
	logger         logger.Logger
}

func NewAnalyticsHandler(summaryUC *analyticsUC.SummaryUseCase, log logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{summaryUseCase: summaryUC, logger: log}
}

func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
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

	output, err := h.summaryUseCase.ExecuteGetSummary(c.Request.Context(), analyticsUC.GetSummaryInput{
		ProfileID: profileID,
		UserID:    u.ID,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"views":       output.Summary.Views,
		"downloads":   output.Summary.Downloads,
		"link_clicks": output.Summary.LinkClicks,
	})
}

// Reconcile recounts the event tables into the profile counters. Admin-only
// escape hatch for when the denormalized counters drift.
func (h *AnalyticsHandler) Reconcile(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid profile id", err))
		return
	}

	if err := h.summaryUseCase.ExecuteReconcile(c.Request.Context(), analyticsUC.ReconcileInput{ProfileID: profileID}); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reconciled"})
}
