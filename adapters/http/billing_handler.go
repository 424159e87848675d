package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingUC "github.com/cvlinkhq/cvlink/internal/application/usecase/billing"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

const billingSecretHeader = "X-Webhook-Secret"

type BillingHandler struct {
	applyUseCase  *billingUC.ApplyBillingEventUseCase
	webhookSecret string
	logger        logger.Logger
}

func NewBillingHandler(applyUC *billingUC.ApplyBillingEventUseCase, webhookSecret string, log logger.Logger) *BillingHandler {
	return &BillingHandler{
		applyUseCase:  applyUC,
		webhookSecret: webhookSecret,
		logger:        log,
	}
}

// Webhook receives subscription changes from the billing provider. It is
// authenticated by a shared secret header, not a user token.
func (h *BillingHandler) Webhook(c *gin.Context) {
	provided := c.GetHeader(billingSecretHeader)
	if h.webhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(provided), []byte(h.webhookSecret)) != 1 {
		c.Error(apperror.NewPermissionDenied("invalid webhook secret"))
		return
	}

	var req BillingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for billing webhook", err))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid user id", err))
		return
	}

	input := billingUC.ApplyBillingEventInput{UserID: userID, IsPro: *req.IsPro}
	if err := h.applyUseCase.Execute(c.Request.Context(), input); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}
