package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainUC "github.com/cvlinkhq/cvlink/internal/application/usecase/domainverify"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type DomainHandler struct {
	submitUseCase  *domainUC.SubmitDomainUseCase
	statusUseCase  *domainUC.DomainStatusUseCase
	recheckUseCase *domainUC.RecheckDomainUseCase
	logger         logger.Logger
}

func NewDomainHandler(
	submitUC *domainUC.SubmitDomainUseCase,
	statusUC *domainUC.DomainStatusUseCase,
	recheckUC *domainUC.RecheckDomainUseCase,
	log logger.Logger,
) *DomainHandler {
	return &DomainHandler{
		submitUseCase:  submitUC,
		statusUseCase:  statusUC,
		recheckUseCase: recheckUC,
		logger:         log,
	}
}

func (h *DomainHandler) SubmitDomain(c *gin.Context) {
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

	var req SubmitDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for domain submission", err))
		return
	}

	input := domainUC.SubmitDomainInput{
		ProfileID: profileID,
		UserID:    u.ID,
		Domain:    req.Domain,
	}
	output, err := h.submitUseCase.Execute(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ToDomainVerificationDTO(output.Verification))
}

func (h *DomainHandler) DomainStatus(c *gin.Context) {
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

	input := domainUC.DomainStatusInput{ProfileID: profileID, UserID: u.ID}
	output, err := h.statusUseCase.Execute(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToDomainVerificationDTO(output.Verification))
}

// RecheckDomain lets the user force a verification check instead of waiting
// for the scheduler sweep.
func (h *DomainHandler) RecheckDomain(c *gin.Context) {
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

	// Ownership check rides on the status use case before the recheck runs.
	if _, err := h.statusUseCase.Execute(c.Request.Context(), domainUC.DomainStatusInput{
		ProfileID: profileID, UserID: u.ID,
	}); err != nil {
		c.Error(err)
		return
	}

	output, err := h.recheckUseCase.Execute(c.Request.Context(), domainUC.RecheckDomainInput{ProfileID: profileID})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToDomainVerificationDTO(output.Verification))
}
