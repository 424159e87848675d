package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	identityUC "github.com/cvlinkhq/cvlink/internal/application/usecase/identity"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type AdminHandler struct {
	setFlagsUseCase *identityUC.SetUserFlagsUseCase
	logger          logger.Logger
}

func NewAdminHandler(setFlagsUC *identityUC.SetUserFlagsUseCase, log logger.Logger) *AdminHandler {
	return &AdminHandler{setFlagsUseCase: setFlagsUC, logger: log}
}

func (h *AdminHandler) SetUserFlags(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid user id", err))
		return
	}

	var req SetUserFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for user flags", err))
		return
	}

	input := identityUC.SetUserFlagsInput{
		UserID:   userID,
		IsAdmin:  req.IsAdmin,
		IsBanned: req.IsBanned,
	}
	if err := h.setFlagsUseCase.Execute(c.Request.Context(), input); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
