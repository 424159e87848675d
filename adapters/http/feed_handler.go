package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	profileUC "github.com/cvlinkhq/cvlink/internal/application/usecase/profile"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type FeedHandler struct {
	feedUseCase *profileUC.DirectoryFeedUseCase
	logger      logger.Logger
}

func NewFeedHandler(feedUC *profileUC.DirectoryFeedUseCase, log logger.Logger) *FeedHandler {
	return &FeedHandler{feedUseCase: feedUC, logger: log}
}

func (h *FeedHandler) GetRSS(c *gin.Context) {
	feed, err := h.feedUseCase.Execute(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	rss, err := feed.ToRss()
	if err != nil {
		c.Error(apperror.NewInternal("failed to render RSS feed", err))
		return
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, rss)
}
