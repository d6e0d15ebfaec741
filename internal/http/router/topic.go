package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/handler"
)

func TopicRouter(rg *gin.RouterGroup, h *handler.TopicHandler) {
	rg.POST("/topics", h.Propose)
	rg.GET("/topic", h.State)
	rg.POST("/summaries", h.IngestSummary)
	rg.GET("/summary", h.Summary)
}
