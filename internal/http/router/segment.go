package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/handler"
)

func SegmentRouter(rg *gin.RouterGroup, h *handler.SegmentHandler) {
	rg.POST("/utterances", h.AddUtterance)
	rg.GET("/segments", h.List)
}
