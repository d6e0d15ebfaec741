package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/handler"
)

func EventsRouter(rg *gin.RouterGroup, h *handler.EventsHandler) {
	rg.GET("/events", h.Stream)
}
