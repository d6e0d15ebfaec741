package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/handler"
	"basegraph.app/scribe/internal/http/middleware"
)

func RoomRouter(rg *gin.RouterGroup, h *handler.RoomHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:room_id", middleware.RoomFields(), h.Get)
	rg.DELETE("/:room_id", middleware.RoomFields(), h.End)
}
