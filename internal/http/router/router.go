package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"basegraph.app/scribe/internal/http/handler"
	"basegraph.app/scribe/internal/http/middleware"
	"basegraph.app/scribe/internal/service"
)

type RouterConfig struct {
	// Redis backs the SSE event stream. Nil disables streaming with a 503.
	Redis             *redis.Client
	EventStreamPrefix string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		rooms := v1.Group("/rooms")
		RoomRouter(rooms, handler.NewRoomHandler(services.Rooms()))

		room := rooms.Group("/:room_id", middleware.RoomFields())
		SegmentRouter(room, handler.NewSegmentHandler(services.Rooms()))
		TopicRouter(room, handler.NewTopicHandler(services.Rooms()))
		EventsRouter(room, handler.NewEventsHandler(cfg.Redis, services.Rooms(), cfg.EventStreamPrefix))
	}
}
