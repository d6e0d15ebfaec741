package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/service"
)

type RoomHandler struct {
	rooms service.RoomService
}

func NewRoomHandler(rooms service.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rm, err := h.rooms.Create(ctx, service.CreateRoomParams{
		ID:         req.ID,
		Name:       req.Name,
		Thresholds: req.Thresholds.ToModel(),
	})
	if err != nil {
		respondError(c, err, "failed to create room")
		return
	}

	c.JSON(http.StatusCreated, dto.ToRoomResponse(rm))
}

func (h *RoomHandler) List(c *gin.Context) {
	rooms := h.rooms.List(c.Request.Context())

	resp := make([]*dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		resp = append(resp, dto.ToRoomResponse(&rooms[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": resp})
}

func (h *RoomHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("room_id")

	rm, err := h.rooms.Get(ctx, roomID)
	if err != nil {
		respondError(c, err, "failed to get room")
		return
	}
	state, err := h.rooms.Topic(ctx, roomID)
	if err != nil {
		respondError(c, err, "failed to get room")
		return
	}

	resp := dto.ToRoomResponse(rm)
	resp.Topic = dto.ToTopicStateResponse(state)
	c.JSON(http.StatusOK, resp)
}

func (h *RoomHandler) End(c *gin.Context) {
	if err := h.rooms.End(c.Request.Context(), c.Param("room_id")); err != nil {
		respondError(c, err, "failed to end room")
		return
	}
	c.Status(http.StatusNoContent)
}
