package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/pager"
	"basegraph.app/scribe/internal/service"
)

type SegmentHandler struct {
	rooms service.RoomService
}

func NewSegmentHandler(rooms service.RoomService) *SegmentHandler {
	return &SegmentHandler{rooms: rooms}
}

// AddUtterance answers 202 with the segment event, or 204 when the utterance
// carried no text.
func (h *SegmentHandler) AddUtterance(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.rooms.AddUtteranceWith(ctx, c.Param("room_id"), req.ToModel(), req.Thresholds.ToModel())
	if err != nil {
		respondError(c, err, "failed to add utterance")
		return
	}
	if ev == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusAccepted, dto.SegmentEventResponse{Event: ev})
}

// List pages backward from cursor. Malformed cursor or limit values fall back
// to the newest page and the default limit.
func (h *SegmentHandler) List(c *gin.Context) {
	page, err := h.rooms.Page(c.Request.Context(), c.Param("room_id"),
		pager.ParseCursor(c.Query("cursor")),
		pager.ParseLimit(c.Query("limit")))
	if err != nil {
		respondError(c, err, "failed to list segments")
		return
	}
	c.JSON(http.StatusOK, page)
}
