package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
)

const maxSummaryBytes = 64 << 10

type TopicHandler struct {
	rooms service.RoomService
}

func NewTopicHandler(rooms service.RoomService) *TopicHandler {
	return &TopicHandler{rooms: rooms}
}

func (h *TopicHandler) Propose(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ProposeTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.rooms.ProposeTopic(ctx, c.Param("room_id"), model.TopicCandidate{
		Topic:      req.Topic,
		Confidence: *req.Confidence,
	})
	if err != nil {
		respondError(c, err, "failed to propose topic")
		return
	}

	c.JSON(http.StatusOK, dto.ProposeTopicResponse{Committed: ev != nil, Topic: ev})
}

func (h *TopicHandler) State(c *gin.Context) {
	state, err := h.rooms.Topic(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		respondError(c, err, "failed to get topic")
		return
	}
	c.JSON(http.StatusOK, dto.ToTopicStateResponse(state))
}

// IngestSummary accepts an arbitrary model-generated JSON object. The body is
// clamped, not validated, so only unparsable input is rejected.
func (h *TopicHandler) IngestSummary(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSummaryBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if len(raw) > maxSummaryBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "summary too large"})
		return
	}

	res, err := h.rooms.IngestSummary(ctx, c.Param("room_id"), raw)
	if err != nil {
		respondError(c, err, "failed to ingest summary")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TopicHandler) Summary(c *gin.Context) {
	summary, err := h.rooms.LatestSummary(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		respondError(c, err, "failed to get summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}
