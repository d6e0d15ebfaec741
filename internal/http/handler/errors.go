package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/service"
)

// respondError maps service sentinels to status codes. Anything unrecognized
// is logged and reported as a 500 with msg.
func respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, service.ErrNoSummary):
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary yet"})
	case errors.Is(err, service.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"error": "room already exists"})
	case errors.Is(err, service.ErrInvalidSummary):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
