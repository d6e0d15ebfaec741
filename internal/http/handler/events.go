package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
)

const (
	streamBlock = 25 * time.Second
	streamBatch = 100
)

// EventsHandler relays a room's event stream to browsers over SSE.
type EventsHandler struct {
	redis  *redis.Client
	rooms  service.RoomService
	prefix string
}

func NewEventsHandler(redisClient *redis.Client, rooms service.RoomService, prefix string) *EventsHandler {
	return &EventsHandler{redis: redisClient, rooms: rooms, prefix: prefix}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "redis not configured"})
		return
	}

	roomID := c.Param("room_id")
	if _, err := h.rooms.Get(ctx, roomID); err != nil {
		respondError(c, err, "failed to open event stream")
		return
	}

	stream := queue.EventStreamName(h.prefix, roomID)
	lastID := resumeID(c)
	if lastID == "$" {
		// "$" re-resolves on every XREAD, so events landing between reads
		// would be skipped. Pin the tail once instead.
		latest, err := h.redis.XRevRangeN(ctx, stream, "+", "-", 1).Result()
		if err != nil {
			respondError(c, err, "failed to open event stream")
			return
		}
		lastID = tailID(latest)
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	sseWrite(c.Writer, "", "ping", "ready")
	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := h.redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Block:   streamBlock,
			Count:   streamBatch,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				sseWrite(c.Writer, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
				flusher.Flush()
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.WarnContext(ctx, "event stream read failed", "error", err, "stream", stream)
			sseWrite(c.Writer, "", "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			// Avoid spinning on a broken connection.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, streamRes := range res {
			for _, msg := range streamRes.Messages {
				lastID = msg.ID
				eventType, payload := decodeEvent(msg.Values)
				sseWrite(c.Writer, msg.ID, eventType, payload)
			}
		}
		flusher.Flush()
	}
}

// resumeID prefers an explicit last_id query over the browser's reconnect
// header. "$" means only events published after connecting.
func resumeID(c *gin.Context) string {
	if id := c.Query("last_id"); id != "" {
		return id
	}
	if id := c.GetHeader("Last-Event-ID"); id != "" {
		return id
	}
	return "$"
}

// tailID is the ID to read after when only new events are wanted. An empty
// stream starts from the beginning so its first event is delivered.
func tailID(latest []redis.XMessage) string {
	if len(latest) == 0 {
		return "0-0"
	}
	return latest[0].ID
}

func decodeEvent(values map[string]any) (string, any) {
	eventType, _ := values["type"].(string)
	if eventType == "" {
		eventType = "message"
	}
	payload, ok := values["payload"].(string)
	if !ok {
		return eventType, values
	}
	return eventType, json.RawMessage(payload)
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, id, event string, data any) {
	payload := marshalPayload(data)
	if id != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", id)
	}
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case []byte:
		return string(payload)
	case json.RawMessage:
		return string(payload)
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
