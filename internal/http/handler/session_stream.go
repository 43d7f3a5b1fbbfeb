package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/internal/events"
	"laivdata.app/agentdesk/internal/http/middleware"
)

type EventReader interface {
	Read(ctx context.Context, sessionID, agentID, lastID string, block time.Duration) ([]events.Entry, string, error)
}

type SessionStreamHandler struct {
	reader EventReader
	block  time.Duration
}

func NewSessionStreamHandler(reader EventReader, block time.Duration) *SessionStreamHandler {
	if block <= 0 {
		block = 25 * time.Second
	}
	return &SessionStreamHandler{reader: reader, block: block}
}

// Stream relays the session's controller events as server-sent events until
// the client disconnects. last_id resumes after a known entry.
func (h *SessionStreamHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.reader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not configured"})
		return
	}

	sessionID := middleware.GetSessionID(ctx)
	agentID := c.Param("agent_id")
	lastID := c.Query("last_id")
	if lastID == "" {
		lastID = c.GetHeader("Last-Event-ID")
	}
	if lastID == "" {
		lastID = "$"
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	setSSEHeaders(c.Writer)
	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	sseWrite(c.Writer, "", "ping", "ready")
	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		entries, next, err := h.reader.Read(ctx, sessionID, agentID, lastID, h.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sseWrite(c.Writer, "", "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		lastID = next

		if len(entries) == 0 {
			sseWrite(c.Writer, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}
		for _, entry := range entries {
			sc := logger.StartLinkedSpan(ctx, entry.TraceID, "gateway.stream_event",
				trace.WithAttributes(attribute.String("event.type", string(entry.Event.Type))))
			sseWrite(c.Writer, entry.ID, string(entry.Event.Type), entry.Event)
			sc.End()
		}
		flusher.Flush()
	}
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
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
