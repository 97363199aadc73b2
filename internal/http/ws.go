package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/nurpe/pestops-contracts/internal/builder"
)

const eventWriteTimeout = 5 * time.Second

type eventMessage struct {
	Event    builder.Event     `json:"event"`
	Snapshot *builder.Snapshot `json:"snapshot,omitempty"`
}

// originPatterns turns configured origins into host patterns for the
// websocket origin check. No origins, or "*", allows every origin.
func originPatterns(allowed []string) []string {
	var patterns []string
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		if i := strings.Index(origin, "://"); i >= 0 {
			origin = origin[i+3:]
		}
		patterns = append(patterns, strings.TrimSuffix(origin, "/"))
	}
	if len(patterns) == 0 {
		return []string{"*"}
	}
	return patterns
}

// events streams session changes over a websocket until the client goes
// away or the session is closed. Each message carries the fresh snapshot
// so clients never have to poll.
func (h *Handler) events(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id := c.Param("id")

	ch, unsubscribe, err := h.builder.Subscribe(principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", id).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx when the peer disconnects.
	ctx := conn.CloseRead(c.Request.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-ch:
			if !open {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			msg := eventMessage{Event: event}
			if event.Type != builder.EventClosed {
				if snapshot, err := h.builder.GetSession(principal, id); err == nil {
					msg.Snapshot = &snapshot
				}
			}
			if err := writeEvent(ctx, conn, msg); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.log.Debug().Err(err).Str("session_id", id).Msg("websocket write failed")
				}
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, msg eventMessage) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
