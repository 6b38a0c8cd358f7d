package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"newswatch/internal/content"
)

const streamPingInterval = 30 * time.Second

// V2StreamHandler exposes hub events over a websocket. Clients pick event
// types with ?types=notification_settled,articles_changed; the default is
// settled notifications only.
type V2StreamHandler struct {
	Hub    *content.Hub
	Logger *zap.Logger
}

func (h *V2StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v2/stream", h.stream)
}

func (h *V2StreamHandler) stream(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusInternalServerError, "hub unavailable", nil)
		return
	}
	types, err := streamTypes(c.Query("types"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "stream closed") }()

	// CloseRead discards inbound frames and cancels the context when the
	// client goes away.
	ctx := conn.CloseRead(c.Request.Context())

	var settled, changed <-chan content.Event
	for _, t := range types {
		switch t {
		case content.EventNotificationSettled:
			ch := h.Hub.Subscribe(t, 32)
			defer h.Hub.Unsubscribe(content.EventNotificationSettled, ch)
			settled = ch
		case content.EventArticlesChanged:
			ch := h.Hub.Subscribe(t, 32)
			defer h.Hub.Unsubscribe(content.EventArticlesChanged, ch)
			changed = ch
		}
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case ev, ok := <-settled:
			if !ok || !writeStreamEvent(ctx, conn, ev) {
				return
			}
		case ev, ok := <-changed:
			if !ok || !writeStreamEvent(ctx, conn, ev) {
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func writeStreamEvent(ctx context.Context, conn *websocket.Conn, ev content.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		return true
	}
	return conn.Write(ctx, websocket.MessageText, payload) == nil
}

func streamTypes(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{content.EventNotificationSettled}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, p := range parts {
		t := strings.ToLower(strings.TrimSpace(p))
		if t == "" {
			continue
		}
		switch t {
		case content.EventNotificationSettled, content.EventArticlesChanged:
		default:
			return nil, errors.New("unknown stream type " + t)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []string{content.EventNotificationSettled}, nil
	}
	return out, nil
}
