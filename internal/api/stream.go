package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ashureev/evening-ritual/internal/stream"
	"github.com/coder/websocket"
)

const streamWriteTimeout = 10 * time.Second

// Stream upgrades to a websocket and forwards every command applied to the
// caller's evening. The first frame is always the current snapshot.
func (h *EveningHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, err := eveningKey(r)
	if err != nil {
		Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.logger.Info("Stream connection request", "session_id", sessionID, "user_id", userID, "ip", r.RemoteAddr)

	// Subscribe before reading the snapshot so no command slips between the two.
	sub := h.hub.Subscribe(sessionID, userID)
	defer h.hub.Unsubscribe(sub)

	snap, err := h.svc.Snapshot(r.Context(), sessionID, userID)
	if err != nil {
		h.writeServiceError(w, err, sessionID, userID)
		return
	}
	first, err := stream.Encode(stream.FrameSnapshot, snap)
	if err != nil {
		h.writeServiceError(w, err, sessionID, userID)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.origins),
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	// Clients never send; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := ws.CloseRead(r.Context())

	if err := writeFrame(ctx, ws, first); err != nil {
		h.logger.Debug("Failed to send snapshot frame", "error", err, "user_id", userID)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := writeFrame(ctx, ws, frame); err != nil {
				h.logger.Debug("Stream write failed", "error", err, "user_id", userID)
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, frame)
}

// originPatterns converts configured CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
