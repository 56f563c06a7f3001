package management

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/logstream"
)

// LogDialer opens the backend log stream of a device.
type LogDialer func(ctx context.Context, device string) (*logstream.Stream, error)

// LogHandler relays reconciled log snapshots of one device to a console
// websocket client.
type LogHandler struct {
	dial     LogDialer
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewLogHandler(dial LogDialer, checkOrigin func(*http.Request) bool, log *slog.Logger) *LogHandler {
	return &LogHandler{
		dial:     dial,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		log:      log,
	}
}

func (h *LogHandler) Stream(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	upstream, err := h.dial(ctx, device)
	if err != nil {
		h.log.Warn("failed to open device log stream", "device", device, "err", err)
		response.Error(w, http.StatusBadGateway, "log stream unavailable")
		return
	}
	defer upstream.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "device", device, "err", err)
		return
	}
	defer conn.Close()

	// The console client only ever closes; reading detects that.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = upstream.Run(ctx, func(s logstream.Snapshot) {
		if err := conn.WriteJSON(s); err != nil {
			cancel()
		}
	})
	if err != nil && ctx.Err() == nil {
		h.log.Warn("device log stream ended", "device", device, "err", err)
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteMessage(websocket.CloseMessage, msg)
}
