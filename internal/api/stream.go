package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mr1hm/go-health-surveillance/internal/broadcast"
	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// stream pushes domain events to a websocket client until it disconnects
// or the broadcaster shuts down. ?district= and ?types= (comma list) narrow
// the feed.
func (h *Handler) stream(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream disabled"})
		return
	}
	district := c.Query("district")
	filters := streamFilters(district, c.Query("types"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	id, events := h.broadcaster.Subscribe(filters...)
	defer h.broadcaster.Unsubscribe(id)
	slog.Info("client subscribed to event stream", "subscriber_id", id, "district", district)

	// Clients never send; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			slog.Info("client disconnected from event stream", "subscriber_id", id)
			return
		case e, ok := <-events:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := ws.WriteJSON(e); err != nil {
				slog.Error("failed to send event to stream", "error", err, "subscriber_id", id)
				return
			}
		}
	}
}

func streamFilters(district, types string) []broadcast.Filter {
	var filters []broadcast.Filter
	if district != "" {
		filters = append(filters, broadcast.ForDistrict(district))
	}
	if types != "" {
		var want []models.EventType
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				want = append(want, models.EventType(t))
			}
		}
		if len(want) > 0 {
			filters = append(filters, broadcast.OfTypes(want...))
		}
	}
	return filters
}
