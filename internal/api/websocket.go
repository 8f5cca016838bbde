package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 15 * time.Second
)

func newUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origins, origin)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// StreamProgress pushes status snapshots of a job over a websocket until the
// job finishes, is deleted or the client goes away
func (h *Handler) StreamProgress(upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		updates, unsubscribe, err := h.manager.Subscribe(jobID)
		if err != nil {
			writeError(c, err)
			return
		}
		defer unsubscribe()

		logger := zerolog.Ctx(c.Request.Context()).With().Str("job_id", jobID).Logger()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already replied to the client
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		// The read side only processes control frames and notices the close
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logger.Debug().Err(err).Msg("WebSocket read error")
					}
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gone:
				return
			case st, ok := <-updates:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
						time.Now().Add(writeWait))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(st); err != nil {
					logger.Warn().Err(err).Msg("Failed to send progress")
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}
}
