package admin

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kroegman/neartrip/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// liveInterval is how often the connections snapshot is pushed.
const liveInterval = 2 * time.Second

// handleLive upgrades to a WebSocket and streams the connections
// snapshot until the peer goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("live feed upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	// Drain control frames so pings and the close handshake work.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(liveInterval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(s.reg.List()); err != nil {
			return
		}
		<-ticker.C
	}
}
