package stream

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/okian/proctor/pkg/logger"
)

// Handler upgrades requests to websocket subscriptions on the hub.
// Origins not in allowed are rejected; an empty list allows any origin.
func Handler(h *Hub, allowed []string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowed) == 0 || slices.Contains(allowed, origin)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Running() {
			http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
			return
		}
		c := newClient(h, conn)
		if !h.join(c) {
			_ = conn.Close()
			return
		}
		c.run()
	})
}
