package boundary

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// pingInterval and pongWait mirror the teacher's websocket transport
// keep-alive cadence (ui/transports/websocket/websocket.go's writePump),
// adapted to this server's one-way event push rather than that transport's
// bidirectional chat protocol.
const (
	pingInterval = 54 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is already enforced by core.CORSMiddleware ahead of this
	// handler in the route chain; the upgrade itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventsWS is the WebSocket sibling of handleEvents: GET
// /sessions/{id}/events/ws upgrades the connection and pushes the same
// eventbus.Event stream as JSON frames, for clients that want a persistent
// duplex socket instead of SSE (e.g. to multiplex a future control channel
// over the same connection). It only writes; the session's REST routes
// remain the way a client drives the session.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request, id string) {
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	// Drain and discard anything the client sends; this route is a
	// server-to-client push. Reading keeps pong control frames flowing and
	// detects client-initiated close.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	events, unsubscribe := e.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-events:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
