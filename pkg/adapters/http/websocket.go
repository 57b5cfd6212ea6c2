package http

import (
	"net/http"
	"time"

	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamSocket streams workspace changes over a WebSocket. The first message
// carries the current snapshot; the same watch filter as SubscribeEvents applies.
func (s *Server) StreamSocket(w http.ResponseWriter, r *http.Request) {
	st, err := s.open(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "workspace", st.Key(), "err", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.Streams.Subscribe(st)
	defer cancel()
	if s.Metrics != nil {
		defer s.Metrics.TrackSubscriber("websocket")()
	}
	watch := parseWatch(r.URL.Query().Get("watch"))

	// Reader: keeps the deadline fresh and notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(c lifecycle.Change) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(c)
	}
	if err := write(lifecycle.Change{Action: ActionSnapshot, Snapshot: st.Snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			s.logger.Debug("WebSocket client disconnected", "workspace", st.Key())
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case c, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "workspace deleted"),
					time.Now().Add(writeWait))
				return
			}
			if !wanted(c, watch) {
				continue
			}
			if err := write(c); err != nil {
				s.logger.Warn("WebSocket write failed", "workspace", st.Key(), "err", err)
				return
			}
		}
	}
}
