package websocket

import (
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"wellkit/core"
	"wellkit/realtime"
)

const writeTimeout = 5 * time.Second

// Handler returns an http.Handler that upgrades to WebSocket and streams
// reward events from the hub. A client may pass ?user=<id> to receive only
// that user's events; without it the stream is the full firehose.
func Handler(hub *realtime.Hub) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := core.NormalizeUserID(core.UserID(r.URL.Query().Get("user")))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(user, 256)
		defer hub.Unsubscribe(id)

		// Drain the read side so close frames from the client are seen.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	})
}
