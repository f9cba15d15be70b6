package notification

import (
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// wsSink writes events as JSON ws frames. The hub's drain loop is the only
// writer, so no extra locking.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(ev domain.Event) error {
	return websocket.JSON.Send(s.conn, ev)
}

func (s *wsSink) Heartbeat() error {
	return websocket.JSON.Send(s.conn, domain.NewEvent("heartbeat", nil))
}

func (s *wsSink) Close() error { return s.conn.Close() }

// WS godoc
// @Summary     Notification push over websocket
// @Description JSON event frames; ?token= authenticates. Reconnecting
// @Description replaces the previous ws subscription.
// @Tags        notifications
// @Param       token query string true "JWT"
// @Router      /v1/notifications/ws [get]
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	const op = "notification.ws"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, err := h.userFromToken(r)
	if err != nil {
		logx.Error(h.Log, reqID, op, "auth failed", err)
		v1.WriteDomainError(w, r, err)
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		sub := h.Hub.Subscribe(u.ID, "ws", &wsSink{conn: conn})
		logx.Info(h.Log, reqID, op, "connected", "user_id", u.ID)

		// Reader loop only detects the client going away; inbound frames
		// are discarded.
		go func() {
			var discard string
			for {
				if err := websocket.Message.Receive(conn, &discard); err != nil {
					sub.Close()
					return
				}
			}
		}()

		<-sub.Done()
		logx.Info(h.Log, reqID, op, "disconnected", "user_id", u.ID)
	}).ServeHTTP(w, r)
}
