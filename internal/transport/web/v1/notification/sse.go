package notification

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// sseSink streams events as text/event-stream. Send runs on the drain
// goroutine while the handler goroutine may still touch the writer on
// teardown, hence the mutex.
type sseSink struct {
	mu sync.Mutex
	w  http.ResponseWriter
	f  http.Flusher
}

func (s *sseSink) Send(ev domain.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

func (s *sseSink) Heartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// Close is a no-op: the response ends when the handler returns.
func (s *sseSink) Close() error { return nil }

// SSE godoc
// @Summary     Notification push over server-sent events
// @Description data: frames with JSON events; ?token= authenticates.
// @Tags        notifications
// @Produce     text/event-stream
// @Param       token query string true "JWT"
// @Router      /v1/notifications/sse [get]
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request) {
	const op = "notification.sse"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, err := h.userFromToken(r)
	if err != nil {
		logx.Error(h.Log, reqID, op, "auth failed", err)
		v1.WriteDomainError(w, r, err)
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		logx.Error(h.Log, reqID, op, "streaming unsupported", domain.ErrUnexpected)
		v1.WriteDomainError(w, r, domain.ErrUnexpected)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()

	sub := h.Hub.Subscribe(u.ID, "sse", &sseSink{w: w, f: f})
	logx.Info(h.Log, reqID, op, "connected", "user_id", u.ID)

	select {
	case <-r.Context().Done():
		sub.Close()
	case <-sub.Done():
	}
	logx.Info(h.Log, reqID, op, "disconnected", "user_id", u.ID)
}
