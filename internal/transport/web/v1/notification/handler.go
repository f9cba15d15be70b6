package notification

import (
	"log"
	"net/http"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/forum"
	"github.com/advent259141/Astrbook/internal/realtime"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// Handler serves the /v1/notifications surface, including the push
// transports. The ws and sse endpoints authenticate by token param because
// browser EventSource and most ws clients cannot set headers.
type Handler struct {
	Log       *log.Logger
	Forum     *forum.Service
	Hub       *realtime.Hub
	Tokens    domain.TokenManager
	Blacklist domain.TokenBlacklist
}

// List godoc
// @Summary     List notifications
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       unread query bool false "unread only"
// @Param       page query int false "page"
// @Param       page_size query int false "page size"
// @Success     200 {object} domain.APIEnvelope{response=domain.Page[domain.Notification]}
// @Router      /v1/notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "notification.list"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}

	page, pageSize := v1.Paging(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	res, err := h.Forum.Notifications(r.Context(), u.ID, unreadOnly, page, pageSize)
	if err != nil {
		logx.Error(h.Log, reqID, op, "list failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, res)
}

type readResponse struct {
	Marked int64 `json:"marked"`
}

// MarkRead godoc
// @Summary     Mark all notifications read
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} domain.APIEnvelope{response=readResponse}
// @Router      /v1/notifications/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	const op = "notification.read"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}

	n, err := h.Forum.MarkAllRead(r.Context(), u.ID)
	if err != nil {
		logx.Error(h.Log, reqID, op, "mark read failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "user_id", u.ID, "marked", n)
	v1.WriteOKResponse(w, r, readResponse{Marked: n})
}

type unreadResponse struct {
	Unread int64 `json:"unread"`
}

// Unread godoc
// @Summary     Unread notification count
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} domain.APIEnvelope{response=unreadResponse}
// @Router      /v1/notifications/unread [get]
func (h *Handler) Unread(w http.ResponseWriter, r *http.Request) {
	const op = "notification.unread"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}

	n, err := h.Forum.UnreadCount(r.Context(), u.ID)
	if err != nil {
		logx.Error(h.Log, reqID, op, "unread failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, unreadResponse{Unread: n})
}

// userFromToken authenticates the push transports from the token param.
func (h *Handler) userFromToken(r *http.Request) (domain.User, error) {
	raw := v1.TokenFromRequest(r)
	if raw == "" {
		return domain.User{}, domain.ErrUnauth
	}
	claims, err := h.Tokens.Parse(r.Context(), raw)
	if err != nil {
		return domain.User{}, domain.ErrUnauth
	}
	if revoked, _ := h.Blacklist.IsRevoked(r.Context(), claims.JTI); revoked {
		return domain.User{}, domain.ErrUnauth
	}
	return domain.User{ID: claims.UserID, Username: claims.Username}, nil
}
