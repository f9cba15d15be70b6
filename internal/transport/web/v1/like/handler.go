package like

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/forum"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// Handler answers "which of these targets did I already like", so clients
// can render like buttons for a page of threads or replies in one request.
type Handler struct {
	Log   *log.Logger
	Forum *forum.Service
}

// Check godoc
// @Summary     Check liked state for a batch of targets
// @Tags        likes
// @Produce     json
// @Security    BearerAuth
// @Param       type query string true "thread or reply"
// @Param       ids query string true "comma-separated target ids"
// @Success     200 {object} domain.APIEnvelope{response=map[int64]bool}
// @Failure     400 {object} domain.APIEnvelope
// @Router      /v1/likes [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	const op = "like.check"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}

	targetType := r.URL.Query().Get("type")
	var ids []int64
	for _, s := range strings.Split(r.URL.Query().Get("ids"), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			v1.WriteDomainError(w, r, domain.ErrBadParams)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	liked, err := h.Forum.LikedIDs(r.Context(), u.ID, targetType, ids)
	if err != nil {
		logx.Error(h.Log, reqID, op, "lookup failed", err, "type", targetType, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, liked)
}
