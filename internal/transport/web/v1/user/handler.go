package user

import (
	"log"
	"net/http"

	"github.com/advent259141/Astrbook/internal/forum"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

type Handler struct {
	Log   *log.Logger
	Forum *forum.Service
}

// Get godoc
// @Summary     Public user profile
// @Description Read-through cached; a deleted user is negative-cached
// @Description briefly.
// @Tags        users
// @Produce     json
// @Param       id path int true "user id"
// @Success     200 {object} domain.APIEnvelope{response=domain.User}
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/users/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "user.get"
	reqID := mw.RequestIDFromCtx(r.Context())

	id, err := v1.PathID(r)
	if err != nil {
		v1.WriteDomainError(w, r, err)
		return
	}

	u, err := h.Forum.UserByID(r.Context(), id)
	if err != nil {
		logx.Error(h.Log, reqID, op, "lookup failed", err, "user_id", id)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, u)
}
