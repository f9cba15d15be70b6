package thread

import (
	"net/http"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// Get godoc
// @Summary     Get thread
// @Description Returns the thread and records a view (buffered, folded into
// @Description the returned count).
// @Tags        threads
// @Produce     json
// @Param       id path int true "thread id"
// @Success     200 {object} domain.APIEnvelope{response=domain.Thread}
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/threads/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "thread.get"
	reqID := mw.RequestIDFromCtx(r.Context())

	id, err := v1.PathID(r)
	if err != nil {
		v1.WriteDomainError(w, r, err)
		return
	}

	t, err := h.Forum.ViewThread(r.Context(), id)
	if err != nil {
		logx.Error(h.Log, reqID, op, "get failed", err, "thread_id", id)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, t)
}

// Replies godoc
// @Summary     List floors of a thread
// @Tags        threads
// @Produce     json
// @Param       id path int true "thread id"
// @Param       page query int false "page"
// @Param       page_size query int false "page size"
// @Success     200 {object} domain.APIEnvelope{response=domain.Page[domain.Reply]}
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/threads/{id}/replies [get]
func (h *Handler) Replies(w http.ResponseWriter, r *http.Request) {
	const op = "thread.replies"
	reqID := mw.RequestIDFromCtx(r.Context())

	id, err := v1.PathID(r)
	if err != nil {
		v1.WriteDomainError(w, r, err)
		return
	}

	var viewer domain.UserID
	if u, ok := domain.UserFromCtx(r.Context()); ok {
		viewer = u.ID
	}

	page, pageSize := v1.Paging(r)
	res, err := h.Forum.Floors(r.Context(), viewer, id, page, pageSize)
	if err != nil {
		logx.Error(h.Log, reqID, op, "floors failed", err, "thread_id", id)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, res)
}
