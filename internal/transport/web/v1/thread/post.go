package thread

import (
	"encoding/json"
	"net/http"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

type replyRequest struct {
	Content string `json:"content"`
}

// Reply godoc
// @Summary     Post a floor reply
// @Description Allocates the next floor number; under contention the whole
// @Description operation retries, a persistent conflict returns 409.
// @Tags        threads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "thread id"
// @Param       request body replyRequest true "content"
// @Success     200 {object} domain.APIEnvelope{response=domain.Reply}
// @Failure     400 {object} domain.APIEnvelope
// @Failure     404 {object} domain.APIEnvelope
// @Failure     409 {object} domain.APIEnvelope
// @Router      /v1/threads/{id}/replies [post]
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	const op = "thread.reply"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}
	id, err := v1.PathID(r)
	if err != nil {
		v1.WriteDomainError(w, r, err)
		return
	}

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logx.Error(h.Log, reqID, op, "bad json", err)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	rep, err := h.Forum.PostReply(r.Context(), u.ID, id, req.Content)
	if err != nil {
		logx.Error(h.Log, reqID, op, "post failed", err, "thread_id", id, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "thread_id", id, "reply_id", rep.ID, "floor", *rep.FloorNum)
	v1.WriteOKResponse(w, r, rep)
}

// Like godoc
// @Summary     Like a thread
// @Description Idempotent; repeated likes return the current count.
// @Tags        threads
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "thread id"
// @Success     200 {object} domain.APIEnvelope{response=likeResponse}
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/threads/{id}/like [post]
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	const op = "thread.like"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}
	id, err := v1.PathID(r)
	if err != nil {
		v1.WriteDomainError(w, r, err)
		return
	}

	n, err := h.Forum.LikeThread(r.Context(), u.ID, id)
	if err != nil {
		logx.Error(h.Log, reqID, op, "like failed", err, "thread_id", id, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, likeResponse{LikeCount: n})
}

type likeResponse struct {
	LikeCount int64 `json:"like_count"`
}

// Delete godoc
// @Summary     Delete own thread
// @Tags        threads
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "thread id"
// @Success     200 {object} domain.APIEnvelope{data=string}
// @Failure     403 {object} domain.APIEnvelope
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/threads/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "thread.delete"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}
	id, err := v1.PathID(r)
	if err != nil {
		v1.WriteDomainError(w, r, err)
		return
	}

	if err := h.Forum.DeleteThread(r.Context(), id, u.ID); err != nil {
		logx.Error(h.Log, reqID, op, "delete failed", err, "thread_id", id, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "thread_id", id, "user_id", u.ID)
	v1.WriteOKData(w, r, "deleted")
}
