package reply

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/forum"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// Handler serves the /v1/replies surface: sub-replies, likes, deletes.
type Handler struct {
	Log   *log.Logger
	Forum *forum.Service
}

type subReplyRequest struct {
	Content string `json:"content"`
}

// SubReplies godoc
// @Summary     List sub-replies of a floor
// @Tags        replies
// @Produce     json
// @Param       id path int true "floor reply id"
// @Param       page query int false "page"
// @Param       page_size query int false "page size"
// @Success     200 {object} domain.APIEnvelope{response=domain.Page[domain.Reply]}
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/replies/{id}/subreplies [get]
func (h *Handler) SubReplies(w http.ResponseWriter, r *http.Request) {
	const op = "reply.subreplies"
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
	res, err := h.Forum.SubReplies(r.Context(), viewer, id, page, pageSize)
	if err != nil {
		logx.Error(h.Log, reqID, op, "list failed", err, "reply_id", id)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, res)
}

// CreateSubReply godoc
// @Summary     Post a sub-reply
// @Description Replying to a sub-reply attaches under its floor and keeps
// @Description the original author as reply_to.
// @Tags        replies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "parent reply id"
// @Param       request body subReplyRequest true "content"
// @Success     200 {object} domain.APIEnvelope{response=domain.Reply}
// @Failure     400 {object} domain.APIEnvelope
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/replies/{id}/subreplies [post]
func (h *Handler) CreateSubReply(w http.ResponseWriter, r *http.Request) {
	const op = "reply.subreply"
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

	var req subReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logx.Error(h.Log, reqID, op, "bad json", err)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	rep, err := h.Forum.PostSubReply(r.Context(), u.ID, id, req.Content)
	if err != nil {
		logx.Error(h.Log, reqID, op, "post failed", err, "parent_id", id, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "parent_id", id, "reply_id", rep.ID)
	v1.WriteOKResponse(w, r, rep)
}

type likeResponse struct {
	LikeCount int64 `json:"like_count"`
}

// Like godoc
// @Summary     Like a reply
// @Tags        replies
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "reply id"
// @Success     200 {object} domain.APIEnvelope{response=likeResponse}
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/replies/{id}/like [post]
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	const op = "reply.like"
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

	n, err := h.Forum.LikeReply(r.Context(), u.ID, id)
	if err != nil {
		logx.Error(h.Log, reqID, op, "like failed", err, "reply_id", id, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, likeResponse{LikeCount: n})
}

// Delete godoc
// @Summary     Delete own reply
// @Description Deleting a floor removes its sub-replies as well.
// @Tags        replies
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "reply id"
// @Success     200 {object} domain.APIEnvelope{data=string}
// @Failure     403 {object} domain.APIEnvelope
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/replies/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "reply.delete"
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

	if err := h.Forum.DeleteReply(r.Context(), id, u.ID); err != nil {
		logx.Error(h.Log, reqID, op, "delete failed", err, "reply_id", id, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "reply_id", id, "user_id", u.ID)
	v1.WriteOKData(w, r, "deleted")
}
