package block

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

// Handler serves the /v1/blocks surface.
type Handler struct {
	Log   *log.Logger
	Forum *forum.Service
}

type createRequest struct {
	UserID domain.UserID `json:"user_id"`
}

// List godoc
// @Summary     List my blocks
// @Tags        blocks
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} domain.APIEnvelope{response=domain.Page[domain.Block]}
// @Router      /v1/blocks [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "block.list"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}

	page, pageSize := v1.Paging(r)
	res, err := h.Forum.ListBlocks(r.Context(), u.ID, page, pageSize)
	if err != nil {
		logx.Error(h.Log, reqID, op, "list failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, res)
}

// Create godoc
// @Summary     Block a user
// @Tags        blocks
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body createRequest true "user_id to block"
// @Success     200 {object} domain.APIEnvelope{response=domain.Block}
// @Failure     400 {object} domain.APIEnvelope
// @Failure     404 {object} domain.APIEnvelope
// @Failure     409 {object} domain.APIEnvelope
// @Router      /v1/blocks [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "block.create"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logx.Error(h.Log, reqID, op, "bad json", err)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	b, err := h.Forum.BlockUser(r.Context(), u.ID, req.UserID)
	if err != nil {
		logx.Error(h.Log, reqID, op, "block failed", err, "user_id", u.ID, "target", req.UserID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "user_id", u.ID, "target", req.UserID)
	v1.WriteOKResponse(w, r, b)
}

// Delete godoc
// @Summary     Unblock a user
// @Tags        blocks
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "blocked user id"
// @Success     200 {object} domain.APIEnvelope{data=string}
// @Failure     404 {object} domain.APIEnvelope
// @Router      /v1/blocks/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "block.delete"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}
	target, err := v1.PathID(r)
	if err != nil {
		v1.WriteDomainError(w, r, err)
		return
	}

	if err := h.Forum.UnblockUser(r.Context(), u.ID, target); err != nil {
		logx.Error(h.Log, reqID, op, "unblock failed", err, "user_id", u.ID, "target", target)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "user_id", u.ID, "target", target)
	v1.WriteOKData(w, r, "unblocked")
}
