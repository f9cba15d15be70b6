package thread

import (
	"encoding/json"
	"net/http"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

type createRequest struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// Create godoc
// @Summary     Create thread
// @Tags        threads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body createRequest true "category, title, content"
// @Success     200 {object} domain.APIEnvelope{response=domain.Thread}
// @Failure     400 {object} domain.APIEnvelope
// @Failure     401 {object} domain.APIEnvelope
// @Router      /v1/threads [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "thread.create"
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

	t, err := h.Forum.CreateThread(r.Context(), u.ID, req.Category, req.Title, req.Content)
	if err != nil {
		logx.Error(h.Log, reqID, op, "create failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "thread_id", t.ID, "user_id", u.ID)
	v1.WriteOKResponse(w, r, t)
}
