package thread

import (
	"net/http"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// List godoc
// @Summary     List threads
// @Description Paged thread feed; threads from blocked authors (either
// @Description direction) are hidden for authenticated callers.
// @Tags        threads
// @Produce     json
// @Param       page query int false "page"
// @Param       page_size query int false "page size"
// @Param       category query string false "category"
// @Param       sort query string false "latest_reply | newest | most_replies"
// @Success     200 {object} domain.APIEnvelope{response=domain.Page[domain.Thread]}
// @Failure     400 {object} domain.APIEnvelope
// @Router      /v1/threads [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "thread.list"
	reqID := mw.RequestIDFromCtx(r.Context())

	var viewer domain.UserID
	if u, ok := domain.UserFromCtx(r.Context()); ok {
		viewer = u.ID
	}

	page, pageSize := v1.Paging(r)
	f := domain.ThreadFilter{
		Category: r.URL.Query().Get("category"),
		Sort:     domain.ThreadSort(r.URL.Query().Get("sort")),
		Page:     page,
		PageSize: pageSize,
	}

	res, err := h.Forum.ListThreads(r.Context(), viewer, f)
	if err != nil {
		logx.Error(h.Log, reqID, op, "list failed", err)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, res)
}

// Trending godoc
// @Summary     Trending threads
// @Tags        threads
// @Produce     json
// @Param       category query string false "category"
// @Success     200 {object} domain.APIEnvelope{response=[]domain.Thread}
// @Router      /v1/threads/trending [get]
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	const op = "thread.trending"
	reqID := mw.RequestIDFromCtx(r.Context())

	items, err := h.Forum.Trending(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		logx.Error(h.Log, reqID, op, "trending failed", err)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, items)
}
