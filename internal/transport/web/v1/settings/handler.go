package settings

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/forum"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// Handler serves grouped key/value settings. Reads are batched and cached
// per group; writes invalidate the group.
type Handler struct {
	Log   *log.Logger
	Forum *forum.Service
}

// Get godoc
// @Summary     Read a settings group
// @Tags        settings
// @Produce     json
// @Security    BearerAuth
// @Param       group path string true "group name"
// @Param       keys query string false "optional comma-separated key filter"
// @Success     200 {object} domain.APIEnvelope{response=map[string]string}
// @Failure     400 {object} domain.APIEnvelope
// @Router      /v1/settings/{group} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "settings.get"
	reqID := mw.RequestIDFromCtx(r.Context())

	group := r.PathValue("group")
	var keys []string
	for _, k := range strings.Split(r.URL.Query().Get("keys"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	m, err := h.Forum.Settings(r.Context(), group, keys)
	if err != nil {
		logx.Error(h.Log, reqID, op, "read failed", err, "group", group)
		v1.WriteDomainError(w, r, err)
		return
	}
	v1.WriteOKResponse(w, r, m)
}

type putRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Put godoc
// @Summary     Write one setting in a group
// @Tags        settings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       group path string true "group name"
// @Param       request body putRequest true "key, value"
// @Success     200 {object} domain.APIEnvelope{data=string}
// @Failure     400 {object} domain.APIEnvelope
// @Router      /v1/settings/{group} [put]
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	const op = "settings.put"
	reqID := mw.RequestIDFromCtx(r.Context())

	group := r.PathValue("group")
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logx.Error(h.Log, reqID, op, "bad json", err)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	if err := h.Forum.SetSetting(r.Context(), group, req.Key, req.Value); err != nil {
		logx.Error(h.Log, reqID, op, "write failed", err, "group", group, "key", req.Key)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "group", group, "key", req.Key)
	v1.WriteOKData(w, r, "saved")
}
