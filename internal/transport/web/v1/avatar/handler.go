package avatar

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/forum"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// Store is the object-storage slice the avatar handler needs.
type Store interface {
	PutAvatar(ctx context.Context, userID domain.UserID, r io.Reader, mime string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
}

type Handler struct {
	Log      *log.Logger
	Forum    *forum.Service
	Store    Store
	MaxBytes int64
}

var allowedMime = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

type uploadResponse struct {
	Avatar string `json:"avatar"`
}

// Upload godoc
// @Summary     Upload avatar
// @Description multipart field "file"; png/jpeg/gif/webp, bounded size.
// @Tags        users
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} domain.APIEnvelope{response=uploadResponse}
// @Failure     400 {object} domain.APIEnvelope
// @Router      /v1/avatar [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "avatar.upload"
	reqID := mw.RequestIDFromCtx(r.Context())

	u, ok := domain.UserFromCtx(r.Context())
	if !ok {
		v1.WriteDomainError(w, r, domain.ErrUnauth)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		logx.Error(h.Log, reqID, op, "no file", err)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}
	defer file.Close()

	mime := hdr.Header.Get("Content-Type")
	if !allowedMime[mime] {
		logx.Error(h.Log, reqID, op, "bad mime", domain.ErrBadParams, "mime", mime)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	key, err := h.Store.PutAvatar(r.Context(), u.ID, file, mime)
	if err != nil {
		logx.Error(h.Log, reqID, op, "store failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, domain.ErrUnexpected)
		return
	}

	url := "/v1/avatar/" + key
	if err := h.Forum.SetAvatar(r.Context(), u.ID, url); err != nil {
		logx.Error(h.Log, reqID, op, "save url failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, err)
		return
	}

	logx.Info(h.Log, reqID, op, "ok", "user_id", u.ID, "key", key)
	v1.WriteOKResponse(w, r, uploadResponse{Avatar: url})
}

// Get streams a stored avatar. Key is the wildcard remainder of the route.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "avatar.get"
	reqID := mw.RequestIDFromCtx(r.Context())

	key := r.PathValue("key")
	if key == "" {
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	rc, size, mime, err := h.Store.Open(r.Context(), key)
	if err != nil {
		logx.Error(h.Log, reqID, op, "open failed", err, "key", key)
		v1.WriteDomainError(w, r, domain.ErrNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(w, rc)
}
