package auth

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/transport/web/logx"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	v1 "github.com/advent259141/Astrbook/internal/transport/web/v1"
)

// HandlerRegister serves POST /v1/auth/register.
type HandlerRegister struct {
	Log    *log.Logger
	Users  domain.UsersRepo
	Hasher domain.PasswordHasher
	Tokens domain.TokenManager
}

type registerRequest struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type registerResponse struct {
	User  domain.User  `json:"user"`
	Token domain.Token `json:"token"`
}

// Register godoc
// @Summary     Register new account
// @Description Creates the account and returns a session token right away.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body registerRequest true "username, nickname, password"
// @Success     200 {object} domain.APIEnvelope{response=registerResponse}
// @Failure     400 {object} domain.APIEnvelope
// @Failure     409 {object} domain.APIEnvelope
// @Failure     500 {object} domain.APIEnvelope
// @Router      /v1/auth/register [post]
func (h *HandlerRegister) Register(w http.ResponseWriter, r *http.Request) {
	const op = "auth.register"
	reqID := mw.RequestIDFromCtx(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logx.Error(h.Log, reqID, op, "bad json", err)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	if !domain.ValidUsername(req.Username) || !domain.ValidPassword(req.Password) {
		logx.Error(h.Log, reqID, op, "validation failed", domain.ErrBadParams, "username", req.Username)
		v1.WriteDomainError(w, r, domain.ErrBadParams)
		return
	}

	hashStr, err := h.Hasher.Hash(req.Password)
	if err != nil {
		logx.Error(h.Log, reqID, op, "hash failed", err)
		v1.WriteDomainError(w, r, domain.ErrUnexpected)
		return
	}

	u, err := h.Users.CreateUser(r.Context(), req.Username, req.Nickname, hashStr)
	if err != nil {
		// unique violation on username maps to ErrConflict
		logx.Error(h.Log, reqID, op, "create user failed", err, "username", req.Username)
		v1.WriteDomainError(w, r, err)
		return
	}

	token, _, err := h.Tokens.Issue(r.Context(), u.ID, u.Username)
	if err != nil {
		logx.Error(h.Log, reqID, op, "issue token failed", err, "user_id", u.ID)
		v1.WriteDomainError(w, r, domain.ErrUnexpected)
		return
	}

	u.PassHash = ""
	logx.Info(h.Log, reqID, op, "ok", "user_id", u.ID, "username", u.Username)
	v1.WriteOKResponse(w, r, registerResponse{User: u, Token: token})
}
