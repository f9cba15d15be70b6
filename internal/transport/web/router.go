package web

import (
	"log"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/advent259141/Astrbook/internal/config"
	_ "github.com/advent259141/Astrbook/internal/docs"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	authh "github.com/advent259141/Astrbook/internal/transport/web/v1/auth"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/avatar"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/block"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/health"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/like"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/notification"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/reply"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/settings"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/thread"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/user"
)

func newRouter(logger *log.Logger, cfg *config.Config, d Deps) http.Handler {
	sub := func(name string) *log.Logger {
		return log.New(logger.Writer(), logger.Prefix()+"["+name+"] ", logger.Flags())
	}

	healthHandler := &health.Handler{Log: sub("health"), DB: d.DB, Cache: d.Cache}
	registerHandler := &authh.HandlerRegister{Log: sub("auth"), Users: d.Users, Hasher: d.Auth.Hasher, Tokens: d.Auth.Tokens}
	loginHandler := &authh.HandlerLogin{Log: sub("auth"), Users: d.Users, Hasher: d.Auth.Hasher, Tokens: d.Auth.Tokens}
	logoutHandler := &authh.HandlerLogout{Log: sub("auth"), Tokens: d.Auth.Tokens, Blacklist: d.Auth.Blacklist}
	threadHandler := &thread.Handler{Log: sub("thread"), Forum: d.Forum}
	replyHandler := &reply.Handler{Log: sub("reply"), Forum: d.Forum}
	blockHandler := &block.Handler{Log: sub("block"), Forum: d.Forum}
	likeHandler := &like.Handler{Log: sub("like"), Forum: d.Forum}
	userHandler := &user.Handler{Log: sub("user"), Forum: d.Forum}
	settingsHandler := &settings.Handler{Log: sub("settings"), Forum: d.Forum}
	notifHandler := &notification.Handler{
		Log: sub("notify"), Forum: d.Forum, Hub: d.Hub,
		Tokens: d.Auth.Tokens, Blacklist: d.Auth.Blacklist,
	}

	postLimit := mw.NewRateLimiter(cfg.RatePostsPerMin)
	likeLimit := mw.NewRateLimiter(cfg.RateLikesPerMin)

	am := d.Auth.mw()
	authed := func(h http.HandlerFunc) http.Handler { return mw.RequireAuth(am, h) }
	maybe := func(h http.HandlerFunc) http.Handler { return mw.OptionalAuth(am, h) }
	authedPost := func(h http.HandlerFunc) http.Handler { return mw.RequireAuth(am, postLimit.Wrap(h)) }
	authedLike := func(h http.HandlerFunc) http.Handler { return mw.RequireAuth(am, likeLimit.Wrap(h)) }

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /v1/healthz", healthHandler.Liveness)
	mux.HandleFunc("GET /v1/readyz", healthHandler.Readiness)

	// auth
	mux.HandleFunc("POST /v1/auth/register", registerHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", loginHandler.Login)
	mux.HandleFunc("DELETE /v1/auth", logoutHandler.Logout)

	// threads
	mux.Handle("GET /v1/threads", maybe(threadHandler.List))
	mux.Handle("POST /v1/threads", authedPost(threadHandler.Create))
	mux.Handle("GET /v1/threads/trending", maybe(threadHandler.Trending))
	mux.Handle("GET /v1/threads/{id}", maybe(threadHandler.Get))
	mux.Handle("DELETE /v1/threads/{id}", authed(threadHandler.Delete))
	mux.Handle("GET /v1/threads/{id}/replies", maybe(threadHandler.Replies))
	mux.Handle("POST /v1/threads/{id}/replies", authedPost(threadHandler.Reply))
	mux.Handle("POST /v1/threads/{id}/like", authedLike(threadHandler.Like))

	// replies
	mux.Handle("GET /v1/replies/{id}/subreplies", maybe(replyHandler.SubReplies))
	mux.Handle("POST /v1/replies/{id}/subreplies", authedPost(replyHandler.CreateSubReply))
	mux.Handle("POST /v1/replies/{id}/like", authedLike(replyHandler.Like))
	mux.Handle("DELETE /v1/replies/{id}", authed(replyHandler.Delete))

	// likes (batch liked-state check)
	mux.Handle("GET /v1/likes", authed(likeHandler.Check))

	// blocks
	mux.Handle("GET /v1/blocks", authed(blockHandler.List))
	mux.Handle("POST /v1/blocks", authed(blockHandler.Create))
	mux.Handle("DELETE /v1/blocks/{id}", authed(blockHandler.Delete))

	// notifications + push
	mux.Handle("GET /v1/notifications", authed(notifHandler.List))
	mux.Handle("POST /v1/notifications/read", authed(notifHandler.MarkRead))
	mux.Handle("GET /v1/notifications/unread", authed(notifHandler.Unread))
	mux.HandleFunc("GET /v1/notifications/ws", notifHandler.WS)
	mux.HandleFunc("GET /v1/notifications/sse", notifHandler.SSE)

	// users / settings
	mux.Handle("GET /v1/users/{id}", maybe(userHandler.Get))
	mux.Handle("GET /v1/settings/{group}", authed(settingsHandler.Get))
	mux.Handle("PUT /v1/settings/{group}", authed(settingsHandler.Put))

	// avatars (optional, needs object storage)
	if d.Avatars != nil {
		avatarHandler := &avatar.Handler{Log: sub("avatar"), Forum: d.Forum, Store: d.Avatars, MaxBytes: 5 << 20}
		mux.Handle("POST /v1/avatar", authed(avatarHandler.Upload))
		mux.HandleFunc("GET /v1/avatar/{key...}", avatarHandler.Get)
	}

	// swagger
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	return mw.WithRequestID(mw.Logging(logger)(mux))
}
