package web

import (
	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/forum"
	"github.com/advent259141/Astrbook/internal/realtime"
	"github.com/advent259141/Astrbook/internal/transport/web/mw"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/avatar"
	"github.com/advent259141/Astrbook/internal/transport/web/v1/health"
)

type AuthDeps struct {
	Hasher    domain.PasswordHasher
	Tokens    domain.TokenManager
	Blacklist domain.TokenBlacklist
}

func (a AuthDeps) mw() mw.AuthDeps {
	return mw.AuthDeps{Tokens: a.Tokens, Blacklist: a.Blacklist}
}

// Deps is everything the route layer needs. Handlers never touch repos or
// caches directly except users for auth; state flows through the coordinator.
type Deps struct {
	Forum   *forum.Service
	Hub     *realtime.Hub
	Users   domain.UsersRepo
	Auth    AuthDeps
	Avatars avatar.Store // nil disables the avatar routes
	DB      health.Pinger
	Cache   health.Pinger
}
