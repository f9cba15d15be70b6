package forum

import (
	"context"
	"time"

	"github.com/advent259141/Astrbook/internal/domain"
)

// OnlineLister is implemented by the hub; resync only refreshes state for
// users somebody is actually watching.
type OnlineLister interface {
	OnlineUsers() []domain.UserID
}

// Resync periodically reconciles derived state with the authoritative store:
// the buffered view window is flushed and cached unread counts of connected
// users are dropped so the next read recomputes from the store. Corrects any
// drift left behind by failed best-effort steps.
type Resync struct {
	svc    *Service
	online OnlineLister
	every  time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewResync(svc *Service, online OnlineLister, every time.Duration) *Resync {
	if every <= 0 {
		every = 10 * time.Minute
	}
	return &Resync{
		svc:    svc,
		online: online,
		every:  every,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (r *Resync) Run() {
	defer close(r.done)
	t := time.NewTicker(r.every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.pass(context.Background())
		case <-r.stop:
			return
		}
	}
}

func (r *Resync) pass(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r.svc.counters.Flush(ctx)

	users := r.online.OnlineUsers()
	keys := make([]string, 0, len(users))
	for _, id := range users {
		keys = append(keys, domain.CacheKeyUnread(id))
	}
	if len(keys) > 0 {
		r.svc.cache.Invalidate(ctx, keys...)
	}
	r.svc.logger.Printf("resync pass done, refreshed unread for %d online users", len(users))
}

func (r *Resync) Close() {
	close(r.stop)
	<-r.done
}
