package forum

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/advent259141/Astrbook/internal/cache"
	"github.com/advent259141/Astrbook/internal/domain"
)

// memStore backs every repo interface with guarded maps. CreateFloor honors
// the allocator contract: ordinal read, insert and reply_count bump happen
// under one lock, so concurrent callers see gap-free floors.
type memStore struct {
	mu            sync.Mutex
	nextID        int64
	users         map[domain.UserID]domain.User
	threads       map[domain.ThreadID]domain.Thread
	replies       map[domain.ReplyID]domain.Reply
	likes         map[string]bool
	notifications []domain.Notification
	blocks        map[domain.UserID]map[domain.UserID]bool
	settings      map[string]map[string]string // group -> key -> value

	listCalls     int   // ThreadsList invocations, for cache hit assertions
	userByIDCalls int   // UserByID invocations
	settingsCalls int   // GetSettingsGroup invocations
	conflictsLeft int   // CreateFloor returns ErrConflict while > 0
	failNotify    error // Create(notification) error injection
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[domain.UserID]domain.User),
		threads:  make(map[domain.ThreadID]domain.Thread),
		replies:  make(map[domain.ReplyID]domain.Reply),
		likes:    make(map[string]bool),
		blocks:   make(map[domain.UserID]map[domain.UserID]bool),
		settings: make(map[string]map[string]string),
	}
}

func (m *memStore) id() int64 { m.nextID++; return m.nextID }

func (m *memStore) addUser(id domain.UserID, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = domain.User{ID: id, Username: username, PassHash: "secret-hash"}
}

// ---- UsersRepo ----

func (m *memStore) Close()                     {}
func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) CreateUser(_ context.Context, username, nickname, passHash string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := domain.User{ID: m.id(), Username: username, Nickname: nickname, PassHash: passHash}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) UserByUsername(_ context.Context, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id domain.UserID) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userByIDCalls++
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memStore) UsersByUsernames(_ context.Context, usernames []string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, name := range usernames {
		for _, u := range m.users {
			if u.Username == name {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (m *memStore) UpdateAvatar(_ context.Context, id domain.UserID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Avatar = url
	m.users[id] = u
	return nil
}

// ---- ThreadsRepo ----

func (m *memStore) CreateThread(_ context.Context, t domain.Thread) (domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	t.CreatedAt = time.Now()
	t.LastReplyAt = t.CreatedAt
	m.threads[t.ID] = t
	return t, nil
}

func (m *memStore) ThreadByID(_ context.Context, id domain.ThreadID) (domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return domain.Thread{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) ThreadsList(_ context.Context, f domain.ThreadFilter) ([]domain.Thread, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	excluded := make(map[domain.UserID]bool, len(f.ExcludeAuthors))
	for _, id := range f.ExcludeAuthors {
		excluded[id] = true
	}
	var out []domain.Thread
	for _, t := range m.threads {
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if excluded[t.AuthorID] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memStore) DeleteThread(_ context.Context, id domain.ThreadID, owner domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.AuthorID != owner {
		return domain.ErrForbidden
	}
	delete(m.threads, id)
	return nil
}

func (m *memStore) TouchLastReply(_ context.Context, id domain.ThreadID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.LastReplyAt = at
	m.threads[id] = t
	return nil
}

// ---- RepliesRepo ----

func (m *memStore) CreateFloor(_ context.Context, r domain.Reply) (domain.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return domain.Reply{}, domain.ErrConflict
	}
	t, ok := m.threads[r.ThreadID]
	if !ok {
		return domain.Reply{}, domain.ErrNotFound
	}
	max := 1 // floor 1 is the thread content
	for _, ex := range m.replies {
		if ex.ThreadID == r.ThreadID && ex.FloorNum != nil && *ex.FloorNum > max {
			max = *ex.FloorNum
		}
	}
	n := max + 1
	r.ID = m.id()
	r.FloorNum = &n
	r.CreatedAt = time.Now()
	m.replies[r.ID] = r
	t.ReplyCount++
	t.LastReplyAt = r.CreatedAt
	m.threads[r.ThreadID] = t
	return r, nil
}

func (m *memStore) CreateSubReply(_ context.Context, r domain.Reply) (domain.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	r.CreatedAt = time.Now()
	m.replies[r.ID] = r
	return r, nil
}

func (m *memStore) ReplyByID(_ context.Context, id domain.ReplyID) (domain.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replies[id]
	if !ok {
		return domain.Reply{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memStore) Floors(_ context.Context, threadID domain.ThreadID, page, pageSize int, excludeAuthors []domain.UserID) ([]domain.Reply, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	excluded := make(map[domain.UserID]bool, len(excludeAuthors))
	for _, id := range excludeAuthors {
		excluded[id] = true
	}
	var out []domain.Reply
	for _, r := range m.replies {
		if r.ThreadID == threadID && r.FloorNum != nil && !excluded[r.AuthorID] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].FloorNum < *out[j].FloorNum })
	return out, int64(len(out)), nil
}

func (m *memStore) SubReplies(_ context.Context, parentID domain.ReplyID, page, pageSize int, excludeAuthors []domain.UserID) ([]domain.Reply, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	excluded := make(map[domain.UserID]bool, len(excludeAuthors))
	for _, id := range excludeAuthors {
		excluded[id] = true
	}
	var out []domain.Reply
	for _, r := range m.replies {
		if r.ParentID != nil && *r.ParentID == parentID && !excluded[r.AuthorID] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memStore) DeleteReply(_ context.Context, id domain.ReplyID, owner domain.UserID) (int, domain.ThreadID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replies[id]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	if r.AuthorID != owner {
		return 0, 0, domain.ErrForbidden
	}
	removed := 1
	delete(m.replies, id)
	if r.FloorNum != nil {
		for sid, sub := range m.replies {
			if sub.ParentID != nil && *sub.ParentID == id {
				delete(m.replies, sid)
				removed++
			}
		}
	}
	return removed, r.ThreadID, nil
}

// ---- LikesRepo ----

func (m *memStore) CreateLike(_ context.Context, userID domain.UserID, targetType string, targetID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fmt.Sprintf("%d/%s/%d", userID, targetType, targetID)
	if m.likes[k] {
		return false, nil
	}
	m.likes[k] = true
	return true, nil
}

func (m *memStore) LikedIDs(_ context.Context, userID domain.UserID, targetType string, ids []int64) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]bool)
	for _, id := range ids {
		if m.likes[fmt.Sprintf("%d/%s/%d", userID, targetType, id)] {
			out[id] = true
		}
	}
	return out, nil
}

// ---- NotificationsRepo ----

func (m *memStore) Create(_ context.Context, n domain.Notification) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNotify != nil {
		return domain.Notification{}, m.failNotify
	}
	n.ID = m.id()
	n.CreatedAt = time.Now()
	m.notifications = append(m.notifications, n)
	return n, nil
}

func (m *memStore) ListByUser(_ context.Context, userID domain.UserID, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) MarkAllRead(_ context.Context, userID domain.UserID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var marked int64
	for i, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			m.notifications[i].IsRead = true
			marked++
		}
	}
	return marked, nil
}

func (m *memStore) UnreadCount(_ context.Context, userID domain.UserID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, x := range m.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *memStore) notificationsFor(userID domain.UserID) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// ---- BlocksRepo ----

func (m *memStore) CreateBlock(_ context.Context, userID, target domain.UserID) (domain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks[userID] == nil {
		m.blocks[userID] = make(map[domain.UserID]bool)
	}
	m.blocks[userID][target] = true
	return domain.Block{ID: m.id(), UserID: userID, BlockedUserID: target}, nil
}

func (m *memStore) DeleteBlock(_ context.Context, userID, target domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.blocks[userID][target] {
		return domain.ErrNotFound
	}
	delete(m.blocks[userID], target)
	return nil
}

func (m *memStore) ListBlocks(_ context.Context, userID domain.UserID, page, pageSize int) ([]domain.Block, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Block
	for target := range m.blocks[userID] {
		out = append(out, domain.Block{UserID: userID, BlockedUserID: target})
	}
	return out, int64(len(out)), nil
}

func (m *memStore) BlockedEitherWay(_ context.Context, userID domain.UserID) ([]domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[domain.UserID]bool)
	for target := range m.blocks[userID] {
		set[target] = true
	}
	for blocker, targets := range m.blocks {
		if targets[userID] {
			set[blocker] = true
		}
	}
	out := make([]domain.UserID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, nil
}

func (m *memStore) UsersWhoBlocked(_ context.Context, author domain.UserID, targets []domain.UserID) (map[domain.UserID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.UserID]bool)
	for _, t := range targets {
		if m.blocks[t][author] {
			out[t] = true
		}
	}
	return out, nil
}

func (m *memStore) IsBlocked(_ context.Context, userID, target domain.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks[userID][target], nil
}

// ---- SettingsRepo ----

func (m *memStore) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.settings {
		if v, ok := g[key]; ok {
			return v, nil
		}
	}
	return "", domain.ErrNotFound
}

func (m *memStore) GetSettingsGroup(_ context.Context, group string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settingsCalls++
	out := make(map[string]string, len(m.settings[group]))
	for k, v := range m.settings[group] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SetSetting(_ context.Context, group, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings[group] == nil {
		m.settings[group] = make(map[string]string)
	}
	m.settings[group][key] = value
	return nil
}

// fakeCounters tracks values per scope with the same clamp-at-zero rule as
// the store and buffers views like the engine does.
type fakeCounters struct {
	mu      sync.Mutex
	vals    map[string]int64
	views   map[domain.ThreadID]int64
	flushes int
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{vals: make(map[string]int64), views: make(map[domain.ThreadID]int64)}
}

func ckey(scope domain.CounterScope, id int64) string {
	return fmt.Sprintf("%s/%d", scope, id)
}

func (f *fakeCounters) Increment(_ context.Context, scope domain.CounterScope, id, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.vals[ckey(scope, id)] + delta
	if n < 0 {
		n = 0
	}
	f.vals[ckey(scope, id)] = n
	return n, nil
}

func (f *fakeCounters) Read(_ context.Context, scope domain.CounterScope, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.vals[ckey(scope, id)]
	if scope == domain.CounterThreadViews {
		n += f.views[id]
	}
	return n, nil
}

func (f *fakeCounters) RecordView(id domain.ThreadID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[id]++
}

func (f *fakeCounters) Flush(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, delta := range f.views {
		f.vals[ckey(domain.CounterThreadViews, id)] += delta
	}
	f.views = make(map[domain.ThreadID]int64)
	f.flushes++
}

// fakePub records direct pushes and evaluates broadcasts against a fixed
// online population.
type fakePub struct {
	mu     sync.Mutex
	online []domain.UserID
	sent   map[domain.UserID][]domain.Event
}

func newFakePub(online ...domain.UserID) *fakePub {
	return &fakePub{online: online, sent: make(map[domain.UserID][]domain.Event)}
}

func (p *fakePub) Publish(userID domain.UserID, ev domain.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[userID] = append(p.sent[userID], ev)
	return 1
}

func (p *fakePub) Broadcast(ev domain.Event, match func(domain.UserID) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, u := range p.online {
		if match == nil || match(u) {
			p.sent[u] = append(p.sent[u], ev)
			n++
		}
	}
	return n
}

func (p *fakePub) Online(userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.online {
		if u == userID {
			return true
		}
	}
	return false
}

func (p *fakePub) eventsFor(userID domain.UserID) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.sent[userID]...)
}

type fixture struct {
	store    *memStore
	counters *fakeCounters
	pub      *fakePub
	layer    *cache.Layer
	svc      *Service
}

func newFixture(t *testing.T, online ...domain.UserID) *fixture {
	t.Helper()
	store := newMemStore()
	counters := newFakeCounters()
	pub := newFakePub(online...)
	kv := cache.NewMemory()
	t.Cleanup(kv.Close)
	logger := log.New(io.Discard, "", 0)
	layer := cache.New(kv, logger, 15)
	svc := New(Config{}, Deps{
		Logger:        logger,
		Users:         store,
		Threads:       store,
		Replies:       store,
		Likes:         store,
		Notifications: store,
		Blocks:        store,
		Settings:      store,
		Counters:      counters,
		Cache:         layer,
		Hub:           pub,
	})
	return &fixture{store: store, counters: counters, pub: pub, layer: layer, svc: svc}
}

func (f *fixture) seedThread(t *testing.T, author domain.UserID, category string) domain.Thread {
	t.Helper()
	th, err := f.svc.CreateThread(context.Background(), author, category, "a thread", "first floor content")
	require.NoError(t, err)
	return th
}

// ---- tests ----

func TestPostReplyAssignsGapFreeFloors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	th := f.seedThread(t, 1, "chat")

	const n = 20
	floors := make(chan int, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(author domain.UserID) {
			defer wg.Done()
			rep, err := f.svc.PostReply(ctx, author, th.ID, "hello")
			if err != nil {
				errs <- err
				return
			}
			floors <- *rep.FloorNum
		}(domain.UserID(100 + i))
	}
	wg.Wait()
	close(floors)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[int]bool)
	for fl := range floors {
		require.False(t, seen[fl], "floor %d assigned twice", fl)
		seen[fl] = true
	}
	// Floor 1 is the thread content; replies fill 2..n+1 with no gaps.
	for fl := 2; fl <= n+1; fl++ {
		require.True(t, seen[fl], "floor %d missing", fl)
	}

	got, err := f.store.ThreadByID(ctx, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(n), got.ReplyCount)
}

func TestPostReplyRetriesContendedAllocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	th := f.seedThread(t, 1, "chat")

	f.store.conflictsLeft = 2
	rep, err := f.svc.PostReply(ctx, 2, th.ID, "eventually lands")
	require.NoError(t, err)
	require.NotNil(t, rep.FloorNum)
	require.Equal(t, 2, *rep.FloorNum)

	f.store.conflictsLeft = 3
	_, err = f.svc.PostReply(ctx, 2, th.ID, "never lands")
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestPostReplyNotifiesThreadAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	th := f.seedThread(t, 1, "chat")

	// Replying to your own thread makes no noise.
	_, err := f.svc.PostReply(ctx, 1, th.ID, "bump")
	require.NoError(t, err)
	require.Empty(t, f.store.notificationsFor(1))

	rep, err := f.svc.PostReply(ctx, 2, th.ID, "nice thread")
	require.NoError(t, err)

	ns := f.store.notificationsFor(1)
	require.Len(t, ns, 1)
	require.Equal(t, domain.NotifyReply, ns[0].Kind)
	require.Equal(t, domain.UserID(2), ns[0].FromUserID)
	require.NotNil(t, ns[0].ReplyID)
	require.Equal(t, rep.ID, *ns[0].ReplyID)

	evs := f.pub.eventsFor(1)
	require.Len(t, evs, 1)
	require.Equal(t, domain.NotifyReply, evs[0].Kind)
}

func TestPostReplySurvivesNotificationFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	th := f.seedThread(t, 1, "chat")

	f.store.failNotify = fmt.Errorf("notifications table is on fire")
	rep, err := f.svc.PostReply(ctx, 2, th.ID, "still goes through")
	require.NoError(t, err, "persist decides success, notification is best-effort")
	require.NotNil(t, rep.FloorNum)
	require.Empty(t, f.store.notificationsFor(1))
}

func TestMentionsNotifiedOnceWithBlockFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	f.store.addUser(2, "bob")
	f.store.addUser(3, "carol")
	f.store.addUser(4, "dave")
	th := f.seedThread(t, 1, "tech")

	// carol blocked the author of the reply; she must not hear from them.
	_, err := f.store.CreateBlock(ctx, 3, 2)
	require.NoError(t, err)

	_, err = f.svc.PostReply(ctx, 2, th.ID, "ping @carol @dave @dave @bob @ghost")
	require.NoError(t, err)

	require.Empty(t, f.store.notificationsFor(3), "blocked author suppressed")
	require.Empty(t, f.store.notificationsFor(2), "no self-mention")

	ns := f.store.notificationsFor(4)
	require.Len(t, ns, 1, "duplicate mention collapses to one notification")
	require.Equal(t, domain.NotifyMention, ns[0].Kind)

	// The thread author gets the reply notification only, not a second
	// mention one.
	_, err = f.svc.PostReply(ctx, 2, th.ID, "thanks @alice")
	require.NoError(t, err)
	kinds := []string{}
	for _, n := range f.store.notificationsFor(1) {
		kinds = append(kinds, n.Kind)
	}
	require.Equal(t, []string{domain.NotifyReply, domain.NotifyReply}, kinds)
}

func TestLikeThreadIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	th := f.seedThread(t, 1, "chat")

	n, err := f.svc.LikeThread(ctx, 2, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = f.svc.LikeThread(ctx, 2, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "second like is a no-op")

	require.Len(t, f.store.notificationsFor(1), 1, "one like, one notification")
}

func TestLikeOwnThreadSilent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	th := f.seedThread(t, 1, "chat")

	n, err := f.svc.LikeThread(ctx, 1, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Empty(t, f.store.notificationsFor(1))
}

func TestBlockInvalidatesCachedSetAndFiltersFeeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	f.store.addUser(2, "bob")
	f.seedThread(t, 2, "chat")

	// Prime the cached (empty) block set.
	ids, err := f.svc.BlockedIDs(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, ids)

	_, err = f.svc.BlockUser(ctx, 1, 2)
	require.NoError(t, err)

	ids, err = f.svc.BlockedIDs(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{2}, ids, "block visible immediately, not after TTL")

	page, err := f.svc.ListThreads(ctx, 1, domain.ThreadFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Empty(t, page.Items, "blocked author's threads hidden")

	// And the other direction: bob's view of alice is also refreshed.
	ids, err = f.svc.BlockedIDs(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{1}, ids)
}

func TestBlockSelfRejected(t *testing.T) {
	f := newFixture(t)
	f.store.addUser(1, "alice")
	_, err := f.svc.BlockUser(context.Background(), 1, 1)
	require.ErrorIs(t, err, domain.ErrBadParams)
}

func TestBlockUnknownTargetRejected(t *testing.T) {
	f := newFixture(t)
	f.store.addUser(1, "alice")
	_, err := f.svc.BlockUser(context.Background(), 1, 99)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnreadCountCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	th := f.seedThread(t, 1, "chat")

	// Prime the cached zero.
	n, err := f.svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	// A delivered notification drops the cached count.
	_, err = f.svc.PostReply(ctx, 2, th.ID, "wake up")
	require.NoError(t, err)
	n, err = f.svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	marked, err := f.svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)
	n, err = f.svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "mark-read drops the cached count")
}

func TestPostSubReplyReparentsOntoFloor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")
	f.store.addUser(2, "bob")
	f.store.addUser(3, "carol")
	th := f.seedThread(t, 1, "chat")

	floor, err := f.svc.PostReply(ctx, 2, th.ID, "a floor")
	require.NoError(t, err)

	sub, err := f.svc.PostSubReply(ctx, 3, floor.ID, "under the floor")
	require.NoError(t, err)
	require.Nil(t, sub.FloorNum)
	require.NotNil(t, sub.ParentID)
	require.Equal(t, floor.ID, *sub.ParentID)
	require.Nil(t, sub.ReplyToID, "direct child of the floor carries no reply_to")

	// Replying to a sub-reply lands under the same floor with reply_to set.
	subsub, err := f.svc.PostSubReply(ctx, 1, sub.ID, "and deeper")
	require.NoError(t, err)
	require.Equal(t, floor.ID, *subsub.ParentID)
	require.NotNil(t, subsub.ReplyToID)
	require.Equal(t, sub.ID, *subsub.ReplyToID)

	// reply_count covers sub-replies too, via the counter path.
	n, err := f.counters.Read(ctx, domain.CounterThreadReplies, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// The sub-reply's author hears about the deeper reply.
	ns := f.store.notificationsFor(3)
	require.Len(t, ns, 1)
	require.Equal(t, domain.NotifySubReply, ns[0].Kind)
}

func TestDeleteFloorDropsSubtreeFromCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	th := f.seedThread(t, 1, "chat")

	floor, err := f.svc.PostReply(ctx, 2, th.ID, "a floor")
	require.NoError(t, err)
	_, err = f.svc.PostSubReply(ctx, 2, floor.ID, "mine too")
	require.NoError(t, err)

	_, err = f.counters.Increment(ctx, domain.CounterThreadReplies, th.ID, 1) // the floor itself
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteReply(ctx, floor.ID, 2))
	n, err := f.counters.Read(ctx, domain.CounterThreadReplies, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "floor plus sub-reply both leave the count")
}

func TestViewThreadFoldsPendingWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	th := f.seedThread(t, 1, "chat")

	for want := int64(1); want <= 3; want++ {
		got, err := f.svc.ViewThread(ctx, th.ID)
		require.NoError(t, err)
		require.Equal(t, want, got.ViewCount, "unflushed views are visible to readers")
	}
}

func TestCreateThreadBroadcastSkipsAuthorAndBlocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, 2, 3)
	f.store.addUser(1, "alice")
	f.store.addUser(2, "bob")
	f.store.addUser(3, "carol")
	_, err := f.store.CreateBlock(ctx, 3, 1) // carol blocked alice
	require.NoError(t, err)

	th := f.seedThread(t, 1, "deals")

	require.Empty(t, f.pub.eventsFor(1), "author not self-notified")
	require.Empty(t, f.pub.eventsFor(3), "blocked either way filtered out")

	evs := f.pub.eventsFor(2)
	require.Len(t, evs, 1)
	require.Equal(t, domain.NotifyThread, evs[0].Kind)
	require.Equal(t, th.ID, evs[0].Payload["thread_id"])
}

func TestTrendingCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedThread(t, 1, "tech")
	base := f.store.listCalls

	_, err := f.svc.Trending(ctx, "tech")
	require.NoError(t, err)
	_, err = f.svc.Trending(ctx, "tech")
	require.NoError(t, err)
	require.Equal(t, base+1, f.store.listCalls, "second read served from cache")

	f.seedThread(t, 2, "tech") // invalidates trending for the category

	_, err = f.svc.Trending(ctx, "tech")
	require.NoError(t, err)
	require.Equal(t, base+2, f.store.listCalls, "write dropped the cached list")
}

func TestUserByIDCachedWithoutHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.addUser(1, "alice")

	u, err := f.svc.UserByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Empty(t, u.PassHash, "hash never leaves the coordinator")

	base := f.store.userByIDCalls
	_, err = f.svc.UserByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, base, f.store.userByIDCalls, "profile read served from cache")
}

func TestUserByIDNegativeCachesMisses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UserByID(ctx, 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
	base := f.store.userByIDCalls

	_, err = f.svc.UserByID(ctx, 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, base, f.store.userByIDCalls, "repeat miss answered by the sentinel")
}

func TestSettingsGroupCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SetSetting(ctx, "general", "motd", "hello"))
	require.NoError(t, f.store.SetSetting(ctx, "general", "max_floors", "500"))

	m, err := f.svc.Settings(ctx, "general", []string{"motd", "max_floors"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"motd": "hello", "max_floors": "500"}, m)

	require.NoError(t, f.svc.SetSetting(ctx, "general", "motd", "goodbye"))
	m, err = f.svc.Settings(ctx, "general", []string{"motd", "max_floors"})
	require.NoError(t, err)
	require.Equal(t, "goodbye", m["motd"], "group invalidated on write")
}

func TestSettingsCacheCompleteAcrossKeySets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SetSetting(ctx, "general", "motd", "hello"))
	require.NoError(t, f.store.SetSetting(ctx, "general", "max_floors", "500"))

	// A narrow first read must not pin a partial payload under the group key.
	m, err := f.svc.Settings(ctx, "general", []string{"motd"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"motd": "hello"}, m)

	m, err = f.svc.Settings(ctx, "general", []string{"motd", "max_floors"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"motd": "hello", "max_floors": "500"}, m,
		"wider read after a narrow one sees every key in the group")
	require.Equal(t, 1, f.store.settingsCalls, "both reads served by one group load")

	// No filter returns the whole group, still from cache.
	m, err = f.svc.Settings(ctx, "general", nil)
	require.NoError(t, err)
	require.Len(t, m, 2)
	require.Equal(t, 1, f.store.settingsCalls)

	// Unknown keys are simply absent, never an error.
	m, err = f.svc.Settings(ctx, "general", []string{"nope"})
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestResyncPassFlushesAndRefreshesOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.store.addUser(1, "alice")
	th := f.seedThread(t, 1, "chat")

	// Buffered views and a stale cached unread count.
	f.counters.RecordView(th.ID)
	f.counters.RecordView(th.ID)
	n, err := f.svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
	_, err = f.store.Create(ctx, domain.Notification{UserID: 1, Kind: domain.NotifyLike, ThreadID: th.ID, FromUserID: 2})
	require.NoError(t, err)

	r := NewResync(f.svc, fixedOnline{1}, time.Hour)
	r.pass(ctx)

	flushed, err := f.counters.Read(ctx, domain.CounterThreadViews, th.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), flushed)
	require.Equal(t, 1, f.counters.flushes)

	n, err = f.svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "online user's unread cache dropped by the pass")
}

type fixedOnline []domain.UserID

func (f fixedOnline) OnlineUsers() []domain.UserID { return f }
