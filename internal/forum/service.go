package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/advent259141/Astrbook/internal/domain"
)

// Counters is the slice of the counter engine the coordinator uses.
type Counters interface {
	Increment(ctx context.Context, scope domain.CounterScope, id int64, delta int64) (int64, error)
	Read(ctx context.Context, scope domain.CounterScope, id int64) (int64, error)
	RecordView(id domain.ThreadID)
	Flush(ctx context.Context)
}

// Publisher is the slice of the realtime hub the coordinator uses.
type Publisher interface {
	Publish(userID domain.UserID, ev domain.Event) int
	Broadcast(ev domain.Event, match func(domain.UserID) bool) int
	Online(userID domain.UserID) bool
}

type Config struct {
	UserTTL     int // seconds
	UnreadTTL   int
	BlocksTTL   int
	SettingsTTL int
	TrendingTTL int
	TrendingLen int
}

func (c *Config) applyDefaults() {
	if c.UserTTL <= 0 {
		c.UserTTL = 60
	}
	if c.UnreadTTL <= 0 {
		c.UnreadTTL = 60
	}
	if c.BlocksTTL <= 0 {
		c.BlocksTTL = 60
	}
	if c.SettingsTTL <= 0 {
		c.SettingsTTL = 300
	}
	if c.TrendingTTL <= 0 {
		c.TrendingTTL = 120
	}
	if c.TrendingLen <= 0 {
		c.TrendingLen = 10
	}
}

// Service is the consistency coordinator: every write that touches cached or
// aggregate state goes through here in a fixed order: persist, counters,
// invalidate, emit. The persist step decides success; everything after it is
// best-effort and only logged.
type Service struct {
	logger *log.Logger
	cfg    Config

	users         domain.UsersRepo
	threads       domain.ThreadsRepo
	replies       domain.RepliesRepo
	likes         domain.LikesRepo
	notifications domain.NotificationsRepo
	blocks        domain.BlocksRepo
	settings      domain.SettingsRepo

	counters Counters
	cache    domain.CacheLayer
	hub      Publisher
}

type Deps struct {
	Logger        *log.Logger
	Users         domain.UsersRepo
	Threads       domain.ThreadsRepo
	Replies       domain.RepliesRepo
	Likes         domain.LikesRepo
	Notifications domain.NotificationsRepo
	Blocks        domain.BlocksRepo
	Settings      domain.SettingsRepo
	Counters      Counters
	Cache         domain.CacheLayer
	Hub           Publisher
}

func New(cfg Config, d Deps) *Service {
	cfg.applyDefaults()
	return &Service{
		logger:        d.Logger,
		cfg:           cfg,
		users:         d.Users,
		threads:       d.Threads,
		replies:       d.Replies,
		likes:         d.Likes,
		notifications: d.Notifications,
		blocks:        d.Blocks,
		settings:      d.Settings,
		counters:      d.Counters,
		cache:         d.Cache,
		hub:           d.Hub,
	}
}

// floorRetries bounds restarts of the whole reply use case when the thread
// row lock times out under contention.
const floorRetries = 3

// ---- threads ----

func (s *Service) CreateThread(ctx context.Context, authorID domain.UserID, category, title, content string) (domain.Thread, error) {
	if !domain.ValidCategory(category) || !domain.ValidThreadTitle(title) || !domain.ValidContent(content) {
		return domain.Thread{}, domain.ErrBadParams
	}

	t, err := s.threads.CreateThread(ctx, domain.Thread{
		AuthorID: authorID,
		Category: category,
		Title:    strings.TrimSpace(title),
		Content:  content,
	})
	if err != nil {
		return domain.Thread{}, fmt.Errorf("create thread: %w", err)
	}

	s.cache.Invalidate(ctx, domain.CacheKeyTrending(category), domain.CacheKeyTrending(""))

	// Push to everyone online except the author and anyone blocked either way.
	hidden := s.blockSet(ctx, authorID)
	ev := domain.NewEvent(domain.NotifyThread, map[string]any{
		"thread_id": t.ID,
		"title":     t.Title,
		"category":  t.Category,
		"author_id": t.AuthorID,
	})
	s.hub.Broadcast(ev, func(u domain.UserID) bool {
		return u != authorID && !hidden[u]
	})
	return t, nil
}

// ViewThread loads the thread and records the view. The view lands in the
// buffered counter class, so the returned count folds in the pending window.
func (s *Service) ViewThread(ctx context.Context, id domain.ThreadID) (domain.Thread, error) {
	t, err := s.threads.ThreadByID(ctx, id)
	if err != nil {
		return domain.Thread{}, err
	}
	s.counters.RecordView(id)
	if n, err := s.counters.Read(ctx, domain.CounterThreadViews, id); err == nil {
		t.ViewCount = n
	}
	return t, nil
}

func (s *Service) ListThreads(ctx context.Context, viewerID domain.UserID, f domain.ThreadFilter) (domain.Page[domain.Thread], error) {
	if f.Category != "" && !domain.ValidCategory(f.Category) {
		return domain.Page[domain.Thread]{}, domain.ErrBadParams
	}
	if viewerID != 0 {
		ids, err := s.BlockedIDs(ctx, viewerID)
		if err == nil {
			f.ExcludeAuthors = ids
		}
	}
	items, total, err := s.threads.ThreadsList(ctx, f)
	if err != nil {
		return domain.Page[domain.Thread]{}, err
	}
	return domain.NewPage(items, total, f.Page, f.PageSize), nil
}

// Trending serves the hot list for a category through the exclusive loader:
// concurrent cold reads compute it once.
func (s *Service) Trending(ctx context.Context, category string) ([]domain.Thread, error) {
	if category != "" && !domain.ValidCategory(category) {
		return nil, domain.ErrBadParams
	}
	b, err := s.cache.GetOrLoadExclusive(ctx, domain.CacheKeyTrending(category), s.cfg.TrendingTTL, func(ctx context.Context) ([]byte, error) {
		items, _, err := s.threads.ThreadsList(ctx, domain.ThreadFilter{
			Category: category,
			Sort:     domain.SortMostReplies,
			Page:     1,
			PageSize: s.cfg.TrendingLen,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	})
	if err != nil {
		return nil, err
	}
	var out []domain.Thread
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode trending: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteThread(ctx context.Context, id domain.ThreadID, owner domain.UserID) error {
	t, err := s.threads.ThreadByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.threads.DeleteThread(ctx, id, owner); err != nil {
		return err
	}
	s.cache.Invalidate(ctx,
		domain.CacheKeyViews(id),
		domain.CacheKeyThreadLikes(id),
		domain.CacheKeyTrending(t.Category),
		domain.CacheKeyTrending(""),
	)
	return nil
}

// ---- replies ----

func (s *Service) PostReply(ctx context.Context, authorID domain.UserID, threadID domain.ThreadID, content string) (domain.Reply, error) {
	if !domain.ValidContent(content) {
		return domain.Reply{}, domain.ErrBadParams
	}
	t, err := s.threads.ThreadByID(ctx, threadID)
	if err != nil {
		return domain.Reply{}, err
	}

	var rep domain.Reply
	for attempt := 1; ; attempt++ {
		rep, err = s.replies.CreateFloor(ctx, domain.Reply{
			ThreadID: threadID,
			AuthorID: authorID,
			Content:  content,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= floorRetries {
			return domain.Reply{}, fmt.Errorf("post reply: %w", err)
		}
		s.logger.Printf("floor allocation contended thread=%d attempt=%d, retrying", threadID, attempt)
	}

	s.cache.Invalidate(ctx, domain.CacheKeyTrending(t.Category), domain.CacheKeyTrending(""))

	if t.AuthorID != authorID {
		s.notifyOne(ctx, domain.Notification{
			UserID:         t.AuthorID,
			Kind:           domain.NotifyReply,
			ThreadID:       threadID,
			ReplyID:        &rep.ID,
			FromUserID:     authorID,
			ContentPreview: domain.Preview(content, 100),
		})
	}
	s.notifyMentions(ctx, authorID, threadID, rep.ID, content, []domain.UserID{t.AuthorID, authorID})
	return rep, nil
}

// PostSubReply attaches a reply under a floor. Replying to a sub-reply
// reparents onto its floor and keeps the original target as reply_to.
func (s *Service) PostSubReply(ctx context.Context, authorID domain.UserID, parentID domain.ReplyID, content string) (domain.Reply, error) {
	if !domain.ValidContent(content) {
		return domain.Reply{}, domain.ErrBadParams
	}
	parent, err := s.replies.ReplyByID(ctx, parentID)
	if err != nil {
		return domain.Reply{}, err
	}

	target := parent
	if parent.FloorNum == nil {
		// parent is itself a sub-reply
		if parent.ParentID == nil {
			return domain.Reply{}, domain.ErrUnexpected
		}
		floor, err := s.replies.ReplyByID(ctx, *parent.ParentID)
		if err != nil {
			return domain.Reply{}, err
		}
		parent = floor
	}

	in := domain.Reply{
		ThreadID: parent.ThreadID,
		AuthorID: authorID,
		Content:  content,
		ParentID: &parent.ID,
	}
	if target.ID != parent.ID {
		in.ReplyToID = &target.ID
	}
	rep, err := s.replies.CreateSubReply(ctx, in)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("post sub-reply: %w", err)
	}

	if _, err := s.counters.Increment(ctx, domain.CounterThreadReplies, parent.ThreadID, 1); err != nil {
		s.logger.Printf("reply_count bump thread=%d failed: %v", parent.ThreadID, err)
	}
	if err := s.threads.TouchLastReply(ctx, parent.ThreadID, rep.CreatedAt); err != nil {
		s.logger.Printf("touch last_reply thread=%d failed: %v", parent.ThreadID, err)
	}

	if target.AuthorID != authorID {
		s.notifyOne(ctx, domain.Notification{
			UserID:         target.AuthorID,
			Kind:           domain.NotifySubReply,
			ThreadID:       parent.ThreadID,
			ReplyID:        &rep.ID,
			FromUserID:     authorID,
			ContentPreview: domain.Preview(content, 100),
		})
	}
	s.notifyMentions(ctx, authorID, parent.ThreadID, rep.ID, content, []domain.UserID{target.AuthorID, authorID})
	return rep, nil
}

func (s *Service) Floors(ctx context.Context, viewerID domain.UserID, threadID domain.ThreadID, page, pageSize int) (domain.Page[domain.Reply], error) {
	var exclude []domain.UserID
	if viewerID != 0 {
		if ids, err := s.BlockedIDs(ctx, viewerID); err == nil {
			exclude = ids
		}
	}
	items, total, err := s.replies.Floors(ctx, threadID, page, pageSize, exclude)
	if err != nil {
		return domain.Page[domain.Reply]{}, err
	}
	return domain.NewPage(items, total, page, pageSize), nil
}

func (s *Service) SubReplies(ctx context.Context, viewerID domain.UserID, parentID domain.ReplyID, page, pageSize int) (domain.Page[domain.Reply], error) {
	var exclude []domain.UserID
	if viewerID != 0 {
		if ids, err := s.BlockedIDs(ctx, viewerID); err == nil {
			exclude = ids
		}
	}
	items, total, err := s.replies.SubReplies(ctx, parentID, page, pageSize, exclude)
	if err != nil {
		return domain.Page[domain.Reply]{}, err
	}
	return domain.NewPage(items, total, page, pageSize), nil
}

func (s *Service) DeleteReply(ctx context.Context, id domain.ReplyID, owner domain.UserID) error {
	removed, threadID, err := s.replies.DeleteReply(ctx, id, owner)
	if err != nil {
		return err
	}
	if removed > 0 {
		if _, err := s.counters.Increment(ctx, domain.CounterThreadReplies, threadID, int64(-removed)); err != nil {
			s.logger.Printf("reply_count drop thread=%d delta=%d failed: %v", threadID, -removed, err)
		}
	}
	s.cache.Invalidate(ctx, domain.CacheKeyReplyLikes(id))
	return nil
}

// ---- likes ----

func (s *Service) LikeThread(ctx context.Context, userID domain.UserID, threadID domain.ThreadID) (int64, error) {
	t, err := s.threads.ThreadByID(ctx, threadID)
	if err != nil {
		return 0, err
	}
	inserted, err := s.likes.CreateLike(ctx, userID, domain.LikeTargetThread, threadID)
	if err != nil {
		return 0, fmt.Errorf("like thread: %w", err)
	}
	if !inserted {
		// Already liked; idempotent.
		return s.counters.Read(ctx, domain.CounterThreadLikes, threadID)
	}

	n, err := s.counters.Increment(ctx, domain.CounterThreadLikes, threadID, 1)
	if err != nil {
		s.logger.Printf("like_count bump thread=%d failed: %v", threadID, err)
		n = t.LikeCount + 1
	}
	s.cache.Invalidate(ctx, domain.CacheKeyTrending(t.Category), domain.CacheKeyTrending(""))

	if t.AuthorID != userID {
		s.notifyOne(ctx, domain.Notification{
			UserID:         t.AuthorID,
			Kind:           domain.NotifyLike,
			ThreadID:       threadID,
			FromUserID:     userID,
			ContentPreview: domain.Preview(t.Title, 100),
		})
	}
	return n, nil
}

func (s *Service) LikeReply(ctx context.Context, userID domain.UserID, replyID domain.ReplyID) (int64, error) {
	rep, err := s.replies.ReplyByID(ctx, replyID)
	if err != nil {
		return 0, err
	}
	inserted, err := s.likes.CreateLike(ctx, userID, domain.LikeTargetReply, replyID)
	if err != nil {
		return 0, fmt.Errorf("like reply: %w", err)
	}
	if !inserted {
		return s.counters.Read(ctx, domain.CounterReplyLikes, replyID)
	}

	n, err := s.counters.Increment(ctx, domain.CounterReplyLikes, replyID, 1)
	if err != nil {
		s.logger.Printf("like_count bump reply=%d failed: %v", replyID, err)
		n = rep.LikeCount + 1
	}

	if rep.AuthorID != userID {
		s.notifyOne(ctx, domain.Notification{
			UserID:         rep.AuthorID,
			Kind:           domain.NotifyLike,
			ThreadID:       rep.ThreadID,
			ReplyID:        &rep.ID,
			FromUserID:     userID,
			ContentPreview: domain.Preview(rep.Content, 100),
		})
	}
	return n, nil
}

// LikedIDs reports which of the given targets the user already liked.
func (s *Service) LikedIDs(ctx context.Context, userID domain.UserID, targetType string, ids []int64) (map[int64]bool, error) {
	if targetType != domain.LikeTargetThread && targetType != domain.LikeTargetReply {
		return nil, domain.ErrBadParams
	}
	return s.likes.LikedIDs(ctx, userID, targetType, ids)
}

// ---- blocks ----

func (s *Service) BlockUser(ctx context.Context, userID, target domain.UserID) (domain.Block, error) {
	if userID == target {
		return domain.Block{}, domain.ErrBadParams
	}
	if _, err := s.users.UserByID(ctx, target); err != nil {
		return domain.Block{}, err
	}
	b, err := s.blocks.CreateBlock(ctx, userID, target)
	if err != nil {
		return domain.Block{}, err
	}
	// The block set is bidirectional: both sides' cached sets are stale now.
	s.cache.Invalidate(ctx, domain.CacheKeyBlocks(userID), domain.CacheKeyBlocks(target))
	return b, nil
}

func (s *Service) UnblockUser(ctx context.Context, userID, target domain.UserID) error {
	if err := s.blocks.DeleteBlock(ctx, userID, target); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.CacheKeyBlocks(userID), domain.CacheKeyBlocks(target))
	return nil
}

func (s *Service) ListBlocks(ctx context.Context, userID domain.UserID, page, pageSize int) (domain.Page[domain.Block], error) {
	items, total, err := s.blocks.ListBlocks(ctx, userID, page, pageSize)
	if err != nil {
		return domain.Page[domain.Block]{}, err
	}
	return domain.NewPage(items, total, page, pageSize), nil
}

// BlockedIDs returns the cached bidirectional block set for the user.
func (s *Service) BlockedIDs(ctx context.Context, userID domain.UserID) ([]domain.UserID, error) {
	b, err := s.cache.GetOrLoad(ctx, domain.CacheKeyBlocks(userID), s.cfg.BlocksTTL, func(ctx context.Context) ([]byte, error) {
		ids, err := s.blocks.BlockedEitherWay(ctx, userID)
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []domain.UserID{}
		}
		return json.Marshal(ids)
	})
	if err != nil {
		return nil, err
	}
	var ids []domain.UserID
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("decode block set: %w", err)
	}
	return ids, nil
}

func (s *Service) blockSet(ctx context.Context, userID domain.UserID) map[domain.UserID]bool {
	ids, err := s.BlockedIDs(ctx, userID)
	if err != nil {
		s.logger.Printf("block set user=%d unavailable: %v", userID, err)
		return nil
	}
	set := make(map[domain.UserID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ---- notifications ----

func (s *Service) Notifications(ctx context.Context, userID domain.UserID, unreadOnly bool, page, pageSize int) (domain.Page[domain.Notification], error) {
	items, total, err := s.notifications.ListByUser(ctx, userID, unreadOnly, page, pageSize)
	if err != nil {
		return domain.Page[domain.Notification]{}, err
	}
	return domain.NewPage(items, total, page, pageSize), nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID domain.UserID) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(ctx, domain.CacheKeyUnread(userID))
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID domain.UserID) (int64, error) {
	b, err := s.cache.GetOrLoad(ctx, domain.CacheKeyUnread(userID), s.cfg.UnreadTTL, func(ctx context.Context) ([]byte, error) {
		n, err := s.notifications.UnreadCount(ctx, userID)
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(n, 10)), nil
	})
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode unread count: %w", err)
	}
	return n, nil
}

// ---- users ----

// UserByID serves profiles read-through; misses on deleted users are
// negative-cached.
func (s *Service) UserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	b, err := s.cache.GetOrLoad(ctx, domain.CacheKeyUser(id), s.cfg.UserTTL, func(ctx context.Context) ([]byte, error) {
		u, err := s.users.UserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		u.PassHash = ""
		return json.Marshal(u)
	})
	if err != nil {
		return domain.User{}, err
	}
	var u domain.User
	if err := json.Unmarshal(b, &u); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

func (s *Service) SetAvatar(ctx context.Context, id domain.UserID, url string) error {
	if err := s.users.UpdateAvatar(ctx, id, url); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.CacheKeyUser(id))
	return nil
}

// ---- settings ----

// Settings returns key/value pairs from the group, optionally filtered to
// keys. The cached payload is always the complete group, loaded with one
// query, so entries stay valid no matter which subset each caller asks for.
// Concurrent cold reads collapse into one loader run.
func (s *Service) Settings(ctx context.Context, group string, keys []string) (map[string]string, error) {
	if group == "" {
		return nil, domain.ErrBadParams
	}
	b, err := s.cache.GetOrLoadExclusive(ctx, domain.CacheKeySettingsGroup(group), s.cfg.SettingsTTL, func(ctx context.Context) ([]byte, error) {
		m, err := s.settings.GetSettingsGroup(ctx, group)
		if err != nil {
			return nil, err
		}
		return json.Marshal(m)
	})
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode settings group %s: %w", group, err)
	}
	if len(keys) == 0 {
		return m, nil
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Service) SetSetting(ctx context.Context, group, key, value string) error {
	if group == "" || key == "" {
		return domain.ErrBadParams
	}
	if err := s.settings.SetSetting(ctx, group, key, value); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.CacheKeySettingsGroup(group))
	return nil
}
