package domain

import (
	"context"
	"time"
)

// Thread list sorting.
type ThreadSort string

const (
	SortLatestReply ThreadSort = "latest_reply"
	SortNewest      ThreadSort = "newest"
	SortMostReplies ThreadSort = "most_replies"
)

type ThreadFilter struct {
	Category string
	Sort     ThreadSort
	Page     int
	PageSize int
	// ExcludeAuthors hides threads from these authors (block filtering,
	// both directions).
	ExcludeAuthors []UserID
}

type UsersRepo interface {
	Close()
	Ping(context.Context) error
	CreateUser(ctx context.Context, username, nickname, passHash string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id UserID) (User, error)
	// UsersByUsernames resolves mention targets with one query; unknown
	// usernames are silently absent from the result.
	UsersByUsernames(ctx context.Context, usernames []string) ([]User, error)
	UpdateAvatar(ctx context.Context, id UserID, url string) error
}

type ThreadsRepo interface {
	CreateThread(ctx context.Context, t Thread) (Thread, error)
	ThreadByID(ctx context.Context, id ThreadID) (Thread, error)
	ThreadsList(ctx context.Context, f ThreadFilter) ([]Thread, int64, error)
	// DeleteThread removes the thread and all its replies; only the author may
	// call it, enforced here via the owner id.
	DeleteThread(ctx context.Context, id ThreadID, owner UserID) error
	TouchLastReply(ctx context.Context, id ThreadID, at time.Time) error
}

type RepliesRepo interface {
	// CreateFloor allocates the next floor ordinal for the thread and persists
	// the reply in one transaction. The thread row is locked (bounded wait)
	// from the ordinal read through commit; contention surfaces as ErrConflict.
	CreateFloor(ctx context.Context, r Reply) (Reply, error)
	CreateSubReply(ctx context.Context, r Reply) (Reply, error)
	ReplyByID(ctx context.Context, id ReplyID) (Reply, error)
	// Floors returns numbered floors of a thread, oldest first, excluding the
	// given author ids (block filtering).
	Floors(ctx context.Context, threadID ThreadID, page, pageSize int, excludeAuthors []UserID) ([]Reply, int64, error)
	SubReplies(ctx context.Context, parentID ReplyID, page, pageSize int, excludeAuthors []UserID) ([]Reply, int64, error)
	// DeleteReply removes the reply (a floor takes its sub-replies with it)
	// and returns how many reply rows went away, for the reply_count delta.
	DeleteReply(ctx context.Context, id ReplyID, owner UserID) (removed int, threadID ThreadID, err error)
}

type LikesRepo interface {
	// CreateLike inserts the like row; returns false when the user already
	// liked the target (idempotent, ON CONFLICT DO NOTHING).
	CreateLike(ctx context.Context, userID UserID, targetType string, targetID int64) (bool, error)
	LikedIDs(ctx context.Context, userID UserID, targetType string, ids []int64) (map[int64]bool, error)
}

type NotificationsRepo interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	ListByUser(ctx context.Context, userID UserID, unreadOnly bool, page, pageSize int) ([]Notification, int64, error)
	MarkAllRead(ctx context.Context, userID UserID) (int64, error)
	UnreadCount(ctx context.Context, userID UserID) (int64, error)
}

type BlocksRepo interface {
	CreateBlock(ctx context.Context, userID, target UserID) (Block, error)
	DeleteBlock(ctx context.Context, userID, target UserID) error
	ListBlocks(ctx context.Context, userID UserID, page, pageSize int) ([]Block, int64, error)
	// BlockedEitherWay returns ids blocked by the user plus ids that blocked
	// the user; feed filtering is bidirectional.
	BlockedEitherWay(ctx context.Context, userID UserID) ([]UserID, error)
	// UsersWhoBlocked narrows candidate notification targets to those that
	// blocked the author (single WHERE IN query, not N+1).
	UsersWhoBlocked(ctx context.Context, author UserID, targets []UserID) (map[UserID]bool, error)
	IsBlocked(ctx context.Context, userID, target UserID) (bool, error)
}

type SettingsRepo interface {
	GetSetting(ctx context.Context, key string) (string, error)
	// GetSettingsGroup returns every key/value pair stored in the group.
	// The group owns its key set; callers subset the result, never the query,
	// so one cache entry per group is always complete.
	GetSettingsGroup(ctx context.Context, group string) (map[string]string, error)
	SetSetting(ctx context.Context, group, key, value string) error
}

// Counter scopes understood by the authoritative store.
type CounterScope string

const (
	CounterThreadViews   CounterScope = "thread_views"
	CounterThreadLikes   CounterScope = "thread_likes"
	CounterThreadReplies CounterScope = "thread_replies"
	CounterReplyLikes    CounterScope = "reply_likes"
)

// CounterStore applies a delta as a single atomic update expression
// (value = GREATEST(0, value + delta)) and returns the new value.
type CounterStore interface {
	Add(ctx context.Context, scope CounterScope, id int64, delta int64) (int64, error)
	Value(ctx context.Context, scope CounterScope, id int64) (int64, error)
}
