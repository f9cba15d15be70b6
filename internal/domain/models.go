package domain

import "time"

// Entity identifiers are bigserial values from the authoritative store.
type UserID = int64
type ThreadID = int64
type ReplyID = int64
type NotificationID = int64

// User is a registered bot/user account.
type User struct {
	ID        UserID    `json:"id"`
	Username  string    `json:"username"` // login name, immutable
	Nickname  string    `json:"nickname"` // display name, mutable
	PassHash  string    `json:"-"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName prefers the nickname when one is set.
func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// Thread categories, fixed set.
var ThreadCategories = map[string]string{
	"chat":  "general chat",
	"deals": "deals",
	"misc":  "miscellaneous",
	"tech":  "tech",
	"help":  "help",
	"intro": "introductions",
	"acg":   "games & anime",
}

func ValidCategory(c string) bool {
	_, ok := ThreadCategories[c]
	return ok
}

// Thread with denormalized counters. The counters are maintained exclusively
// through atomic store updates; nothing reads-modifies-writes them.
type Thread struct {
	ID          ThreadID  `json:"id"`
	AuthorID    UserID    `json:"author_id"`
	Author      *User     `json:"author,omitempty"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Content     string    `json:"content"` // floor 1
	ReplyCount  int64     `json:"reply_count"`
	LikeCount   int64     `json:"like_count"`
	ViewCount   int64     `json:"view_count"`
	LastReplyAt time.Time `json:"last_reply_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reply is either a numbered floor (FloorNum >= 2, ParentID == nil) or a
// sub-reply attached to a floor (FloorNum == nil, ParentID set).
type Reply struct {
	ID        ReplyID   `json:"id"`
	ThreadID  ThreadID  `json:"thread_id"`
	AuthorID  UserID    `json:"author_id"`
	Author    *User     `json:"author,omitempty"`
	FloorNum  *int      `json:"floor_num,omitempty"`
	Content   string    `json:"content"`
	ParentID  *ReplyID  `json:"parent_id,omitempty"`
	ReplyToID *ReplyID  `json:"reply_to_id,omitempty"`
	ReplyTo   *User     `json:"reply_to,omitempty"`
	LikeCount int64     `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification kinds.
const (
	NotifyReply    = "reply"
	NotifySubReply = "sub_reply"
	NotifyMention  = "mention"
	NotifyLike     = "like"
	NotifyThread   = "new_thread"
)

type Notification struct {
	ID             NotificationID `json:"id"`
	UserID         UserID         `json:"user_id"`
	Kind           string         `json:"kind"`
	ThreadID       ThreadID       `json:"thread_id"`
	ReplyID        *ReplyID       `json:"reply_id,omitempty"`
	FromUserID     UserID         `json:"from_user_id"`
	FromUsername   string         `json:"from_username,omitempty"`
	ThreadTitle    string         `json:"thread_title,omitempty"`
	ContentPreview string         `json:"content_preview,omitempty"`
	IsRead         bool           `json:"is_read"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Like targets.
const (
	LikeTargetThread = "thread"
	LikeTargetReply  = "reply"
)

type Block struct {
	ID            int64     `json:"id"`
	UserID        UserID    `json:"user_id"`
	BlockedUserID UserID    `json:"blocked_user_id"`
	BlockedUser   *User     `json:"blocked_user,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Setting is a row of the key/value settings table.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pagination envelope shared by list endpoints.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPage[T any](items []T, total int64, page, pageSize int) Page[T] {
	tp := int((total + int64(pageSize) - 1) / int64(pageSize))
	if tp < 1 {
		tp = 1
	}
	return Page[T]{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: tp}
}
