package forum

import (
	"context"

	"github.com/advent259141/Astrbook/internal/domain"
)

// notifyOne persists one notification, invalidates the target's unread
// count and pushes the realtime frame. Best-effort: failures are logged and
// never surface to the caller.
func (s *Service) notifyOne(ctx context.Context, n domain.Notification) {
	blocked, err := s.blocks.IsBlocked(ctx, n.UserID, n.FromUserID)
	if err != nil {
		s.logger.Printf("block check %d->%d failed, suppressing notification: %v", n.UserID, n.FromUserID, err)
		return
	}
	if blocked {
		return
	}
	s.deliver(ctx, n)
}

// notifyMentions resolves @usernames in content and notifies each mentioned
// user once. Users in skip (already notified or the author) and users who
// blocked the author are filtered out; the block filter is one WHERE IN
// query over the candidate set, not a query per mention.
func (s *Service) notifyMentions(ctx context.Context, author domain.UserID, threadID domain.ThreadID, replyID domain.ReplyID, content string, skip []domain.UserID) {
	names := domain.ParseMentions(content)
	if len(names) == 0 {
		return
	}
	users, err := s.users.UsersByUsernames(ctx, names)
	if err != nil {
		s.logger.Printf("mention lookup failed: %v", err)
		return
	}

	skipSet := make(map[domain.UserID]bool, len(skip))
	for _, id := range skip {
		skipSet[id] = true
	}
	var targets []domain.UserID
	for _, u := range users {
		if !skipSet[u.ID] {
			targets = append(targets, u.ID)
		}
	}
	if len(targets) == 0 {
		return
	}

	blockedBy, err := s.blocks.UsersWhoBlocked(ctx, author, targets)
	if err != nil {
		s.logger.Printf("mention block filter failed, suppressing mentions: %v", err)
		return
	}

	preview := domain.Preview(content, 100)
	for _, id := range targets {
		if blockedBy[id] {
			continue
		}
		rid := replyID
		s.deliver(ctx, domain.Notification{
			UserID:         id,
			Kind:           domain.NotifyMention,
			ThreadID:       threadID,
			ReplyID:        &rid,
			FromUserID:     author,
			ContentPreview: preview,
		})
	}
}

func (s *Service) deliver(ctx context.Context, n domain.Notification) {
	created, err := s.notifications.Create(ctx, n)
	if err != nil {
		s.logger.Printf("notification %s user=%d failed: %v", n.Kind, n.UserID, err)
		return
	}
	s.cache.Invalidate(ctx, domain.CacheKeyUnread(n.UserID))

	payload := map[string]any{
		"id":           created.ID,
		"thread_id":    created.ThreadID,
		"from_user_id": created.FromUserID,
		"preview":      created.ContentPreview,
	}
	if created.ReplyID != nil {
		payload["reply_id"] = *created.ReplyID
	}
	s.hub.Publish(n.UserID, domain.NewEvent(created.Kind, payload))
}
