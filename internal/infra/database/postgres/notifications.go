package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/advent259141/Astrbook/internal/domain"
)

func (r *PGRepo) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	q := r.qb().Insert(r.tbl("notifications")).
		Columns("user_id", "kind", "thread_id", "reply_id", "from_user_id", "content_preview").
		Values(n.UserID, n.Kind, n.ThreadID, n.ReplyID, n.FromUserID, n.ContentPreview).
		Suffix("RETURNING id, is_read, created_at")

	sqlStr, args, _ := q.ToSql()
	r.logSQL("CreateNotification", sqlStr, args)

	out := n
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&out.ID, &out.IsRead, &out.CreatedAt); err != nil {
		return domain.Notification{}, mapErr(err)
	}
	return out, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID domain.UserID, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	where := sq.And{sq.Eq{"n.user_id": userID}}
	if unreadOnly {
		where = append(where, sq.Eq{"n.is_read": false})
	}

	cq := r.qb().Select("COUNT(*)").From(r.tbl("notifications") + " n").Where(where)
	sqlStr, args, _ := cq.ToSql()
	r.logSQL("ListNotifications.count", sqlStr, args)
	var total int64
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	q := r.qb().Select(
		"n.id", "n.user_id", "n.kind", "n.thread_id", "n.reply_id", "n.from_user_id",
		"COALESCE(n.content_preview,'')", "n.is_read", "n.created_at",
		"COALESCE(NULLIF(u.nickname,''), u.username)", "t.title",
	).
		From(r.tbl("notifications") + " n").
		Join(r.tbl("users") + " u ON u.id = n.from_user_id").
		Join(r.tbl("threads") + " t ON t.id = n.thread_id").
		Where(where).
		OrderBy("n.created_at DESC").
		Offset(uint64((page - 1) * pageSize)).
		Limit(uint64(pageSize))

	sqlStr, args, _ = q.ToSql()
	r.logSQL("ListNotifications", sqlStr, args)
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.ThreadID, &n.ReplyID, &n.FromUserID,
			&n.ContentPreview, &n.IsRead, &n.CreatedAt, &n.FromUsername, &n.ThreadTitle); err != nil {
			return nil, 0, mapErr(err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *PGRepo) MarkAllRead(ctx context.Context, userID domain.UserID) (int64, error) {
	q := r.qb().Update(r.tbl("notifications")).
		Set("is_read", true).
		Where(sq.Eq{"user_id": userID, "is_read": false})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("MarkAllRead", sqlStr, args)

	ct, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}

func (r *PGRepo) UnreadCount(ctx context.Context, userID domain.UserID) (int64, error) {
	q := r.qb().Select("COUNT(*)").From(r.tbl("notifications")).
		Where(sq.Eq{"user_id": userID, "is_read": false})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("UnreadCount", sqlStr, args)

	var n int64
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
