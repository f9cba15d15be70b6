package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/advent259141/Astrbook/internal/domain"
)

const threadCols = "t.id, t.author_id, t.category, t.title, t.content, t.reply_count, t.like_count, t.view_count, t.last_reply_at, t.created_at"

func scanThread(row interface{ Scan(...any) error }) (domain.Thread, error) {
	var t domain.Thread
	var u domain.User
	err := row.Scan(
		&t.ID, &t.AuthorID, &t.Category, &t.Title, &t.Content,
		&t.ReplyCount, &t.LikeCount, &t.ViewCount, &t.LastReplyAt, &t.CreatedAt,
		&u.ID, &u.Username, &u.Nickname, &u.Avatar,
	)
	if err != nil {
		return domain.Thread{}, err
	}
	t.Author = &u
	return t, nil
}

func (r *PGRepo) threadSelect() sq.SelectBuilder {
	return r.qb().
		Select(threadCols, "u.id", "u.username", "COALESCE(u.nickname,'')", "COALESCE(u.avatar,'')").
		From(r.tbl("threads") + " t").
		Join(r.tbl("users") + " u ON u.id = t.author_id")
}

func (r *PGRepo) CreateThread(ctx context.Context, t domain.Thread) (domain.Thread, error) {
	q := r.qb().Insert(r.tbl("threads")).
		Columns("author_id", "category", "title", "content").
		Values(t.AuthorID, t.Category, t.Title, t.Content).
		Suffix("RETURNING id, author_id, category, title, content, reply_count, like_count, view_count, last_reply_at, created_at")

	sqlStr, args, _ := q.ToSql()
	r.logSQL("CreateThread", sqlStr, args)

	start := time.Now()
	row := r.pool.QueryRow(ctx, sqlStr, args...)
	var out domain.Thread
	if err := row.Scan(&out.ID, &out.AuthorID, &out.Category, &out.Title, &out.Content,
		&out.ReplyCount, &out.LikeCount, &out.ViewCount, &out.LastReplyAt, &out.CreatedAt); err != nil {
		r.logger.Printf("CreateThread scan error after %s: %v", time.Since(start), err)
		return domain.Thread{}, mapErr(err)
	}
	r.logger.Printf("CreateThread ok in %s id=%d", time.Since(start), out.ID)
	return out, nil
}

func (r *PGRepo) ThreadByID(ctx context.Context, id domain.ThreadID) (domain.Thread, error) {
	q := r.threadSelect().Where(sq.Eq{"t.id": id})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("ThreadByID", sqlStr, args)

	t, err := scanThread(r.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return domain.Thread{}, mapErr(err)
	}
	return t, nil
}

func (r *PGRepo) ThreadsList(ctx context.Context, f domain.ThreadFilter) ([]domain.Thread, int64, error) {
	cq := r.qb().Select("COUNT(*)").From(r.tbl("threads") + " t")
	q := r.threadSelect()
	if f.Category != "" {
		cq = cq.Where(sq.Eq{"t.category": f.Category})
		q = q.Where(sq.Eq{"t.category": f.Category})
	}
	if len(f.ExcludeAuthors) > 0 {
		ex := sq.NotEq{"t.author_id": f.ExcludeAuthors}
		cq = cq.Where(ex)
		q = q.Where(ex)
	}

	switch f.Sort {
	case domain.SortNewest:
		q = q.OrderBy("t.created_at DESC")
	case domain.SortMostReplies:
		q = q.OrderBy("t.reply_count DESC", "t.last_reply_at DESC")
	default: // latest_reply
		q = q.OrderBy("t.last_reply_at DESC")
	}
	q = q.Offset(uint64((f.Page - 1) * f.PageSize)).Limit(uint64(f.PageSize))

	sqlStr, args, _ := cq.ToSql()
	r.logSQL("ThreadsList.count", sqlStr, args)
	var total int64
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	sqlStr, args, _ = q.ToSql()
	r.logSQL("ThreadsList", sqlStr, args)
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, mapErr(err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *PGRepo) DeleteThread(ctx context.Context, id domain.ThreadID, owner domain.UserID) error {
	// Ownership check and delete in one statement; replies and notifications
	// go away via ON DELETE CASCADE.
	q := r.qb().Delete(r.tbl("threads")).
		Where(sq.Eq{"id": id, "author_id": owner})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("DeleteThread", sqlStr, args)

	ct, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		// Either the thread is gone or the caller doesn't own it.
		if _, err := r.ThreadByID(ctx, id); err != nil {
			return domain.ErrNotFound
		}
		return domain.ErrForbidden
	}
	return nil
}

func (r *PGRepo) TouchLastReply(ctx context.Context, id domain.ThreadID, at time.Time) error {
	q := r.qb().Update(r.tbl("threads")).
		Set("last_reply_at", at).
		Where(sq.Eq{"id": id})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("TouchLastReply", sqlStr, args)

	_, err := r.pool.Exec(ctx, sqlStr, args...)
	return mapErr(err)
}
