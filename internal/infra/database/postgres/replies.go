package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/advent259141/Astrbook/internal/domain"
)

// CreateFloor issues the next floor ordinal for the thread (allocateFloor)
// and persists the reply in the same transaction, so the ordinal commits with
// the row that claimed it.
func (r *PGRepo) CreateFloor(ctx context.Context, in domain.Reply) (domain.Reply, error) {
	start := time.Now()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reply{}, mapErr(err)
	}
	defer tx.Rollback(ctx)

	next, err := r.allocateFloor(ctx, tx, in.ThreadID)
	if err != nil {
		return domain.Reply{}, mapErr(err)
	}

	insQ := r.qb().Insert(r.tbl("replies")).
		Columns("thread_id", "author_id", "floor_num", "content").
		Values(in.ThreadID, in.AuthorID, next, in.Content).
		Suffix("RETURNING id, created_at")
	sqlStr, args, _ := insQ.ToSql()
	r.logSQL("CreateFloor.insert", sqlStr, args)

	out := in
	out.FloorNum = &next
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&out.ID, &out.CreatedAt); err != nil {
		return domain.Reply{}, mapErr(err)
	}

	updQ := r.qb().Update(r.tbl("threads")).
		Set("reply_count", sq.Expr("reply_count + 1")).
		Set("last_reply_at", out.CreatedAt).
		Where(sq.Eq{"id": in.ThreadID})
	sqlStr, args, _ = updQ.ToSql()
	r.logSQL("CreateFloor.touch", sqlStr, args)
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return domain.Reply{}, mapErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Reply{}, mapErr(err)
	}
	r.logger.Printf("CreateFloor ok in %s thread=%d floor=%d id=%d", time.Since(start), in.ThreadID, next, out.ID)
	return out, nil
}

func (r *PGRepo) CreateSubReply(ctx context.Context, in domain.Reply) (domain.Reply, error) {
	q := r.qb().Insert(r.tbl("replies")).
		Columns("thread_id", "author_id", "content", "parent_id", "reply_to_id").
		Values(in.ThreadID, in.AuthorID, in.Content, in.ParentID, in.ReplyToID).
		Suffix("RETURNING id, created_at")

	sqlStr, args, _ := q.ToSql()
	r.logSQL("CreateSubReply", sqlStr, args)

	out := in
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&out.ID, &out.CreatedAt); err != nil {
		return domain.Reply{}, mapErr(err)
	}
	return out, nil
}

const replyCols = "r.id, r.thread_id, r.author_id, r.floor_num, r.content, r.parent_id, r.reply_to_id, r.like_count, r.created_at"

func (r *PGRepo) replySelect() sq.SelectBuilder {
	return r.qb().
		Select(replyCols, "u.id", "u.username", "COALESCE(u.nickname,'')", "COALESCE(u.avatar,'')").
		From(r.tbl("replies") + " r").
		Join(r.tbl("users") + " u ON u.id = r.author_id")
}

func scanReply(row interface{ Scan(...any) error }) (domain.Reply, error) {
	var rep domain.Reply
	var u domain.User
	err := row.Scan(
		&rep.ID, &rep.ThreadID, &rep.AuthorID, &rep.FloorNum, &rep.Content,
		&rep.ParentID, &rep.ReplyToID, &rep.LikeCount, &rep.CreatedAt,
		&u.ID, &u.Username, &u.Nickname, &u.Avatar,
	)
	if err != nil {
		return domain.Reply{}, err
	}
	rep.Author = &u
	return rep, nil
}

func (r *PGRepo) ReplyByID(ctx context.Context, id domain.ReplyID) (domain.Reply, error) {
	q := r.replySelect().Where(sq.Eq{"r.id": id})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("ReplyByID", sqlStr, args)

	rep, err := scanReply(r.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return domain.Reply{}, mapErr(err)
	}
	return rep, nil
}

func (r *PGRepo) listReplies(ctx context.Context, op string, where sq.Sqlizer, orderBy string, page, pageSize int, excludeAuthors []domain.UserID) ([]domain.Reply, int64, error) {
	cq := r.qb().Select("COUNT(*)").From(r.tbl("replies") + " r").Where(where)
	q := r.replySelect().Where(where)
	if len(excludeAuthors) > 0 {
		ex := sq.NotEq{"r.author_id": excludeAuthors}
		cq = cq.Where(ex)
		q = q.Where(ex)
	}
	q = q.OrderBy(orderBy).Offset(uint64((page - 1) * pageSize)).Limit(uint64(pageSize))

	sqlStr, args, _ := cq.ToSql()
	r.logSQL(op+".count", sqlStr, args)
	var total int64
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	sqlStr, args, _ = q.ToSql()
	r.logSQL(op, sqlStr, args)
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Reply
	for rows.Next() {
		rep, err := scanReply(rows)
		if err != nil {
			return nil, 0, mapErr(err)
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}

func (r *PGRepo) Floors(ctx context.Context, threadID domain.ThreadID, page, pageSize int, excludeAuthors []domain.UserID) ([]domain.Reply, int64, error) {
	where := sq.And{sq.Eq{"r.thread_id": threadID}, sq.Expr("r.parent_id IS NULL")}
	return r.listReplies(ctx, "Floors", where, "r.floor_num ASC", page, pageSize, excludeAuthors)
}

func (r *PGRepo) SubReplies(ctx context.Context, parentID domain.ReplyID, page, pageSize int, excludeAuthors []domain.UserID) ([]domain.Reply, int64, error) {
	where := sq.Eq{"r.parent_id": parentID}
	return r.listReplies(ctx, "SubReplies", where, "r.created_at ASC", page, pageSize, excludeAuthors)
}

// DeleteReply removes a floor with its sub-replies, or a single sub-reply.
// Returns how many reply rows went away: a floor takes its sub-replies with
// it into the reply_count delta.
func (r *PGRepo) DeleteReply(ctx context.Context, id domain.ReplyID, owner domain.UserID) (int, domain.ThreadID, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, mapErr(err)
	}
	defer tx.Rollback(ctx)

	var threadID domain.ThreadID
	var authorID domain.UserID
	var parentID *domain.ReplyID
	sel := "SELECT thread_id, author_id, parent_id FROM " + r.tbl("replies") + " WHERE id = $1"
	r.logSQL("DeleteReply.select", sel, []any{id})
	if err := tx.QueryRow(ctx, sel, id).Scan(&threadID, &authorID, &parentID); err != nil {
		return 0, 0, mapErr(err)
	}
	if authorID != owner {
		return 0, 0, domain.ErrForbidden
	}

	removed := 0
	if parentID == nil {
		// References to the soon-deleted rows must be cleared first:
		// reply_to_id has no cascade.
		var subCount int
		clear := "UPDATE " + r.tbl("replies") + " SET reply_to_id = NULL WHERE reply_to_id IN (SELECT id FROM " + r.tbl("replies") + " WHERE parent_id = $1 OR id = $1)"
		if _, err := tx.Exec(ctx, clear, id); err != nil {
			return 0, 0, mapErr(err)
		}
		del := "DELETE FROM " + r.tbl("replies") + " WHERE parent_id = $1"
		ct, err := tx.Exec(ctx, del, id)
		if err != nil {
			return 0, 0, mapErr(err)
		}
		subCount = int(ct.RowsAffected())
		removed = 1 + subCount
	} else {
		clear := "UPDATE " + r.tbl("replies") + " SET reply_to_id = NULL WHERE reply_to_id = $1"
		if _, err := tx.Exec(ctx, clear, id); err != nil {
			return 0, 0, mapErr(err)
		}
		removed = 1
	}

	if _, err := tx.Exec(ctx, "DELETE FROM "+r.tbl("replies")+" WHERE id = $1", id); err != nil {
		return 0, 0, mapErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, mapErr(err)
	}
	return removed, threadID, nil
}
