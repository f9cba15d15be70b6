package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/advent259141/Astrbook/internal/domain"
)

func (r *PGRepo) CreateBlock(ctx context.Context, userID, target domain.UserID) (domain.Block, error) {
	q := r.qb().Insert(r.tbl("blocks")).
		Columns("user_id", "blocked_user_id").
		Values(userID, target).
		Suffix("RETURNING id, created_at")

	sqlStr, args, _ := q.ToSql()
	r.logSQL("CreateBlock", sqlStr, args)

	out := domain.Block{UserID: userID, BlockedUserID: target}
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&out.ID, &out.CreatedAt); err != nil {
		return domain.Block{}, mapErr(err)
	}
	return out, nil
}

func (r *PGRepo) DeleteBlock(ctx context.Context, userID, target domain.UserID) error {
	q := r.qb().Delete(r.tbl("blocks")).
		Where(sq.Eq{"user_id": userID, "blocked_user_id": target})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("DeleteBlock", sqlStr, args)

	ct, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGRepo) ListBlocks(ctx context.Context, userID domain.UserID, page, pageSize int) ([]domain.Block, int64, error) {
	cq := r.qb().Select("COUNT(*)").From(r.tbl("blocks")).Where(sq.Eq{"user_id": userID})
	sqlStr, args, _ := cq.ToSql()
	r.logSQL("ListBlocks.count", sqlStr, args)
	var total int64
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	q := r.qb().Select(
		"b.id", "b.user_id", "b.blocked_user_id", "b.created_at",
		"u.username", "COALESCE(u.nickname,'')", "COALESCE(u.avatar,'')",
	).
		From(r.tbl("blocks") + " b").
		Join(r.tbl("users") + " u ON u.id = b.blocked_user_id").
		Where(sq.Eq{"b.user_id": userID}).
		OrderBy("b.created_at DESC").
		Offset(uint64((page - 1) * pageSize)).
		Limit(uint64(pageSize))

	sqlStr, args, _ = q.ToSql()
	r.logSQL("ListBlocks", sqlStr, args)
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Block
	for rows.Next() {
		var b domain.Block
		var u domain.User
		if err := rows.Scan(&b.ID, &b.UserID, &b.BlockedUserID, &b.CreatedAt,
			&u.Username, &u.Nickname, &u.Avatar); err != nil {
			return nil, 0, mapErr(err)
		}
		u.ID = b.BlockedUserID
		b.BlockedUser = &u
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// BlockedEitherWay unions both directions in one round trip: ids the user
// blocked plus ids that blocked the user.
func (r *PGRepo) BlockedEitherWay(ctx context.Context, userID domain.UserID) ([]domain.UserID, error) {
	sqlStr := "SELECT blocked_user_id AS uid FROM " + r.tbl("blocks") + " WHERE user_id = $1" +
		" UNION SELECT user_id AS uid FROM " + r.tbl("blocks") + " WHERE blocked_user_id = $1"
	r.logSQL("BlockedEitherWay", sqlStr, []any{userID})

	rows, err := r.pool.Query(ctx, sqlStr, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.UserID
	for rows.Next() {
		var id domain.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UsersWhoBlocked narrows notification targets to those that blocked the
// author with one WHERE IN query instead of N point lookups.
func (r *PGRepo) UsersWhoBlocked(ctx context.Context, author domain.UserID, targets []domain.UserID) (map[domain.UserID]bool, error) {
	out := make(map[domain.UserID]bool, len(targets))
	if len(targets) == 0 {
		return out, nil
	}
	q := r.qb().Select("user_id").From(r.tbl("blocks")).
		Where(sq.Eq{"blocked_user_id": author, "user_id": targets})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("UsersWhoBlocked", sqlStr, args)

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id domain.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *PGRepo) IsBlocked(ctx context.Context, userID, target domain.UserID) (bool, error) {
	q := r.qb().Select("1").From(r.tbl("blocks")).
		Where(sq.Eq{"user_id": userID, "blocked_user_id": target})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("IsBlocked", sqlStr, args)

	var one int
	err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&one)
	if err != nil {
		if mapErr(err) == domain.ErrNotFound {
			return false, nil
		}
		return false, mapErr(err)
	}
	return true, nil
}
