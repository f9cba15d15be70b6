package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/advent259141/Astrbook/internal/domain"
)

// CreateLike inserts the like row; ON CONFLICT DO NOTHING makes a repeat
// like a no-op reported as false.
func (r *PGRepo) CreateLike(ctx context.Context, userID domain.UserID, targetType string, targetID int64) (bool, error) {
	q := r.qb().Insert(r.tbl("likes")).
		Columns("user_id", "target_type", "target_id").
		Values(userID, targetType, targetID).
		Suffix("ON CONFLICT (user_id, target_type, target_id) DO NOTHING")

	sqlStr, args, _ := q.ToSql()
	r.logSQL("CreateLike", sqlStr, args)

	ct, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, mapErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PGRepo) LikedIDs(ctx context.Context, userID domain.UserID, targetType string, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := r.qb().Select("target_id").From(r.tbl("likes")).
		Where(sq.Eq{"user_id": userID, "target_type": targetType, "target_id": ids})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("LikedIDs", sqlStr, args)

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		out[id] = true
	}
	return out, rows.Err()
}
