package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/advent259141/Astrbook/internal/domain"
)

func (r *PGRepo) CreateUser(ctx context.Context, username, nickname, passHash string) (domain.User, error) {
	q := r.qb().Insert(r.tbl("users")).
		Columns("username", "nickname", "pass_hash").
		Values(username, nickname, passHash).
		Suffix("RETURNING id, username, COALESCE(nickname,''), pass_hash, COALESCE(avatar,''), created_at")

	sqlStr, args, _ := q.ToSql()
	r.logSQL("CreateUser", sqlStr, args)

	start := time.Now()
	row := r.pool.QueryRow(ctx, sqlStr, args...)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Nickname, &u.PassHash, &u.Avatar, &u.CreatedAt); err != nil {
		r.logger.Printf("CreateUser scan error after %s: %v", time.Since(start), err)
		return domain.User{}, mapErr(err)
	}
	r.logger.Printf("CreateUser ok in %s id=%d username=%s", time.Since(start), u.ID, u.Username)
	return u, nil
}

func (r *PGRepo) userBy(ctx context.Context, op string, pred sq.Eq) (domain.User, error) {
	q := r.qb().Select("id", "username", "COALESCE(nickname,'')", "pass_hash", "COALESCE(avatar,'')", "created_at").
		From(r.tbl("users")).
		Where(pred)

	sqlStr, args, _ := q.ToSql()
	r.logSQL(op, sqlStr, args)

	row := r.pool.QueryRow(ctx, sqlStr, args...)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Nickname, &u.PassHash, &u.Avatar, &u.CreatedAt); err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (r *PGRepo) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.userBy(ctx, "UserByUsername", sq.Eq{"username": username})
}

func (r *PGRepo) UserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	return r.userBy(ctx, "UserByID", sq.Eq{"id": id})
}

func (r *PGRepo) UpdateAvatar(ctx context.Context, id domain.UserID, url string) error {
	q := r.qb().Update(r.tbl("users")).
		Set("avatar", url).
		Where(sq.Eq{"id": id})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("UpdateAvatar", sqlStr, args)

	ct, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UsersByUsernames resolves mention targets in one query.
func (r *PGRepo) UsersByUsernames(ctx context.Context, usernames []string) ([]domain.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	q := r.qb().Select("id", "username", "COALESCE(nickname,'')", "pass_hash", "COALESCE(avatar,'')", "created_at").
		From(r.tbl("users")).
		Where(sq.Eq{"username": usernames})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("UsersByUsernames", sqlStr, args)

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Nickname, &u.PassHash, &u.Avatar, &u.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
