package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/advent259141/Astrbook/internal/domain"
)

func (r *PGRepo) GetSetting(ctx context.Context, key string) (string, error) {
	q := r.qb().Select("COALESCE(value,'')").From(r.tbl("settings")).Where(sq.Eq{"key": key})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("GetSetting", sqlStr, args)

	var v string
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&v); err != nil {
		if errors.Is(mapErr(err), domain.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", mapErr(err)
	}
	return v, nil
}

// GetSettingsGroup loads the whole group with one WHERE grp = $1 query;
// an unknown group yields an empty map.
func (r *PGRepo) GetSettingsGroup(ctx context.Context, group string) (map[string]string, error) {
	out := make(map[string]string)
	q := r.qb().Select("key", "COALESCE(value,'')").From(r.tbl("settings")).
		Where(sq.Eq{"grp": group})

	sqlStr, args, _ := q.ToSql()
	r.logSQL("GetSettingsGroup", sqlStr, args)

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, mapErr(err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *PGRepo) SetSetting(ctx context.Context, group, key, value string) error {
	q := r.qb().Insert(r.tbl("settings")).
		Columns("key", "grp", "value").
		Values(key, group, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET grp = EXCLUDED.grp, value = EXCLUDED.value, updated_at = now()")

	sqlStr, args, _ := q.ToSql()
	r.logSQL("SetSetting", sqlStr, args)

	_, err := r.pool.Exec(ctx, sqlStr, args...)
	return mapErr(err)
}
