package postgres

import (
	"context"
	"fmt"

	"github.com/advent259141/Astrbook/internal/domain"
)

// Counter scopes map onto (table, column) pairs. Deltas are applied as one
// atomic update expression: no fetch-modify-store, no lost updates, clamped
// at zero in the statement itself.
func (r *PGRepo) counterTarget(scope domain.CounterScope) (table, column string, ok bool) {
	switch scope {
	case domain.CounterThreadViews:
		return r.tbl("threads"), "view_count", true
	case domain.CounterThreadLikes:
		return r.tbl("threads"), "like_count", true
	case domain.CounterThreadReplies:
		return r.tbl("threads"), "reply_count", true
	case domain.CounterReplyLikes:
		return r.tbl("replies"), "like_count", true
	}
	return "", "", false
}

func (r *PGRepo) Add(ctx context.Context, scope domain.CounterScope, id int64, delta int64) (int64, error) {
	table, col, ok := r.counterTarget(scope)
	if !ok {
		return 0, fmt.Errorf("%w: unknown counter scope %q", domain.ErrBadParams, scope)
	}

	sqlStr := fmt.Sprintf(
		"UPDATE %s SET %s = GREATEST(0, COALESCE(%s, 0) + $1) WHERE id = $2 RETURNING %s",
		table, col, col, col,
	)
	r.logSQL("CounterAdd", sqlStr, []any{delta, id})

	var n int64
	if err := r.pool.QueryRow(ctx, sqlStr, delta, id).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (r *PGRepo) Value(ctx context.Context, scope domain.CounterScope, id int64) (int64, error) {
	table, col, ok := r.counterTarget(scope)
	if !ok {
		return 0, fmt.Errorf("%w: unknown counter scope %q", domain.ErrBadParams, scope)
	}

	sqlStr := fmt.Sprintf("SELECT COALESCE(%s, 0) FROM %s WHERE id = $1", col, table)
	r.logSQL("CounterValue", sqlStr, []any{id})

	var n int64
	if err := r.pool.QueryRow(ctx, sqlStr, id).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
