package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/advent259141/Astrbook/internal/domain"
)

// How long a floor allocation may wait on the thread row before the caller
// gets ErrConflict and retries the whole operation.
const floorLockTimeout = "3s"

// allocateFloor issues the next floor ordinal for the thread. Must run inside
// the same transaction as the reply insert: the thread row stays locked from
// the ordinal read through commit, otherwise two writers can observe the same
// MAX and collide. Distinct threads never contend.
func (r *PGRepo) allocateFloor(ctx context.Context, tx pgx.Tx, threadID domain.ThreadID) (int, error) {
	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+floorLockTimeout+"'"); err != nil {
		return 0, err
	}

	// Exclusive short-held lock on the parent row. Bounded wait; timeout
	// surfaces as ErrConflict via mapErr at the call site.
	lockQ := r.qb().Select("id").From(r.tbl("threads")).
		Where(sq.Eq{"id": threadID}).
		Suffix("FOR UPDATE")
	sqlStr, args, _ := lockQ.ToSql()
	r.logSQL("allocateFloor.lock", sqlStr, args)
	var tid domain.ThreadID
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&tid); err != nil {
		return 0, err
	}

	// Floor 1 is the opening post; replies start at 2.
	var next int
	maxQ := "SELECT COALESCE(MAX(floor_num), 1) + 1 FROM " + r.tbl("replies") + " WHERE thread_id = $1"
	r.logSQL("allocateFloor.next", maxQ, []any{threadID})
	if err := tx.QueryRow(ctx, maxQ, threadID).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}
