package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// campaignLockSpace namespaces campaign advisory locks from any other
// pg_advisory_lock users of the same database.
const campaignLockSpace = 0x6d61696c

// AdvisoryLocker serialises campaign cycles across processes with postgres
// session-level advisory locks. Each held lock pins one pooled connection.
type AdvisoryLocker struct {
	DB *sql.DB
}

// TryLock takes the campaign's lock without waiting. ok is false when another
// session holds it.
func (l *AdvisoryLocker) TryLock(ctx context.Context, campaignID int) (unlock func(), ok bool, err error) {
	conn, err := l.DB.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, $2)`, campaignLockSpace, campaignID).Scan(&ok); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("advisory lock campaign %d: %w", campaignID, err)
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}

	unlock = func() {
		// Close hands the session back to the pool, so the lock is released first.
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1, $2)`, campaignLockSpace, campaignID)
		conn.Close()
	}
	return unlock, true, nil
}
