package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lernobot/lernobot/pkg/store"
)

// Notifications is the teacher-notification view of the store. Obtain one via
// [Store.Notifications] rather than constructing directly.
type Notifications struct {
	pool *pgxpool.Pool
}

// Emit implements [store.NotificationSink]. The unique constraint on
// (session_id, attempt_count) makes re-emission a no-op, which is what keeps
// watchdog re-checks idempotent.
func (n *Notifications) Emit(ctx context.Context, notif store.TeacherNotification) error {
	created := notif.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	const q = `
		INSERT INTO teacher_notifications (id, session_id, attempt_count, strategy, instruction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, attempt_count) DO NOTHING`

	_, err := n.pool.Exec(ctx, q,
		notif.ID,
		notif.SessionID,
		notif.AttemptCount,
		notif.Strategy,
		notif.Instruction,
		created,
	)
	if err != nil {
		return fmt.Errorf("notification store: emit: %w", err)
	}
	return nil
}

// Exists implements [store.NotificationSink].
func (n *Notifications) Exists(ctx context.Context, sessionID int64, attemptCount int) (bool, error) {
	const q = `
		SELECT EXISTS (
		    SELECT 1 FROM teacher_notifications
		    WHERE session_id = $1 AND attempt_count = $2
		)`

	var exists bool
	if err := n.pool.QueryRow(ctx, q, sessionID, attemptCount).Scan(&exists); err != nil {
		return false, fmt.Errorf("notification store: exists: %w", err)
	}
	return exists, nil
}
