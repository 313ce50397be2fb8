package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/types"
)

// ThreadRepository owns the help_threads and thread_thanks tables. The
// persisted state column is the single source of truth for closure, so every
// transition is a conditional update guarded by the expected current state;
// a transition that raced with a close simply affects zero rows.
type ThreadRepository struct {
	db *PostgresDB
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(db *PostgresDB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Register tracks a newly created thread as open. Re-registering an existing
// thread is a no-op.
func (r *ThreadRepository) Register(ctx context.Context, threadID, ownerID, categoryID string, now time.Time) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO help_threads (thread_id, owner_id, category_id, state, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $5)
		ON CONFLICT (thread_id) DO NOTHING
	`, threadID, ownerID, categoryID, types.ThreadOpen, now)
	if err != nil {
		return fmt.Errorf("failed to register thread: %w", err)
	}
	return nil
}

// Get reads a thread, returning ErrNotFound for untracked IDs.
func (r *ThreadRepository) Get(ctx context.Context, threadID string) (*models.HelpThread, error) {
	var t models.HelpThread
	var closeReason *string

	err := r.db.Pool().QueryRow(ctx, `
		SELECT thread_id, owner_id, category_id, state, close_reason,
		       last_activity_at, reminder_sent_at, pending_since, created_at, updated_at
		FROM help_threads
		WHERE thread_id = $1
	`, threadID).Scan(
		&t.ThreadID,
		&t.OwnerID,
		&t.CategoryID,
		&t.State,
		&closeReason,
		&t.LastActivityAt,
		&t.ReminderSentAt,
		&t.PendingSince,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	if closeReason != nil {
		t.CloseReason = types.CloseReason(*closeReason)
	}
	return &t, nil
}

// MarkPendingClose moves an open thread to pending-close. Returns false when
// the thread was not open, which callers treat as "state moved under us".
func (r *ThreadRepository) MarkPendingClose(ctx context.Context, threadID string, now time.Time) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE help_threads
		SET state = $2, pending_since = $3, updated_at = $3
		WHERE thread_id = $1 AND state = $4
	`, threadID, types.ThreadPendingClose, now, types.ThreadOpen)
	if err != nil {
		return false, fmt.Errorf("failed to mark thread pending close: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Close transitions a thread to the terminal closed state, from any non-closed
// state. Returns false when the thread was already closed.
func (r *ThreadRepository) Close(ctx context.Context, threadID string, reason types.CloseReason, now time.Time) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE help_threads
		SET state = $2, close_reason = $3, updated_at = $4
		WHERE thread_id = $1 AND state <> $2
	`, threadID, types.ThreadClosed, string(reason), now)
	if err != nil {
		return false, fmt.Errorf("failed to close thread: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchActivity bumps the activity timestamp on a non-closed thread.
func (r *ThreadRepository) TouchActivity(ctx context.Context, threadID string, now time.Time) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE help_threads
		SET last_activity_at = $2, updated_at = $2
		WHERE thread_id = $1 AND state <> $3
	`, threadID, now, types.ThreadClosed)
	if err != nil {
		return fmt.Errorf("failed to touch thread activity: %w", err)
	}
	return nil
}

// SetReminderSent stamps the inactivity reminder. The guard on a nil stamp
// keeps a concurrent sweep from double-stamping.
func (r *ThreadRepository) SetReminderSent(ctx context.Context, threadID string, now time.Time) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE help_threads
		SET reminder_sent_at = $2, updated_at = $2
		WHERE thread_id = $1 AND state = $3 AND reminder_sent_at IS NULL
	`, threadID, now, types.ThreadOpen)
	if err != nil {
		return false, fmt.Errorf("failed to stamp reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClearReminder removes the reminder stamp, restarting the inactivity clock.
func (r *ThreadRepository) ClearReminder(ctx context.Context, threadID string, now time.Time) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE help_threads
		SET reminder_sent_at = NULL, updated_at = $2
		WHERE thread_id = $1 AND state = $3
	`, threadID, now, types.ThreadOpen)
	if err != nil {
		return fmt.Errorf("failed to clear reminder: %w", err)
	}
	return nil
}

// ListByState returns threads in the given state, oldest activity first.
func (r *ThreadRepository) ListByState(ctx context.Context, state types.ThreadState, limit int) ([]*models.HelpThread, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT thread_id, owner_id, category_id, state, close_reason,
		       last_activity_at, reminder_sent_at, pending_since, created_at, updated_at
		FROM help_threads
		WHERE state = $1
		ORDER BY last_activity_at ASC
		LIMIT $2
	`, state, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	return scanThreads(rows)
}

// ListSweepable returns all non-closed threads for the inactivity sweep.
func (r *ThreadRepository) ListSweepable(ctx context.Context) ([]*models.HelpThread, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT thread_id, owner_id, category_id, state, close_reason,
		       last_activity_at, reminder_sent_at, pending_since, created_at, updated_at
		FROM help_threads
		WHERE state <> $1
		ORDER BY last_activity_at ASC
	`, types.ThreadClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweepable threads: %w", err)
	}
	defer rows.Close()

	return scanThreads(rows)
}

// ListOpenByOwner returns the non-closed threads created by a member, used
// when the member leaves the community.
func (r *ThreadRepository) ListOpenByOwner(ctx context.Context, ownerID string) ([]*models.HelpThread, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT thread_id, owner_id, category_id, state, close_reason,
		       last_activity_at, reminder_sent_at, pending_since, created_at, updated_at
		FROM help_threads
		WHERE owner_id = $1 AND state <> $2
	`, ownerID, types.ThreadClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads by owner: %w", err)
	}
	defer rows.Close()

	return scanThreads(rows)
}

// RecordThank marks a helper as thanked in a thread. Returns false when the
// helper was already thanked through this thread's prompt.
func (r *ThreadRepository) RecordThank(ctx context.Context, threadID, helperID string, now time.Time) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		INSERT INTO thread_thanks (thread_id, helper_id, thanked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id, helper_id) DO NOTHING
	`, threadID, helperID, now)
	if err != nil {
		return false, fmt.Errorf("failed to record thank: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ThankedHelpers returns the helpers already thanked in a thread.
func (r *ThreadRepository) ThankedHelpers(ctx context.Context, threadID string) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT helper_id FROM thread_thanks WHERE thread_id = $1
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list thanked helpers: %w", err)
	}
	defer rows.Close()

	var helpers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thanked helper: %w", err)
		}
		helpers = append(helpers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thanked helpers: %w", err)
	}
	return helpers, nil
}

func scanThreads(rows pgx.Rows) ([]*models.HelpThread, error) {
	var threads []*models.HelpThread
	for rows.Next() {
		var t models.HelpThread
		var closeReason *string
		err := rows.Scan(
			&t.ThreadID,
			&t.OwnerID,
			&t.CategoryID,
			&t.State,
			&closeReason,
			&t.LastActivityAt,
			&t.ReminderSentAt,
			&t.PendingSince,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		if closeReason != nil {
			t.CloseReason = types.CloseReason(*closeReason)
		}
		threads = append(threads, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}
	return threads, nil
}
