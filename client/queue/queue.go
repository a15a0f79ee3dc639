// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/crowd-poll/client/api"
	"github.com/danielhkuo/crowd-poll/models"
)

// Entry is one not-yet-confirmed submission.
type Entry struct {
	ID         string
	PollID     string
	Payload    models.SubmitRequest
	EnqueuedAt time.Time
}

// Sender delivers one payload to the submission endpoint.
type Sender func(ctx context.Context, pollID string, payload models.SubmitRequest) error

// Queue is a durable, ordered list of unconfirmed submissions backed
// by a sqlite file under the profile directory. Entries survive
// process restarts; the only mutations are append and remove.
type Queue struct {
	mu   sync.Mutex
	db   *sql.DB
	wake func()
}

const schema = `
CREATE TABLE IF NOT EXISTS queued_submissions (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    enqueued_at TEXT NOT NULL
);
`

// Open opens (creating if needed) the durable queue at path.
func Open(path string) (*Queue, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open queue storage: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create queue schema: %w", err)
	}
	return &Queue{db: sqlDB}, nil
}

// Close releases the underlying storage.
func (q *Queue) Close() error {
	return q.db.Close()
}

// SetWake registers a best-effort callback poked after every enqueue,
// the analogue of registering a background sync. A nil or missing
// callback is not an error; the queue then relies on explicit flushes.
func (q *Queue) SetWake(fn func()) {
	q.mu.Lock()
	q.wake = fn
	q.mu.Unlock()
}

// Enqueue appends a submission to durable storage.
func (q *Queue) Enqueue(ctx context.Context, pollID string, payload models.SubmitRequest) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	e := Entry{
		ID:         uuid.NewString(),
		PollID:     pollID,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO queued_submissions (id, poll_id, payload, enqueued_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.PollID, string(raw), e.EnqueuedAt.Format(time.RFC3339Nano))
	wake := q.wake
	q.mu.Unlock()

	if err != nil {
		return Entry{}, fmt.Errorf("failed to enqueue submission: %w", err)
	}

	slog.Info("submission queued", "entry_id", e.ID, "poll_id", pollID)

	if wake != nil {
		wake()
	}
	return e, nil
}

// Entries returns the queued submissions in enqueue order.
func (q *Queue) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, poll_id, payload, enqueued_at
		FROM queued_submissions
		ORDER BY enqueued_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw, at string
		if err := rows.Scan(&e.ID, &e.PollID, &raw, &at); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Payload); err != nil {
			return nil, fmt.Errorf("corrupt queue entry %s: %w", e.ID, err)
		}
		if e.EnqueuedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("corrupt queue entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len reports the number of queued submissions.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queued_submissions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// Flush attempts to deliver every queued submission in enqueue order.
//
// An entry is removed only after the endpoint confirms it - either a
// success or the already_submitted rejection, which means an earlier
// delivery landed before the connection dropped. Every other failure
// leaves the entry in place for the next flush. Returns the number of
// entries retired. Safe to call concurrently with Enqueue and on an
// empty queue.
func (q *Queue) Flush(ctx context.Context, send Sender) (int, error) {
	entries, err := q.Entries(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range entries {
		err := send(ctx, e.PollID, e.Payload)
		switch {
		case err == nil:
			sent++
		case api.IsAlreadySubmitted(err):
			slog.Info("queued submission was already recorded", "entry_id", e.ID)
			sent++
		default:
			slog.Warn("queued submission not delivered", "entry_id", e.ID, "error", err)
			continue
		}

		if err := q.remove(ctx, e.ID); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// remove deletes a delivered entry. Removing an already-removed entry
// is a no-op, which keeps concurrent flushes safe.
func (q *Queue) remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queued_submissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return nil
}

// Clear drops every queued submission. Manual escape hatch only.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queued_submissions`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}
