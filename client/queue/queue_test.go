// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package queue

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/crowd-poll/client/api"
	"github.com/danielhkuo/crowd-poll/models"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func payloadFor(name string) models.SubmitRequest {
	return models.SubmitRequest{
		Participant: models.ParticipantCreate{Name: name, SubmissionKey: name + "-key"},
		Votes:       []models.VoteCreate{{QuestionID: "q1", ChoiceID: "c1"}},
	}
}

func TestEnqueueAndEntries(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	e1, err := q.Enqueue(ctx, "poll-1", payloadFor("alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, e1.ID)

	e2, err := q.Enqueue(ctx, "poll-2", payloadFor("bob"))
	require.NoError(t, err)

	entries, err := q.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Enqueue order is preserved, payloads round-trip intact
	assert.Equal(t, e1.ID, entries[0].ID)
	assert.Equal(t, e2.ID, entries[1].ID)
	assert.Equal(t, "alice", entries[0].Payload.Participant.Name)
	assert.Equal(t, "poll-2", entries[1].PollID)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEnqueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	q, err := Open(path)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "poll-1", payloadFor("alice"))
	require.NoError(t, err)
	require.NoError(t, q.Close())

	q, err = Open(path)
	require.NoError(t, err)
	defer q.Close()

	entries, err := q.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Payload.Participant.Name)
}

func TestFlushDeliversInOrder(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := q.Enqueue(ctx, "poll-1", payloadFor(name))
		require.NoError(t, err)
	}

	var delivered []string
	sent, err := q.Flush(ctx, func(ctx context.Context, pollID string, p models.SubmitRequest) error {
		delivered = append(delivered, p.Participant.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"first", "second", "third"}, delivered)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFlushRetainsOnFailure(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "poll-1", payloadFor("alice"))
	require.NoError(t, err)

	// Every attempt fails: the entry must remain, however many times
	// the flush runs.
	for i := 0; i < 3; i++ {
		sent, err := q.Flush(ctx, func(ctx context.Context, pollID string, p models.SubmitRequest) error {
			return errors.New("connection refused")
		})
		require.NoError(t, err)
		assert.Equal(t, 0, sent)

		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestFlushRetiresAlreadySubmitted(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "poll-1", payloadFor("alice"))
	require.NoError(t, err)

	// The server recorded the earlier delivery before the connection
	// dropped; the duplicate rejection counts as confirmation.
	sent, err := q.Flush(ctx, func(ctx context.Context, pollID string, p models.SubmitRequest) error {
		return &api.RejectionError{
			StatusCode: http.StatusConflict,
			Code:       models.CodeAlreadySubmitted,
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFlushRetainsOnOtherRejections(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "poll-1", payloadFor("alice"))
	require.NoError(t, err)

	sent, err := q.Flush(ctx, func(ctx context.Context, pollID string, p models.SubmitRequest) error {
		return &api.RejectionError{StatusCode: http.StatusConflict, Code: models.CodePollClosed}
	})
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a poll_closed rejection is not a confirmation")
}

func TestWakeCallback(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	woke := 0
	q.SetWake(func() { woke++ })

	_, err := q.Enqueue(ctx, "poll-1", payloadFor("alice"))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "poll-1", payloadFor("bob"))
	require.NoError(t, err)

	assert.Equal(t, 2, woke)
}

func TestClear(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "poll-1", payloadFor("alice"))
	require.NoError(t, err)
	require.NoError(t, q.Clear(ctx))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
