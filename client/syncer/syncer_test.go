// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/crowd-poll/client/queue"
	"github.com/danielhkuo/crowd-poll/models"
)

var errDown = errors.New("connection refused")

// fakeNetwork flips between reachable and not, shared by probe and send.
type fakeNetwork struct {
	down atomic.Bool
	sent atomic.Int64
}

func (f *fakeNetwork) probe(ctx context.Context) error {
	if f.down.Load() {
		return errDown
	}
	return nil
}

func (f *fakeNetwork) send(ctx context.Context, pollID string, payload models.SubmitRequest) error {
	if f.down.Load() {
		return errDown
	}
	f.sent.Add(1)
	return nil
}

func openTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func enqueueOne(t *testing.T, q *queue.Queue, name string) {
	t.Helper()
	_, err := q.Enqueue(context.Background(), "poll-1", models.SubmitRequest{
		Participant: models.ParticipantCreate{Name: name},
		Votes:       []models.VoteCreate{{QuestionID: "q1", ChoiceID: "c1"}},
	})
	require.NoError(t, err)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func fastOptions() Options {
	return Options{ProbeInterval: 10 * time.Millisecond, SyncInterval: 20 * time.Millisecond}
}

func TestOfflineToOnlineFlush(t *testing.T) {
	net := &fakeNetwork{}
	net.down.Store(true)
	q := openTestQueue(t)

	enqueueOne(t, q, "alice")
	enqueueOne(t, q, "bob")

	s := New(net.probe, q, net.send, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	waitFor(t, func() bool { return !s.Online() }, "syncer never observed the offline state")
	assert.Equal(t, int64(0), net.sent.Load())

	// Connectivity returns; the transition drains the queue.
	net.down.Store(false)
	waitFor(t, func() bool { return net.sent.Load() == 2 }, "queue was not drained after reconnect")

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, s.Online())
}

func TestFlushNotice(t *testing.T) {
	net := &fakeNetwork{}
	q := openTestQueue(t)
	enqueueOne(t, q, "alice")

	s := New(net.probe, q, net.send, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case msg := <-s.Notices():
		assert.Equal(t, "sent 1 queued vote", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no notice for the drained entry")
	}

	// An empty queue stays silent: no notice on subsequent sync ticks.
	select {
	case msg := <-s.Notices():
		t.Fatalf("unexpected notice %q from an empty queue", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectionLostNotice(t *testing.T) {
	net := &fakeNetwork{}
	q := openTestQueue(t)

	s := New(net.probe, q, net.send, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	waitFor(t, s.Online, "syncer never came online")

	net.down.Store(true)

	select {
	case msg := <-s.Notices():
		assert.Contains(t, msg, "connection lost")
	case <-time.After(2 * time.Second):
		t.Fatal("no notice for the lost connection")
	}
	assert.False(t, s.Online())
}

func TestWakeTriggersImmediateFlush(t *testing.T) {
	net := &fakeNetwork{}
	q := openTestQueue(t)

	// Long intervals so only the wake can plausibly drive the flush.
	s := New(net.probe, q, net.send, Options{ProbeInterval: time.Hour, SyncInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	waitFor(t, s.Online, "initial probe did not run")

	enqueueOne(t, q, "alice")
	s.Wake()

	waitFor(t, func() bool { return net.sent.Load() == 1 }, "wake did not trigger a flush")
}

func TestRetainedEntriesSurviveFailedFlushes(t *testing.T) {
	net := &fakeNetwork{}
	q := openTestQueue(t)
	enqueueOne(t, q, "alice")

	// Probe succeeds but sends fail: entry must survive every attempt.
	failingSend := func(ctx context.Context, pollID string, p models.SubmitRequest) error {
		return errDown
	}

	s := New(net.probe, q, failingSend, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(100 * time.Millisecond) // several probe and sync ticks

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
