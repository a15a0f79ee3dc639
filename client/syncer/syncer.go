// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/danielhkuo/crowd-poll/client/queue"
)

// Probe checks server reachability; nil means online.
type Probe func(ctx context.Context) error

// Options tunes the background loop.
type Options struct {
	// ProbeInterval is how often connectivity is re-checked.
	ProbeInterval time.Duration
	// SyncInterval is the periodic background flush attempt while
	// online, the stand-in for platform background sync.
	SyncInterval time.Duration
}

// Syncer watches connectivity and decides when to drain the queue.
// Flushes fire on offline→online transitions, on the periodic sync
// tick, and on explicit wake-ups relayed from the cache.
type Syncer struct {
	probe Probe
	queue *queue.Queue
	send  queue.Sender
	opts  Options

	notices chan string
	wake    chan struct{}

	mu      sync.Mutex
	online  bool
	started bool
}

// New creates a Syncer. Zero-value intervals default to 15s probes and
// 60s background sync.
func New(probe Probe, q *queue.Queue, send queue.Sender, opts Options) *Syncer {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 15 * time.Second
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = time.Minute
	}
	return &Syncer{
		probe:   probe,
		queue:   q,
		send:    send,
		opts:    opts,
		notices: make(chan string, 8),
		wake:    make(chan struct{}, 1),
	}
}

// Notices is the advisory message stream ("connection lost...",
// "sent N queued votes"). Purely informational; dropping or ignoring
// notices never affects queue behavior.
func (s *Syncer) Notices() <-chan string {
	return s.notices
}

// Online reports the last observed connectivity state.
func (s *Syncer) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Wake requests an immediate probe-and-flush, used for the wake signal
// the cache relays and for manual retry. Coalesces when one is pending.
func (s *Syncer) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start runs the loop until ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Syncer) run(ctx context.Context) {
	probeTick := time.NewTicker(s.opts.ProbeInterval)
	defer probeTick.Stop()
	syncTick := time.NewTicker(s.opts.SyncInterval)
	defer syncTick.Stop()

	// Establish the initial state and drain any leftovers from a
	// previous run.
	s.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-probeTick.C:
			s.check(ctx)
		case <-syncTick.C:
			if s.Online() {
				s.flush(ctx)
			}
		case <-s.wake:
			s.check(ctx)
		}
	}
}

// check probes connectivity, reports transitions, and flushes whenever
// the server is reachable and something is queued.
func (s *Syncer) check(ctx context.Context) {
	err := s.probe(ctx)
	nowOnline := err == nil

	s.mu.Lock()
	wasOnline := s.online
	first := !s.started
	s.online = nowOnline
	s.started = true
	s.mu.Unlock()

	switch {
	case !first && wasOnline && !nowOnline:
		slog.Info("went offline")
		s.notify("connection lost; submissions will be queued and sent automatically")
	case !first && !wasOnline && nowOnline:
		slog.Info("back online")
	case first && !nowOnline:
		s.notify("offline; submissions will be queued and sent automatically")
	}

	if nowOnline {
		s.flush(ctx)
	}
}

func (s *Syncer) flush(ctx context.Context) {
	n, err := s.queue.Flush(ctx, s.send)
	if err != nil {
		slog.Warn("queue flush failed", "error", err)
	}
	if n > 0 {
		s.notify("sent " + english.Plural(n, "queued vote", ""))
	}
}

// notify never blocks; a full channel drops the notice.
func (s *Syncer) notify(msg string) {
	select {
	case s.notices <- msg:
	default:
	}
}
