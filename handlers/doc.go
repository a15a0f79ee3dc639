// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Crowd Poll API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - PollHandler: public lookups (active list, by-title, by-slug, status, detail)
  - VotingHandler: vote submission
  - AdminHandler: login, poll CRUD, lifecycle, results

Handlers are created via constructor functions that accept *sql.DB and Config:

	pollHandler := handlers.NewPollHandler(db, cfg)

# Attendee Flow

Attendees resolve a poll three ways, then submit once:

	GET /poll/active?type=T        → active session list
	GET /poll/by-title?title=S     → id resolution by title
	GET /poll/by-slug?slug=S       → id resolution by slug
	GET /poll/status/by-slug       → closed-vs-missing messaging
	GET /poll/{id}                 → question/choice tree
	POST /poll/{id}/submit         → the whole answer set, atomically

# Submission Contract

Submit validates poll openness and (question, choice) ownership, then
writes the participant and every vote inside a single transaction. The
one-answer-per-question invariant and redelivery detection live in the
database as UNIQUE constraints; a constraint hit maps to HTTP 409 with
code already_submitted so a replaying client retires its queue entry
instead of looping.

# Admin Flow

Polls are created with their full question tree, then activated
(stamping start_time, optionally setting the end_time deadline),
deactivated, or archived. Results aggregate per-choice vote counts.
Admin operations require a Bearer token from POST /admin/login.
*/
package handlers
