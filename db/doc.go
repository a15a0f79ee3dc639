// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db creates the relational schema for Crowd Poll.

# Schema

Six tables: users, polls, questions, choices, participants, votes.
CreateSchema is idempotent (IF NOT EXISTS) and runs at server startup
against either sqlite or postgres.

# Consistency Constraints

Two uniqueness constraints carry the correctness guarantees the
submission endpoint depends on:

  - votes UNIQUE (participant_id, question_id): at most one answer per
    question per participant
  - participants.submission_key UNIQUE: a redelivered answer set fails
    as a duplicate instead of creating a second participant

Timestamps are stored as RFC 3339 text (FormatTime/ParseTime) so both
database drivers round-trip them identically.
*/
package db
