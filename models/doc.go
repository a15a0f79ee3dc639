// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the request, response, and domain types shared by
the Crowd Poll API server and the attendee client.

# Organization

Types are grouped in four sections:

  - Constants: poll type tags and machine-readable error codes
  - Request types: JSON bodies accepted by the API
  - Response types: JSON bodies produced by the API
  - Domain types: rows as stored in the database

# Error Codes

Rejections carry a code the client can branch on without parsing
messages:

	poll_not_found     target poll does not exist
	poll_closed        poll exists but is not accepting submissions
	empty_votes        submission contained no answers
	invalid_vote       a (question, choice) pair does not belong to the poll
	already_submitted  this answer set was already recorded

The already_submitted code is what lets a replayed queued submission be
retired instead of double-counted.
*/
package models
