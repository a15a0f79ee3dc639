// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package api is the typed HTTP client for the Crowd Poll API, shared by
the attendee session controller, the durable queue, and the syncer.

# Error Classification

Every failure falls into exactly one of three categories the rest of
the client pipeline branches on:

  - connectivity: the server could not be reached (wraps
    ErrUnreachable; check with IsConnectivity). Routes into the queue.
  - not found: a lookup resolved nothing (ErrNotFound). Routes into
    re-prompting with closed-vs-missing messaging.
  - rejection: the server answered no (*RejectionError with the
    machine-readable code). IsAlreadySubmitted identifies the
    duplicate-delivery rejection a retrying queue treats as delivered.

Requests carry DefaultTimeout so a hung connection classifies as
connectivity rather than blocking forever.

The Doer field accepts any request executor; wiring the client cache
here gives every GET the offline fallback policies transparently.
*/
package api
