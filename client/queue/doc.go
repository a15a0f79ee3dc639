// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package queue is the durable vote queue: a persisted, ordered list of
submissions that have not been confirmed by the server.

Its single job is never losing a completed-but-unsent answer set. The
queue is delivery-at-least-once; it performs no deduplication of its
own. The submission endpoint's already_submitted rejection is what
makes redelivery safe, and Flush treats that rejection as confirmation.

Storage is a sqlite file scoped to the profile directory, so entries
survive both process restarts and machine reboots, and multiple
controller instances share one queue. Append and remove are the only
mutations; removal is idempotent.
*/
package queue
