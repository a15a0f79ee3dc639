// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package syncer decides when to attempt draining the durable vote queue
without polling the submit path aggressively.

Flush triggers are: the offline→online transition observed by the
connectivity probe, a periodic background-sync tick, and explicit
wake-ups (relayed from the cache or requested manually). User-facing
notices are advisory only and flow through a non-blocking channel so
they can never stall or reorder queue operations.
*/
package syncer
