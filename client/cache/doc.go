// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache keeps the attendee agent usable without a network.

Responses are stored in two versioned partitions: static-<ver> holds
the fixed asset manifest Install pre-fetches (all-or-nothing), and
runtime-<ver> is populated opportunistically from successful API reads.
Activate deletes every partition carrying a stale version tag and wakes
subscribers immediately.

The Cache satisfies the api.Doer interface, so wiring it under the
typed client applies the per-category cache-vs-network policies to
every request the session controller makes. Submission POSTs are never
intercepted.

It also carries the flush wake-up channel: NotifyFlush fans a signal
out to every subscribed session, which then drains its own queue. The
cache never reads queue contents.
*/
package cache
