// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package session drives one attendee's participation lifecycle: join
// by code, title, or active lookup, answer questions against a local
// countdown, and submit exactly once. A failed send is handed to the
// durable queue rather than lost, and a resume marker lets a restarted
// client pick the session back up.
package session
