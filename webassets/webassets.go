// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package webassets embeds the app shells and static assets the
// attendee cache pre-fetches. ShellManifest lists every path a client
// needs to keep a session usable offline.
package webassets

import "embed"

//go:embed shell.html present.html static
var FS embed.FS

// ShellManifest is the fixed set of paths the attendee cache installs.
var ShellManifest = []string{
	"/",
	"/present",
	"/static/app.css",
	"/static/app.js",
	"/static/icon.svg",
}

// AttendeeShell returns the attendee app shell page.
func AttendeeShell() []byte {
	b, _ := FS.ReadFile("shell.html")
	return b
}

// PresenterShell returns the facilitator app shell page.
func PresenterShell() []byte {
	b, _ := FS.ReadFile("present.html")
	return b
}
