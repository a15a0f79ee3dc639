// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Crowd Poll API server.

Crowd Poll runs timed, multiple-choice poll/trivia/survey sessions that
attendees join from a shared link and submit answers to, with an
offline-resilient native attendee agent (cmd/attendee) that queues
submissions across connectivity drops.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=crowdpoll.db go run main.go

Or with flags:

	go run main.go -p 3318 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): postgres URL or sqlite file path
  - JWT_SECRET_KEY (--jwt-secret): admin token signing secret
  - POLL_SLUG_SALT (--slug-salt): secret for slug generation

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - ADMIN_USERNAME / ADMIN_PASSWORD: bootstrap admin credentials

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (lookups, submission, admin)
  - router: Route definitions using Go 1.22+ routing
  - middleware: auth guard, CORS, logging, JSON helpers
  - models: Request/response types
  - auth: tokens, password hashing, ID generation
  - db: Schema creation
  - cliparse: Configuration parsing
  - webassets: embedded app shells and static files

The attendee side lives under client/ (api, cache, queue, syncer,
session) and is wired together by cmd/attendee.

See package documentation for each component.
*/
package main
