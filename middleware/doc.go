// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and response helpers.

  - WithLogging: request start/completion logging via slog
  - RequireAdmin: Bearer JWT guard for the admin surface
  - CORS: permissive cross-origin headers for the frontend
  - JSONResponse / ErrorResponse / ErrorCode: response writers
  - ParseJSONBody: request body decoding

ErrorCode extends ErrorResponse with a machine-readable code field;
the submission endpoint uses it so clients can distinguish
already_submitted from invalid_vote without parsing text.
*/
package middleware
