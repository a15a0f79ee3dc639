// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles server configuration from CLI flags and
environment variables.

A .env file in the working directory is loaded first (best-effort),
then flags, then environment fallbacks:

  - PORT (-p): server port (default 3318)
  - DATABASE_URL (-d): postgres URL or sqlite file path (required)
  - DATABASE_TYPE (-t): sqlite or postgres (default sqlite)
  - JWT_SECRET_KEY (--jwt-secret): admin token signing secret (required)
  - POLL_SLUG_SALT (--slug-salt): slug derivation salt (required)
  - ADMIN_USERNAME / ADMIN_PASSWORD: bootstrap admin credentials

Flags win over environment variables; missing required settings are
returned as errors rather than defaulted.
*/
package cliparse
