// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifier generation, password hashing, and
admin token handling for Crowd Poll.

# Identifiers

Random hex IDs for database rows:

	pollID, err := auth.GenerateID(16)

Deterministic share slugs (HMAC + base62) when the facilitator does not
pick one:

	slug := auth.GenerateSlug(pollID, cfg.SlugSalt)

# Admin Tokens

The admin surface is guarded by HS256 JWTs:

	token, err := auth.CreateAccessToken(username, cfg.JWTSecret, time.Hour)
	sub, err := auth.VerifyAccessToken(token, cfg.JWTSecret)

Passwords are stored as salted PBKDF2-SHA256 hashes
(HashPassword/VerifyPassword).
*/
package auth
