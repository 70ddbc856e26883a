// Package authtest provides an in-process fake of the reference auth API.
//
// The server issues HS256 JWT pairs, rotates refresh tokens, and exposes a few
// /api endpoints that answer 200, 401, 403 or 429 on demand. Refreshes can be
// gated, failed, or counted so tests can observe single-flight behaviour.
package authtest
