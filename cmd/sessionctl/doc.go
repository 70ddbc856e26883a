// Command sessionctl drives a goAuthClient provider from the shell.
//
// Without --base-url (or GOAUTHCLIENT_API__BASE_URL) it starts an
// in-process fake auth API, so every command works offline:
//
//	sessionctl login
//	sessionctl call GET /api/echo
//	sessionctl inspect <jwt>
//	sessionctl stress --callers 64 --rounds 20
//
// Settings are read from .env, an optional YAML file (--config), the
// environment, and flags, in that order of precedence.
package main
