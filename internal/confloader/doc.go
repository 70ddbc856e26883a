// Package confloader loads goAuthClient configuration from layered sources.
//
// Sources are applied in order, later ones overriding earlier ones:
//
//  1. Values already present in the target (usually DefaultConfig)
//  2. A YAML file
//  3. GOAUTHCLIENT_ environment variables
//  4. An explicit map (command-line flags)
//
// Environment keys use a double underscore between sections so that
// single underscores survive inside field names:
//
//	GOAUTHCLIENT_API__BASE_URL      -> api.base_url
//	GOAUTHCLIENT_SESSION__LOGIN_URL -> session.login_url
package confloader
