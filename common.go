// Package webauth holds the pieces shared by every layer of the WebAuth
// token library: symmetric key material, the error taxonomy, and the
// package clock.
//
// Every failure in this module is reported as a value wrapping one of the
// sentinel errors below, so callers can classify with errors.Is while still
// seeing a human-readable detail string.
package webauth

import "errors"

// ErrCorrupt is returned for structurally or semantically inconsistent
// data: malformed attribute streams, missing or forbidden token fields,
// unknown enumerated values, and token type mismatches.
var ErrCorrupt = errors.New("data is incorrectly formatted")

// ErrBadHMAC is returned when an encrypted token fails authentication
// under every candidate key.
var ErrBadHMAC = errors.New("HMAC check failed")

// ErrBadKey is returned when key material is unusable or a keyring has no
// key valid for the requested use.
var ErrBadKey = errors.New("unable to use key")

// ErrTokenExpired is returned on decode when a token's expiration time has
// passed.  Encoding an expired token is allowed.
var ErrTokenExpired = errors.New("token has expired")

// ErrTokenStale is returned by higher layers for request tokens that are
// too old to honor.  The core never returns it but reserves the kind.
var ErrTokenStale = errors.New("token is stale")

// Keyring file I/O errors.
var (
	ErrFileNotFound  = errors.New("file does not exist")
	ErrFileOpenRead  = errors.New("unable to open file for reading")
	ErrFileRead      = errors.New("unable to read file")
	ErrFileOpenWrite = errors.New("unable to open file for writing")
	ErrFileWrite     = errors.New("unable to write file")
	ErrFileVersion   = errors.New("unsupported file format version")
)

// ErrNotFound is returned for a keyring index out of range or when no key
// in a keyring satisfies a best-key query.
var ErrNotFound = errors.New("item not found")

// ErrInvalid flags programmer errors such as passing an unknown token type
// constant.
var ErrInvalid = errors.New("invalid argument")
