// Package token implements the WebAuth token family: ten typed,
// validated, encrypted messages exchanged between a WebKDC, application
// servers, and browsers.
//
// A token is encoded by validating its fields, serializing them to an
// attribute list, sealing the attributes in an authenticated envelope
// under a keyring's best key, and base64-encoding the result.  Decoding
// reverses each step and additionally enforces expiration.
//
// Each field maps to a short stable attribute code; the full table lives
// with the variant definitions in this package.  Timestamps and level of
// assurance travel as 32-bit unsigned values.
package token

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/oarkflow/webauth"
	"github.com/oarkflow/webauth/attrs"
	"github.com/oarkflow/webauth/keyring"
)

// Type names a token variant with the literal string used in the wire
// encoding's "t" attribute.
type Type string

// The token variants, plus TypeAny which matches any variant on decode.
const (
	TypeAny           Type = "any"
	TypeApp           Type = "app"
	TypeCred          Type = "cred"
	TypeError         Type = "error"
	TypeID            Type = "id"
	TypeLogin         Type = "login"
	TypeProxy         Type = "proxy"
	TypeRequest       Type = "req"
	TypeWebKDCFactor  Type = "webkdc-factor"
	TypeWebKDCProxy   Type = "webkdc-proxy"
	TypeWebKDCService Type = "webkdc-service"
)

// mode says whether validation runs for encoding or decoding.  Expiration
// is only enforced on decode so that tests and diagnostics can mint
// expired tokens.
type mode int

const (
	encodeMode mode = iota
	decodeMode
)

// Token is one of the ten variants.  The interface is closed: only the
// variant structs in this package implement it.
type Token interface {
	// TokenType returns the variant's wire type.
	TokenType() Type

	validate(m mode, now time.Time) error
	toAttrs(now time.Time) *attrs.List
	fromAttrs(l *attrs.List) error
}

// constructors builds an empty variant for each wire type.
var constructors = map[Type]func() Token{
	TypeApp:           func() Token { return new(App) },
	TypeCred:          func() Token { return new(Cred) },
	TypeError:         func() Token { return new(Error) },
	TypeID:            func() Token { return new(ID) },
	TypeLogin:         func() Token { return new(Login) },
	TypeProxy:         func() Token { return new(Proxy) },
	TypeRequest:       func() Token { return new(Request) },
	TypeWebKDCFactor:  func() Token { return new(WebKDCFactor) },
	TypeWebKDCProxy:   func() Token { return new(WebKDCProxy) },
	TypeWebKDCService: func() Token { return new(WebKDCService) },
}

// Encode validates the token, serializes and encrypts it under the ring's
// best encryption key, and returns the base64 form used on the wire.
func Encode(t Token, ring *keyring.Keyring) (string, error) {
	raw, err := EncodeRaw(t, ring)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeRaw is Encode without the outer base64 framing.
func EncodeRaw(t Token, ring *keyring.Keyring) ([]byte, error) {
	if ring == nil {
		return nil, fmt.Errorf("%w: keyring is nil while encoding token", webauth.ErrBadKey)
	}
	now := webauth.Now()
	if err := t.validate(encodeMode, now); err != nil {
		return nil, err
	}
	return Encrypt(t.toAttrs(now).Encode(), ring)
}

// Decode reverses Encode: base64, decrypt, parse, validate.  want names
// the variant the caller expects; TypeAny accepts every variant, and any
// other mismatch is corrupt.  A token whose expiration has passed fails
// with ErrTokenExpired.
func Decode(encoded string, want Type, ring *keyring.Keyring) (Token, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 in token: %v", webauth.ErrCorrupt, err)
	}
	return DecodeRaw(raw, want, ring)
}

// DecodeRaw is Decode without the outer base64 framing.
func DecodeRaw(raw []byte, want Type, ring *keyring.Keyring) (Token, error) {
	if want != TypeAny && constructors[want] == nil {
		return nil, fmt.Errorf("%w: unknown token type %q", webauth.ErrInvalid, want)
	}
	payload, err := Decrypt(raw, ring)
	if err != nil {
		return nil, err
	}
	list, err := attrs.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("parsing token attributes: %w", err)
	}
	name, ok := list.GetString(attrType)
	if !ok {
		return nil, fmt.Errorf("%w: token has no type attribute", webauth.ErrCorrupt)
	}
	build := constructors[Type(name)]
	if build == nil {
		return nil, fmt.Errorf("%w: unknown token type %s", webauth.ErrCorrupt, name)
	}
	tok := build()
	if want != TypeAny && want != tok.TokenType() {
		return nil, fmt.Errorf("%w: wrong token type %s, expected %s",
			webauth.ErrCorrupt, tok.TokenType(), want)
	}
	if err := tok.fromAttrs(list); err != nil {
		return nil, err
	}
	if err := tok.validate(decodeMode, webauth.Now()); err != nil {
		return nil, err
	}
	return tok, nil
}

// Validation helpers shared by the variants.  The message shapes follow a
// fixed grammar so that callers can present consistent diagnostics:
// "missing X in Y token", "empty X in Y token", "X not valid with Z in Y
// token", and "unknown W V in Y token".

func missingField(field string, t Type) error {
	return fmt.Errorf("%w: missing %s in %s token", webauth.ErrCorrupt, field, t)
}

func emptyField(field string, t Type) error {
	return fmt.Errorf("%w: empty %s in %s token", webauth.ErrCorrupt, field, t)
}

func notValidWith(field, with string, t Type) error {
	return fmt.Errorf("%w: %s not valid with %s in %s token", webauth.ErrCorrupt, field, with, t)
}

func unknownValue(what, value string, t Type) error {
	return fmt.Errorf("%w: unknown %s %s in %s token", webauth.ErrCorrupt, what, value, t)
}

// checkData requires a non-empty binary field.
func checkData(v []byte, field string, t Type) error {
	if v == nil {
		return missingField(field, t)
	}
	if len(v) == 0 {
		return emptyField(field, t)
	}
	return nil
}

// checkExpiration requires a nonzero expiration and, on decode, that it
// has not passed.
func checkExpiration(exp time.Time, t Type, m mode, now time.Time) error {
	if exp.IsZero() {
		return missingField("expiration", t)
	}
	if m == decodeMode && exp.Before(now) {
		return fmt.Errorf("%w: expired at %d", webauth.ErrTokenExpired, exp.Unix())
	}
	return nil
}

// checkSubjectAuth validates a subject authenticator name.
func checkSubjectAuth(auth string, t Type) error {
	if auth != "krb5" && auth != "webkdc" {
		return unknownValue("auth type", auth, t)
	}
	return nil
}

// orNow substitutes the current time for a zero creation time, matching
// the encoder's convention that an unset creation means "now".
func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
