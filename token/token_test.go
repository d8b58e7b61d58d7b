package token_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"

	"github.com/oarkflow/webauth"
	"github.com/oarkflow/webauth/keyring"
	"github.com/oarkflow/webauth/token"
)

func TestAppRoundTrip(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := keyring.New(1)
	ring.Add(time.Unix(1700000000, 0), time.Unix(1700000000, 0), testKey(t, "0123456789abcdef"))

	app := &token.App{
		Subject:    "user",
		Creation:   time.Unix(1700000000, 0),
		Expiration: time.Unix(1700003600, 0),
	}
	encoded, err := token.Encode(app, ring)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := token.Decode(encoded, token.TypeApp, ring)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := decoded.(*token.App)
	if !ok {
		t.Fatalf("decoded a %T, expected *token.App", decoded)
	}
	if got.Subject != "user" {
		t.Fatalf("subject = %q", got.Subject)
	}
	if !got.Creation.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("creation = %v", got.Creation)
	}
	if !got.Expiration.Equal(time.Unix(1700003600, 0)) {
		t.Fatalf("expiration = %v", got.Expiration)
	}
	if diff := deep.Equal(app, got); diff != nil {
		spew.Dump(diff)
		t.Fatal("decoded token differs from the original")
	}
}

// roundTripTokens covers every variant with all fields set.
func roundTripTokens() []token.Token {
	creation := time.Unix(1700000000, 0)
	expiration := time.Unix(1700003600, 0)
	return []token.Token{
		&token.App{
			Subject:        "user",
			AuthzSubject:   "admin",
			LastUsed:       time.Unix(1700000100, 0),
			InitialFactors: "p,o",
			SessionFactors: "c",
			LOA:            2,
			Creation:       creation,
			Expiration:     expiration,
		},
		&token.App{
			SessionKey: []byte{1, 2, 3, 4},
			Creation:   creation,
			Expiration: expiration,
		},
		&token.Cred{
			Subject:    "user",
			Type:       "krb5",
			Service:    "webauth/example.com@EXAMPLE.COM",
			Data:       []byte("ticket;with;separators"),
			Creation:   creation,
			Expiration: expiration,
		},
		&token.Error{
			Code:     16,
			Message:  "user canceled login",
			Creation: creation,
		},
		&token.ID{
			Subject:        "user",
			Auth:           "webkdc",
			InitialFactors: "p",
			LOA:            1,
			Creation:       creation,
			Expiration:     expiration,
		},
		&token.ID{
			Subject:    "user",
			Auth:       "krb5",
			AuthData:   []byte{0xff, 0x00, ';'},
			Creation:   creation,
			Expiration: expiration,
		},
		&token.Login{
			Username: "user",
			Password: "correct horse",
			Creation: creation,
		},
		&token.Login{
			Username: "user",
			OTP:      "123456",
			OTPType:  "o1",
			Creation: creation,
		},
		&token.Proxy{
			Subject:        "user",
			Type:           "krb5",
			WebKDCProxy:    []byte("opaque webkdc-proxy token"),
			InitialFactors: "p",
			SessionFactors: "c",
			LOA:            3,
			Creation:       creation,
			Expiration:     expiration,
		},
		&token.Request{
			Type:           "id",
			Auth:           "webkdc",
			State:          []byte("app state"),
			ReturnURL:      "https://example.com/return",
			Options:        "fa,lc",
			InitialFactors: "p",
			SessionFactors: "c",
			Creation:       creation,
		},
		&token.Request{
			Type:      "proxy",
			ProxyType: "krb5",
			ReturnURL: "https://example.com/return",
			Creation:  creation,
		},
		&token.Request{
			Command:  "getTokensRequest",
			Creation: creation,
		},
		&token.WebKDCFactor{
			Subject:        "user",
			InitialFactors: "d",
			Creation:       creation,
			Expiration:     expiration,
		},
		&token.WebKDCProxy{
			Subject:        "user",
			ProxyType:      "krb5",
			ProxySubject:   "WEBKDC:krb5:webauth/example.com@EXAMPLE.COM",
			Data:           []byte("proxy data"),
			InitialFactors: "p",
			LOA:            1,
			Creation:       creation,
			Expiration:     expiration,
		},
		&token.WebKDCService{
			Subject:    "krb5:webauth/example.com@EXAMPLE.COM",
			SessionKey: []byte("0123456789abcdef"),
			Creation:   creation,
			Expiration: expiration,
		},
	}
}

func TestAllVariantsRoundTrip(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := testRing(t)

	for _, want := range roundTripTokens() {
		encoded, err := token.Encode(want, ring)
		if err != nil {
			t.Fatalf("Encode(%s) failed: %v", want.TokenType(), err)
		}
		decoded, err := token.Decode(encoded, token.TypeAny, ring)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", want.TokenType(), err)
		}
		if decoded.TokenType() != want.TokenType() {
			t.Fatalf("decoded type %s, expected %s", decoded.TokenType(), want.TokenType())
		}
		if diff := deep.Equal(want, decoded); diff != nil {
			spew.Dump(diff)
			t.Fatalf("%s token did not round-trip", want.TokenType())
		}
	}
}

func TestEncodeTwiceDiffers(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := testRing(t)
	app := &token.App{Subject: "user", Expiration: time.Unix(1700003600, 0)}

	first, err := token.Encode(app, ring)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	second, err := token.Encode(app, ring)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if first == second {
		t.Fatal("two encodings are identical; the IV is not fresh")
	}
}

func TestCreationDefaultsToNow(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := testRing(t)
	app := &token.App{Subject: "user", Expiration: time.Unix(1700003600, 0)}

	encoded, err := token.Encode(app, ring)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := token.Decode(encoded, token.TypeApp, ring)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := decoded.(*token.App).Creation; !got.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("creation = %v, expected now", got)
	}
}

func TestDecodeExpired(t *testing.T) {
	clock := pinClock(t, time.Unix(50, 0))
	ring := testRing(t)

	app := &token.App{Subject: "user", Expiration: time.Unix(100, 0)}
	encoded, err := token.Encode(app, ring)
	if err != nil {
		t.Fatalf("Encode of expiring token failed: %v", err)
	}

	clock.Advance(950 * time.Second)
	if _, err := token.Decode(encoded, token.TypeApp, ring); !errors.Is(err, webauth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestEncodeExpiredAllowed(t *testing.T) {
	pinClock(t, time.Unix(1000, 0))
	ring := testRing(t)

	app := &token.App{Subject: "user", Expiration: time.Unix(100, 0)}
	if _, err := token.Encode(app, ring); err != nil {
		t.Fatalf("encoding an already-expired token failed: %v", err)
	}
}

func TestDecodeWrongType(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := testRing(t)

	id := &token.ID{Subject: "user", Auth: "webkdc", Expiration: time.Unix(1700003600, 0)}
	encoded, err := token.Encode(id, ring)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, err = token.Decode(encoded, token.TypeApp, ring)
	if !errors.Is(err, webauth.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "id") || !strings.Contains(msg, "app") {
		t.Fatalf("mismatch error does not name both types: %s", msg)
	}
}

func TestDecodeBadBase64(t *testing.T) {
	ring := testRing(t)
	if _, err := token.Decode("not$$$base64", token.TypeAny, ring); !errors.Is(err, webauth.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestDecodeUnknownExpectedType(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := testRing(t)
	app := &token.App{Subject: "user", Expiration: time.Unix(1700003600, 0)}
	encoded, err := token.Encode(app, ring)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := token.Decode(encoded, token.Type("bogus"), ring); !errors.Is(err, webauth.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestEncodeNilKeyring(t *testing.T) {
	app := &token.App{Subject: "user", Expiration: time.Unix(1700003600, 0)}
	if _, err := token.Encode(app, nil); !errors.Is(err, webauth.ErrBadKey) {
		t.Fatalf("expected ErrBadKey, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := testRing(t)
	expiration := time.Unix(1700003600, 0)

	cases := []struct {
		name string
		tok  token.Token
	}{
		{"app with no subject", &token.App{Expiration: expiration}},
		{"app with no expiration", &token.App{Subject: "user"}},
		{"app with subject and session key", &token.App{
			Subject: "user", SessionKey: []byte{1}, Expiration: expiration}},
		{"app with loa and session key", &token.App{
			SessionKey: []byte{1}, LOA: 1, Expiration: expiration}},
		{"app with factors and session key", &token.App{
			SessionKey: []byte{1}, InitialFactors: "p", Expiration: expiration}},
		{"cred with bad type", &token.Cred{
			Subject: "user", Type: "x509", Service: "svc", Data: []byte{1},
			Expiration: expiration}},
		{"cred with no data", &token.Cred{
			Subject: "user", Type: "krb5", Service: "svc", Expiration: expiration}},
		{"error with no code", &token.Error{Message: "boom"}},
		{"error with no message", &token.Error{Code: 1}},
		{"id with bad auth", &token.ID{
			Subject: "user", Auth: "saml", Expiration: expiration}},
		{"id webkdc with no subject", &token.ID{
			Auth: "webkdc", Expiration: expiration}},
		{"id krb5 with no auth data", &token.ID{
			Subject: "user", Auth: "krb5", Expiration: expiration}},
		{"login with no username", &token.Login{Password: "pw"}},
		{"login with neither password nor otp", &token.Login{Username: "user"}},
		{"login with both password and otp", &token.Login{
			Username: "user", Password: "pw", OTP: "123456"}},
		{"login with otp type and password", &token.Login{
			Username: "user", Password: "pw", OTPType: "o1"}},
		{"proxy with bad type", &token.Proxy{
			Subject: "user", Type: "remuser", WebKDCProxy: []byte{1},
			Expiration: expiration}},
		{"request with command and return url", &token.Request{
			Command: "getTokensRequest", ReturnURL: "https://example.com/"}},
		{"request with command and state", &token.Request{
			Command: "getTokensRequest", State: []byte{1}}},
		{"request with no return url", &token.Request{
			Type: "id", Auth: "webkdc"}},
		{"request with bad requested type", &token.Request{
			Type: "cred", ReturnURL: "https://example.com/"}},
		{"request id with no auth", &token.Request{
			Type: "id", ReturnURL: "https://example.com/"}},
		{"request proxy with no proxy type", &token.Request{
			Type: "proxy", ReturnURL: "https://example.com/"}},
		{"webkdc-factor with no factors", &token.WebKDCFactor{
			Subject: "user", Expiration: expiration}},
		{"webkdc-proxy with bad proxy type", &token.WebKDCProxy{
			Subject: "user", ProxyType: "saml", ProxySubject: "ps",
			Data: []byte{1}, Expiration: expiration}},
		{"webkdc-proxy with no data", &token.WebKDCProxy{
			Subject: "user", ProxyType: "krb5", ProxySubject: "ps",
			Expiration: expiration}},
		{"webkdc-service with no session key", &token.WebKDCService{
			Subject: "user", Expiration: expiration}},
	}
	for _, c := range cases {
		if _, err := token.Encode(c.tok, ring); !errors.Is(err, webauth.ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", c.name, err)
		}
	}
}

func TestDecodeRemovedKey(t *testing.T) {
	pinClock(t, time.Unix(1700000000, 0))
	ring := keyring.New(2)
	ring.Add(time.Unix(1000, 0), time.Unix(1000, 0), testKey(t, "0000000000000000"))
	ring.Add(time.Unix(2000, 0), time.Unix(2000, 0), testKey(t, "1111111111111111"))

	app := &token.App{Subject: "user", Expiration: time.Unix(1700003600, 0)}
	encoded, err := token.Encode(app, ring)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Drop the encrypting key (the newest); only the stale key remains.
	if err := ring.Remove(1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := token.Decode(encoded, token.TypeApp, ring); !errors.Is(err, webauth.ErrBadHMAC) {
		t.Fatalf("expected ErrBadHMAC after key removal, got %v", err)
	}
}
