package webauth_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/oarkflow/webauth"
)

func TestNewKeyRandom(t *testing.T) {
	for _, size := range []webauth.KeySize{webauth.AES128, webauth.AES192, webauth.AES256} {
		key, err := webauth.NewKey(webauth.KeyTypeAES, size, nil)
		if err != nil {
			t.Fatalf("NewKey(%d) failed: %v", size, err)
		}
		if key.Len() != int(size) {
			t.Fatalf("key is %d bytes, expected %d", key.Len(), size)
		}
		if bytes.Equal(key.Data(), make([]byte, size)) {
			t.Fatalf("random key material is all zero")
		}
	}
}

func TestNewKeyMaterial(t *testing.T) {
	material := []byte("0123456789abcdef")
	key, err := webauth.NewKey(webauth.KeyTypeAES, webauth.AES128, material)
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	if !bytes.Equal(key.Data(), material) {
		t.Fatalf("key material mismatch")
	}

	// The key owns a copy, not the caller's slice.
	material[0] = 'X'
	if key.Data()[0] == 'X' {
		t.Fatal("key aliases caller material")
	}
}

func TestNewKeyBad(t *testing.T) {
	if _, err := webauth.NewKey(webauth.KeyTypeAES, webauth.AES128, []byte("short")); !errors.Is(err, webauth.ErrBadKey) {
		t.Fatalf("expected ErrBadKey for short material, got %v", err)
	}
	if _, err := webauth.NewKey(webauth.KeyTypeAES, 17, nil); !errors.Is(err, webauth.ErrBadKey) {
		t.Fatalf("expected ErrBadKey for odd size, got %v", err)
	}
	if _, err := webauth.NewKey(webauth.KeyType(42), webauth.AES128, nil); !errors.Is(err, webauth.ErrBadKey) {
		t.Fatalf("expected ErrBadKey for unknown type, got %v", err)
	}
}

func TestKeyCopyAndZero(t *testing.T) {
	key, err := webauth.NewKey(webauth.KeyTypeAES, webauth.AES128, []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	dup := key.Copy()
	key.Zero()
	if bytes.Equal(key.Data(), dup.Data()) {
		t.Fatal("zeroizing the original affected the copy")
	}
	if !bytes.Equal(dup.Data(), []byte("0123456789abcdef")) {
		t.Fatal("copy does not hold the original material")
	}
}

func TestKeyStringRedacts(t *testing.T) {
	key, err := webauth.NewKey(webauth.KeyTypeAES, webauth.AES128, []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	for _, out := range []string{key.String(), fmt.Sprintf("%v", key), fmt.Sprintf("%#v", key)} {
		if strings.Contains(out, "0123456789abcdef") {
			t.Fatalf("formatted key leaks material: %s", out)
		}
	}
}
