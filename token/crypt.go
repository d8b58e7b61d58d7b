package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oarkflow/webauth"
	"github.com/oarkflow/webauth/keyring"
)

// Wire layout of an encrypted token:
//
//	[key hint: 4 bytes, big-endian seconds, creation time of the key]
//	[IV: one AES block of random bytes]
//	[AES-CBC ciphertext of the payload with PKCS#7 padding]
//	[HMAC-SHA1 over everything above, keyed with the same key]
const (
	hintLen = 4
	ivLen   = aes.BlockSize
	macLen  = sha1.Size
)

// minTokenLen is the smallest well-formed encrypted token: hint, IV, one
// ciphertext block, and the MAC.
const minTokenLen = hintLen + ivLen + aes.BlockSize + macLen

// Encrypt seals payload under the ring's best encryption key and returns
// the binary envelope.  The key hint prefix carries the encrypting key's
// creation time so that decryption can find the same key quickly.
func Encrypt(payload []byte, ring *keyring.Keyring) ([]byte, error) {
	entry, err := ring.BestEntry(keyring.Encrypt, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("%w: no usable encryption key in keyring", webauth.ErrBadKey)
	}

	block, err := aes.NewCipher(entry.Key.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", webauth.ErrBadKey, err)
	}
	padLen := aes.BlockSize - len(payload)%aes.BlockSize
	padded := make([]byte, len(payload)+padLen)
	copy(padded, payload)
	for i := len(payload); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	out := make([]byte, hintLen+ivLen+len(padded)+macLen)
	var hint uint32
	if !entry.Creation.IsZero() {
		hint = uint32(entry.Creation.Unix())
	}
	binary.BigEndian.PutUint32(out[:hintLen], hint)
	iv := out[hintLen : hintLen+ivLen]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("%w: cannot generate initialization vector: %v",
			webauth.ErrBadKey, err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[hintLen+ivLen:len(out)-macLen], padded)

	mac := hmac.New(sha1.New, entry.Key.Data())
	mac.Write(out[:len(out)-macLen])
	copy(out[len(out)-macLen:], mac.Sum(nil))
	return out, nil
}

// Decrypt authenticates and opens an encrypted token using the keyring.
// The key hint selects the first key to try; if that key does not
// authenticate the token, every key in the ring is tried in order of
// decreasing valid-after time.  The payload is returned only when some key
// authenticates the whole envelope.
func Decrypt(data []byte, ring *keyring.Keyring) ([]byte, error) {
	if len(data) < minTokenLen {
		return nil, fmt.Errorf("%w: encrypted token too short", webauth.ErrCorrupt)
	}
	if (len(data)-hintLen-ivLen-macLen)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: encrypted token length is not a block multiple",
			webauth.ErrCorrupt)
	}

	var hint time.Time
	if secs := binary.BigEndian.Uint32(data[:hintLen]); secs != 0 {
		hint = time.Unix(int64(secs), 0)
	}
	if entry, err := ring.BestEntry(keyring.Decrypt, hint); err == nil {
		payload, err := openWithKey(data, entry.Key)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, webauth.ErrBadHMAC) {
			return nil, err
		}
	}

	// The hinted key did not authenticate the token.  The ring may have
	// rotated since the token was minted, so fall back to every key,
	// newest first.
	entries := ring.Entries()
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		va, vb := entries[order[a]].ValidAfter, entries[order[b]].ValidAfter
		if !va.Equal(vb) {
			return va.After(vb)
		}
		return order[a] > order[b]
	})
	for _, i := range order {
		payload, err := openWithKey(data, entries[i].Key)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, webauth.ErrBadHMAC) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: token did not authenticate under any key", webauth.ErrBadHMAC)
}

// openWithKey verifies the MAC under one key and, if it checks out,
// decrypts and unpads the payload.  Padding is only examined after the MAC
// passes.
func openWithKey(data []byte, key *webauth.Key) ([]byte, error) {
	macStart := len(data) - macLen
	mac := hmac.New(sha1.New, key.Data())
	mac.Write(data[:macStart])
	if !hmac.Equal(mac.Sum(nil), data[macStart:]) {
		return nil, webauth.ErrBadHMAC
	}

	block, err := aes.NewCipher(key.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", webauth.ErrBadKey, err)
	}
	ciphertext := data[hintLen+ivLen : macStart]
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, data[hintLen:hintLen+ivLen]).CryptBlocks(padded, ciphertext)

	padLen := int(padded[len(padded)-1])
	if padLen < 1 || padLen > aes.BlockSize || padLen > len(padded) {
		return nil, fmt.Errorf("%w: invalid padding in encrypted token", webauth.ErrCorrupt)
	}
	for _, c := range padded[len(padded)-padLen:] {
		if int(c) != padLen {
			return nil, fmt.Errorf("%w: invalid padding in encrypted token", webauth.ErrCorrupt)
		}
	}
	return padded[:len(padded)-padLen], nil
}
