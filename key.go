package webauth

import (
	"crypto/rand"
	"fmt"
	"io"
)

// KeyType identifies the cipher a key is used with.  Only AES is defined.
type KeyType int

// KeyTypeAES is the only supported key type.
const KeyTypeAES KeyType = 1

// KeySize is the length of key material in bytes.
type KeySize int

// Supported AES key sizes.
const (
	AES128 KeySize = 16
	AES192 KeySize = 24
	AES256 KeySize = 32
)

// Key is a symmetric key.  The material is private to the struct so that a
// Key never leaks through formatted output; code that needs the raw bytes
// calls Data.
type Key struct {
	typ  KeyType
	data []byte
}

// NewKey creates a key of the given type and size.  If material is nil,
// fresh random bytes are drawn from crypto/rand.  If material is given its
// length must match size.
func NewKey(typ KeyType, size KeySize, material []byte) (*Key, error) {
	if typ != KeyTypeAES {
		return nil, fmt.Errorf("%w: unsupported key type %d", ErrBadKey, typ)
	}
	switch size {
	case AES128, AES192, AES256:
	default:
		return nil, fmt.Errorf("%w: invalid key length %d", ErrBadKey, size)
	}
	data := make([]byte, size)
	if material == nil {
		if _, err := io.ReadFull(rand.Reader, data); err != nil {
			return nil, fmt.Errorf("%w: cannot generate key material: %v", ErrBadKey, err)
		}
	} else {
		if len(material) != int(size) {
			return nil, fmt.Errorf("%w: key material is %d bytes, expected %d",
				ErrBadKey, len(material), size)
		}
		copy(data, material)
	}
	return &Key{typ: typ, data: data}, nil
}

// Type returns the key's cipher type.
func (k *Key) Type() KeyType { return k.typ }

// Len returns the length of the key material in bytes.
func (k *Key) Len() int { return len(k.data) }

// Size returns the key size constant corresponding to the material length.
func (k *Key) Size() KeySize { return KeySize(len(k.data)) }

// Data returns the raw key material.  The slice is the key's own storage;
// callers must not modify it.
func (k *Key) Data() []byte { return k.data }

// Copy returns a deep copy of the key.
func (k *Key) Copy() *Key {
	data := make([]byte, len(k.data))
	copy(data, k.data)
	return &Key{typ: k.typ, data: data}
}

// Zero overwrites the key material.  The key is unusable afterwards.
func (k *Key) Zero() {
	for i := range k.data {
		k.data[i] = 0
	}
}

// String redacts the key material.
func (k *Key) String() string {
	return fmt.Sprintf("webauth.Key{AES-%d, REDACTED}", k.Len()*8)
}

// GoString redacts the key material from %#v output as well.
func (k *Key) GoString() string { return k.String() }
