package keyring

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/oarkflow/shamir"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/webauth"
)

// Key escrow.  Neither mechanism here touches the keyring wire format;
// both exist so that operators can take a key out of a ring for off-site
// backup and bring it back.

// SplitKey splits a key's material into shares shares of which threshold
// are needed to reconstruct it.
func SplitKey(key *webauth.Key, shares, threshold int) ([][]byte, error) {
	out, err := shamir.Split(key.Data(), threshold, shares)
	if err != nil {
		return nil, fmt.Errorf("%w: splitting key: %v", webauth.ErrBadKey, err)
	}
	return out, nil
}

// CombineKey reconstructs a key of the given type from Shamir shares.
func CombineKey(typ webauth.KeyType, shares [][]byte) (*webauth.Key, error) {
	material, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("%w: combining key shares: %v", webauth.ErrBadKey, err)
	}
	return webauth.NewKey(typ, webauth.KeySize(len(material)), material)
}

// pbkdf2Rounds is the work factor for passphrase-derived sealing keys.
const pbkdf2Rounds = 100000

// sealedKey is the YAML layout of a passphrase-sealed key backup.
type sealedKey struct {
	KeyType int    `yaml:"key_type"`
	Rounds  int    `yaml:"rounds"`
	Salt    []byte `yaml:"salt"`
	Nonce   []byte `yaml:"nonce"`
	Data    []byte `yaml:"data"`
}

// ExportKey seals a key under a passphrase and returns the YAML backup
// document.  The sealing key is derived with PBKDF2-SHA256 and the
// material is encrypted with XChaCha20-Poly1305.
func ExportKey(key *webauth.Key, passphrase []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("%w: generating salt: %v", webauth.ErrBadKey, err)
	}
	sealing := pbkdf2.Key(passphrase, salt, pbkdf2Rounds, chacha20poly1305.KeySize, sha256.New)
	aead, err := chacha20poly1305.NewX(sealing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", webauth.ErrBadKey, err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: generating nonce: %v", webauth.ErrBadKey, err)
	}
	sealed := sealedKey{
		KeyType: int(key.Type()),
		Rounds:  pbkdf2Rounds,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, key.Data(), nil),
	}
	return yaml.Marshal(&sealed)
}

// ImportKey opens a YAML backup produced by ExportKey.  A wrong
// passphrase or tampered document fails with ErrBadHMAC.
func ImportKey(data, passphrase []byte) (*webauth.Key, error) {
	var sealed sealedKey
	if err := yaml.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("%w: parsing key backup: %v", webauth.ErrCorrupt, err)
	}
	if sealed.Rounds <= 0 || len(sealed.Salt) == 0 || len(sealed.Nonce) == 0 {
		return nil, fmt.Errorf("%w: incomplete key backup", webauth.ErrCorrupt)
	}
	sealing := pbkdf2.Key(passphrase, sealed.Salt, sealed.Rounds, chacha20poly1305.KeySize, sha256.New)
	aead, err := chacha20poly1305.NewX(sealing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", webauth.ErrBadKey, err)
	}
	if len(sealed.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length in key backup", webauth.ErrCorrupt)
	}
	material, err := aead.Open(nil, sealed.Nonce, sealed.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot unseal key backup", webauth.ErrBadHMAC)
	}
	return webauth.NewKey(webauth.KeyType(sealed.KeyType), webauth.KeySize(len(material)), material)
}
