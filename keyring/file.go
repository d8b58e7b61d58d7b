package keyring

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oarkflow/webauth"
	"github.com/oarkflow/webauth/logx"
)

// Read loads and decodes the keyring file at path.
func Read(path string) (*Keyring, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: keyring %s", webauth.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: keyring %s: %v", webauth.ErrFileOpenRead, path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: keyring %s: %v", webauth.ErrFileRead, path, err)
	}
	ring, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("keyring %s: %w", path, err)
	}
	return ring, nil
}

// Write encodes the keyring and writes it to path atomically.  The data
// goes to an exclusively created 0600 temporary file next to path, which
// is renamed over path once fully written.  A failure on any step removes
// the temporary file; the file at path is never left truncated.
func (r *Keyring) Write(path string) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".*")
	if err != nil {
		return fmt.Errorf("%w: temporary keyring for %s: %v", webauth.ErrFileOpenWrite, path, err)
	}
	temp := f.Name()
	data, err := r.Encode()
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(temp, path)
	}
	if err != nil {
		if rerr := os.Remove(temp); rerr != nil {
			logx.L().Warn("cannot remove temporary keyring", "path", temp, "error", rerr)
		}
		return fmt.Errorf("%w: keyring %s: %v", webauth.ErrFileWrite, path, err)
	}
	logx.L().Debug("keyring written", "path", path, "entries", r.Len())
	return nil
}

// UpdateStatus reports what AutoUpdate did to the keyring file.
type UpdateStatus int

const (
	// StatusNone means the file already existed and was fresh enough.
	StatusNone UpdateStatus = iota
	// StatusCreated means a new keyring file was created.
	StatusCreated
	// StatusUpdated means a new key was added to an existing keyring.
	StatusUpdated
)

// String returns the status name for logs and CLI output.
func (s UpdateStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusUpdated:
		return "updated"
	default:
		return "none"
	}
}

// AutoUpdate opens the keyring at path, creating or rotating it as
// needed.
//
// If the file does not exist and create is true, a new ring holding one
// fresh AES-128 key (creation and valid-after set to now) is written and
// the status is StatusCreated.  If the file exists and lifetime is
// positive, the ring is rotated when no key became valid within the last
// lifetime: a fresh AES-128 key is appended, the file is rewritten
// atomically, and the status is StatusUpdated.  Otherwise the status is
// StatusNone.
func AutoUpdate(path string, create bool, lifetime time.Duration) (*Keyring, UpdateStatus, error) {
	ring, err := Read(path)
	if err != nil {
		if !create || !errors.Is(err, webauth.ErrFileNotFound) {
			return nil, StatusNone, err
		}
		ring, err = newRing(path)
		if err != nil {
			return nil, StatusNone, err
		}
		logx.L().Info("created new keyring", "path", path)
		return ring, StatusCreated, nil
	}
	if lifetime <= 0 {
		return ring, StatusNone, nil
	}
	now := webauth.Now()
	for _, entry := range ring.Entries() {
		if entry.ValidAfter.Add(lifetime).After(now) {
			return ring, StatusNone, nil
		}
	}
	key, err := webauth.NewKey(webauth.KeyTypeAES, webauth.AES128, nil)
	if err != nil {
		return ring, StatusNone, err
	}
	ring.Add(now, now, key)
	if err := ring.Write(path); err != nil {
		return ring, StatusUpdated, err
	}
	logx.L().Info("rotated keyring", "path", path, "entries", ring.Len())
	return ring, StatusUpdated, nil
}

// newRing builds a single-key ring and writes it to path.
func newRing(path string) (*Keyring, error) {
	key, err := webauth.NewKey(webauth.KeyTypeAES, webauth.AES128, nil)
	if err != nil {
		return nil, err
	}
	ring := New(1)
	now := webauth.Now()
	ring.Add(now, now, key)
	if err := ring.Write(path); err != nil {
		return nil, err
	}
	return ring, nil
}
